// Package ingest drives trade events from a TradeSource into the Pipeline
// Engine and runs the unified flush loop: a periodic tick that computes
// rolling metrics/signals for every active mint and hands the results to a
// Sink for persistence.
//
// The TradeSource/Sink split mirrors the teacher's Broker interface
// (broker.go): a small contract the loop depends on, with concrete
// implementations living in their own files/packages. The ticker-driven
// select loop is the same shape as live.go's "Original candle-driven loop".
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
	"github.com/dmittakarin8/solflow-pipeline/internal/engine"
	"github.com/dmittakarin8/solflow-pipeline/internal/metrics"
)

// TradeSource is the minimal contract the loop needs from whatever is
// producing trade events (a websocket relay, a replay file, a stub).
// Events() must close its channel when the source is done; Run does any
// connection/reconnection work and should return when ctx is done.
type TradeSource interface {
	Events() <-chan domain.TradeEvent
	Run(ctx context.Context) error
}

// Sink receives one flush cycle's worth of engine output for persistence.
// Kept as an interface (rather than importing internal/store directly) so
// the loop stays testable with an in-memory fake.
type Sink interface {
	WriteFlush(ctx context.Context, results []engine.MintResult) error
}

// Loop owns the bounded ingress queue and drives both the ingestion path
// and the periodic flush tick against a shared Engine.
type Loop struct {
	eng   *engine.Engine
	sink  Sink
	queue chan domain.TradeEvent

	flushInterval time.Duration
}

// New constructs a Loop with a bounded queue of the given capacity and the
// given flush period. Capacity and period come from spec §6's
// CHANNEL_BUFFER / FLUSH_INTERVAL_MS env knobs.
func New(eng *engine.Engine, sink Sink, queueCapacity int, flushInterval time.Duration) *Loop {
	return &Loop{
		eng:           eng,
		sink:          sink,
		queue:         make(chan domain.TradeEvent, queueCapacity),
		flushInterval: flushInterval,
	}
}

// Submit offers event to the bounded queue without blocking. If the queue
// is full the event is dropped and counted, per spec §4.4's non-blocking
// ingress requirement — a slow consumer must never stall the producer.
// Once occupancy exceeds half of capacity, every accepted event also logs
// a warning (spec §4.5/§7), so an operator sees backpressure building
// before the queue actually fills and starts dropping.
func (l *Loop) Submit(event domain.TradeEvent) {
	select {
	case l.queue <- event:
		metrics.IncIngested(event.SourceProgram)
	default:
		metrics.IncDropped(event.SourceProgram)
		log.Printf("[WARN] ingestion queue full, dropping trade for mint=%s program=%s", event.Mint, event.SourceProgram)
	}
	occupancy := len(l.queue)
	metrics.SetQueueOccupancy(occupancy)
	if cap(l.queue) > 0 && occupancy*2 > cap(l.queue) {
		log.Printf("[WARN] ingestion queue occupancy %d/%d exceeds 50%% capacity", occupancy, cap(l.queue))
	}
}

// Run drains the queue into the engine and flushes on every tick until ctx
// is canceled, then performs one final flush so nothing buffered is lost.
// now is injected (rather than calling time.Now directly) so callers can
// control flush timestamps in tests; production callers pass a closure
// over time.Now().Unix().
func (l *Loop) Run(ctx context.Context, now func() int64) error {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.flush(context.Background(), now())
			return ctx.Err()

		case event, ok := <-l.queue:
			if !ok {
				l.flush(context.Background(), now())
				return nil
			}
			l.eng.ProcessTrade(event)
			metrics.SetQueueOccupancy(len(l.queue))

		case <-ticker.C:
			l.flush(ctx, now())
		}
	}
}

func (l *Loop) flush(ctx context.Context, now int64) {
	start := time.Now()
	results, stats := l.eng.Flush(now)
	duration := time.Since(start)
	metrics.ObserveFlushDuration(duration.Seconds())
	metrics.SetActiveMints(stats.ActiveMints)
	metrics.SetBotWalletsActive(stats.BotWalletsSum)

	log.Printf("flush: mints=%d signals=%d duration=%s queue_occupancy=%d/%d",
		stats.ActiveMints, stats.SignalsEmitted, duration, len(l.queue), cap(l.queue))

	if len(results) == 0 {
		return
	}

	if err := l.sink.WriteFlush(ctx, results); err != nil {
		log.Printf("[ERROR] flush write failed: %v", err)
		return
	}

	for _, r := range results {
		for _, s := range r.Signals {
			metrics.IncSignal(s.SignalType.String())
		}
	}
}

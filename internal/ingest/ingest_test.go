package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
	"github.com/dmittakarin8/solflow-pipeline/internal/engine"
)

type fakeSink struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSink) WriteFlush(ctx context.Context, results []engine.MintResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	eng := engine.New()
	loop := New(eng, &fakeSink{}, 1, time.Hour)

	loop.Submit(domain.TradeEvent{Mint: "A"})
	loop.Submit(domain.TradeEvent{Mint: "B"}) // queue capacity 1, should drop

	if len(loop.queue) != 1 {
		t.Fatalf("expected queue to stay at capacity 1, got %d", len(loop.queue))
	}
}

func TestSubmitFillsQueuePastHalfCapacityWithoutDropping(t *testing.T) {
	eng := engine.New()
	loop := New(eng, &fakeSink{}, 4, time.Hour)

	for i := 0; i < 3; i++ {
		loop.Submit(domain.TradeEvent{Mint: "A"})
	}

	if len(loop.queue) != 3 {
		t.Fatalf("expected 3 queued events past 50%% of capacity 4, got %d", len(loop.queue))
	}
}

func TestRunFlushesOnCancelEvenWithoutATick(t *testing.T) {
	eng := engine.New()
	sink := &fakeSink{}
	loop := New(eng, sink, 10, time.Hour)
	loop.Submit(domain.TradeEvent{Timestamp: 1000, Mint: "A", Direction: domain.DirectionBuy, SolAmount: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx, func() int64 { return 1000 })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if sink.callCount() != 1 {
		t.Fatalf("expected exactly one flush on shutdown, got %d", sink.callCount())
	}
}

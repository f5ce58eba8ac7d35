// Package capture implements the legacy JSONL append-writer CLI surface
// (spec §6's "--backend {sqlite|jsonl}" flag): an alternative, non-core
// sink that appends raw trade events to a newline-delimited JSON file
// instead of the transactional aggregate store. Retained because spec §6
// still names it as part of the external CLI contract even though it's
// out of THE CORE.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

// JSONLWriter appends one JSON object per line per trade event. Safe for
// concurrent use by multiple producer goroutines.
type JSONLWriter struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// OpenJSONLWriter opens (creating/appending) path for JSONL capture.
func OpenJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file %s: %w", path, err)
	}
	return &JSONLWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// WriteTrade appends one trade event as a JSON line.
func (w *JSONLWriter) WriteTrade(event domain.TradeEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

package capture

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

func TestWriteTradeAppendsOneJSONLinePerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	w, err := OpenJSONLWriter(path)
	if err != nil {
		t.Fatalf("OpenJSONLWriter: %v", err)
	}

	if err := w.WriteTrade(domain.TradeEvent{Mint: "A", Timestamp: 1}); err != nil {
		t.Fatalf("WriteTrade: %v", err)
	}
	if err := w.WriteTrade(domain.TradeEvent{Mint: "B", Timestamp: 2}); err != nil {
		t.Fatalf("WriteTrade: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open capture file: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}
	var e domain.TradeEvent
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if e.Mint != "A" {
		t.Fatalf("Mint = %q, want A", e.Mint)
	}
}

package config

import "testing"

func TestLoadDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("DB_PATH", "")
	t.Setenv("CHANNEL_BUFFER", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "./pipeline.db" {
		t.Fatalf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.ChannelBuffer != 10_000 {
		t.Fatalf("ChannelBuffer = %d, want 10000", cfg.ChannelBuffer)
	}
	if cfg.EnablePipeline {
		t.Fatalf("EnablePipeline = true, want default false")
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/custom.db")
	t.Setenv("FLUSH_INTERVAL_MS", "1000")
	t.Setenv("ENABLE_ENRICHMENT", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Fatalf("DBPath override not applied")
	}
	if cfg.FlushIntervalMS != 1000 {
		t.Fatalf("FlushIntervalMS override not applied")
	}
	if !cfg.EnableEnrichment {
		t.Fatalf("EnableEnrichment override not applied")
	}
}

func TestLoadProducerOverlayEmptyPath(t *testing.T) {
	overlay, err := LoadProducerOverlay("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overlay.Producers) != 0 {
		t.Fatalf("expected zero-value overlay for empty path")
	}
}

// Package config loads runtime knobs from the environment, following the
// teacher's env.go/config.go split: small getEnv* helpers plus one Config
// struct populated by a single loader. Unlike the teacher's dependency-free
// .env scanner, this loads .env with joho/godotenv (already in the wider
// example pack's stack) since nothing here needs the teacher's "ignore
// secrets the Go process doesn't use" carve-out.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime knob spec §6 names.
type Config struct {
	DBPath string

	ChannelBuffer int

	FlushIntervalMS    int
	PriceIntervalMS    int
	MetadataIntervalMS int

	EnablePipeline   bool
	EnableEnrichment bool

	MetricsAddr string

	ProducerEndpoint string
	ProducerAuthToken string
	ProducersFile     string

	ScorerIntervalMS int

	CaptureBackend string // "sqlite" | "jsonl", legacy §6 CLI surface
	CaptureOutPath string
}

// Load reads .env (if present) via godotenv, then builds a Config from the
// process environment, applying spec §6's defaults for any unset key.
func Load() (Config, error) {
	// godotenv.Load returns an error if the file is missing; that's fine,
	// env vars set another way (container, CI) are still honored below.
	_ = godotenv.Load()

	cfg := Config{
		DBPath:              getEnv("DB_PATH", "./pipeline.db"),
		ChannelBuffer:       getEnvInt("CHANNEL_BUFFER", 10_000),
		FlushIntervalMS:     getEnvInt("FLUSH_INTERVAL_MS", 5_000),
		PriceIntervalMS:     getEnvInt("PRICE_INTERVAL_MS", 10_000),
		MetadataIntervalMS:  getEnvInt("METADATA_INTERVAL_MS", 60_000),
		EnablePipeline:      getEnvBool("ENABLE_PIPELINE", false),
		EnableEnrichment:    getEnvBool("ENABLE_ENRICHMENT", false),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		ProducerEndpoint:    getEnv("PRODUCER_ENDPOINT", ""),
		ProducerAuthToken:   getEnv("PRODUCER_AUTH_TOKEN", ""),
		ProducersFile:       getEnv("PRODUCERS_FILE", ""),
		ScorerIntervalMS:    getEnvInt("SCORER_INTERVAL_MS", 300_000),
		CaptureBackend:      getEnv("CAPTURE_BACKEND", "sqlite"),
		CaptureOutPath:      getEnv("CAPTURE_OUT_PATH", "./capture.jsonl"),
	}
	return cfg, nil
}

// ProducerOverlay is the optional YAML shape for PRODUCERS_FILE, letting an
// operator list producer websocket endpoints without one env var per
// producer. Grounded on the same "supplement env with a structured file"
// need the teacher's env.go documents for the Python sidecar's .env.
type ProducerOverlay struct {
	Producers []ProducerEntry `yaml:"producers"`
}

type ProducerEntry struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	Program  string `yaml:"program"`
}

// LoadProducerOverlay reads and parses ProducersFile if set; returns a zero
// ProducerOverlay (no error) if the path is empty, matching the teacher's
// "absence just means defaults" convention.
func LoadProducerOverlay(path string) (ProducerOverlay, error) {
	var overlay ProducerOverlay
	if path == "" {
		return overlay, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return overlay, err
	}
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return overlay, err
	}
	return overlay, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

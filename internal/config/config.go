// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the ops HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ScrobblesPath is the raw listening-history CSV consumed by the catalog
	// and watched by the delta monitor.
	ScrobblesPath string `koanf:"scrobbles_path"`

	// CheckpointDir holds per-range checkpoint files for resumable runs.
	CheckpointDir string `koanf:"checkpoint_dir"`

	// DatasetPath is the canonical enriched dataset written after each merge.
	DatasetPath string `koanf:"dataset_path"`

	// UpdateCachePath stores the delta monitor's recent update events.
	UpdateCachePath string `koanf:"update_cache_path"`

	// WorkerCount sets the number of parallel enrichment workers.
	WorkerCount int `koanf:"worker_count"`

	// BatchSize is the number of catalog items checkpointed together.
	BatchSize int `koanf:"batch_size"`

	// CallDelayMS is the per-worker minimum delay between provider calls.
	CallDelayMS int `koanf:"call_delay_ms"`

	// MonitorIntervalSec is the delta monitor's periodic check interval.
	MonitorIntervalSec int `koanf:"monitor_interval_sec"`

	// ProviderLatencyMinMS and ProviderLatencyMaxMS bound the simulated
	// provider's response latency when no real provider is configured.
	ProviderLatencyMinMS int `koanf:"provider_latency_min_ms"`
	ProviderLatencyMaxMS int `koanf:"provider_latency_max_ms"`
}

// Worker pool bounds mirror the upstream providers' published rate limits:
// four paced workers is a safe default, and more than eight starts tripping
// them regardless of pacing.
const (
	defaultWorkerCount = 4
	maxWorkerCount     = 8
)

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		ScrobblesPath:        "data/scrobbles.csv",
		CheckpointDir:        "data/checkpoints",
		DatasetPath:          "data/enriched.csv",
		UpdateCachePath:      "data/updates.json",
		WorkerCount:          defaultWorkerCount,
		BatchSize:            500,
		CallDelayMS:          100,
		MonitorIntervalSec:   300,
		ProviderLatencyMinMS: 20,
		ProviderLatencyMaxMS: 80,
	}
	return c
}

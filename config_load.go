package costgate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml). Fields left unset in
// the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness. Construction-time
// validation is the only place the layer reports errors: at runtime every
// operation returns sentinel values (miss, denied, not-a-duplicate), never
// an error.
func ValidateConfig(cfg Config) error {
	if cfg.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be > 0, got %d", cfg.MaxEntries)
	}
	if cfg.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("default_ttl_seconds must be > 0, got %d", cfg.DefaultTTLSeconds)
	}
	if cfg.CleanupIntervalMs < 0 {
		return fmt.Errorf("cleanup_interval_ms must be >= 0, got %d", cfg.CleanupIntervalMs)
	}
	if cfg.WindowMs <= 0 {
		return fmt.Errorf("window_ms must be > 0, got %d", cfg.WindowMs)
	}
	if cfg.DeduplicationWindowMs <= 0 {
		return fmt.Errorf("deduplication_window_ms must be > 0, got %d", cfg.DeduplicationWindowMs)
	}
	// MaxRequestsPerWindow <= 0 is legal: it means "always rate-limited".

	for name, class := range cfg.BudgetClasses {
		if err := class.Validate(); err != nil {
			return fmt.Errorf("budget class %q: %w", name, err)
		}
	}

	switch cfg.UsageLog.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown usage_log driver %q: use sqlite or postgres", cfg.UsageLog.Driver)
	}
	if cfg.UsageLog.Driver == "postgres" && strings.TrimSpace(cfg.UsageLog.DSN) == "" {
		return fmt.Errorf("usage_log driver postgres requires a dsn")
	}

	return nil
}

package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quotefeed/pkg/confkit"
)

const (
	defaultInterval        = 5 * time.Minute
	defaultLockTTL         = 10 * time.Minute
	defaultRetentionDays   = 90
	defaultCleanupInterval = 24 * time.Hour
)

// Config drives the ingestion job: cycle cadence, lock TTL, retention and
// the optional cycle journal.
type Config struct {
	IntervalRaw        string        `yaml:"interval"`
	Interval           time.Duration `yaml:"-"`
	LockTTLRaw         string        `yaml:"lock_ttl"`
	LockTTL            time.Duration `yaml:"-"`
	CleanupIntervalRaw string        `yaml:"cleanup_interval"`
	CleanupInterval    time.Duration `yaml:"-"`
	RetentionDays      int           `yaml:"retention_days"`
	JournalDir         string        `yaml:"journal_dir"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ingest config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ingest config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal ingest config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	durations := []struct {
		raw      string
		name     string
		dst      *time.Duration
		fallback time.Duration
	}{
		{c.IntervalRaw, "interval", &c.Interval, defaultInterval},
		{c.LockTTLRaw, "lock_ttl", &c.LockTTL, defaultLockTTL},
		{c.CleanupIntervalRaw, "cleanup_interval", &c.CleanupInterval, defaultCleanupInterval},
	}
	for _, entry := range durations {
		raw := strings.TrimSpace(os.ExpandEnv(entry.raw))
		if raw == "" {
			*entry.dst = entry.fallback
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("ingest config: invalid %s %q: %w", entry.name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("ingest config: %s must be positive, got %s", entry.name, d)
		}
		*entry.dst = d
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("ingest config: retention_days cannot be negative")
	}
	c.JournalDir = strings.TrimSpace(os.ExpandEnv(c.JournalDir))
	return nil
}

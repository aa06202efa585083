package quote

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quotefeed/pkg/confkit"
	"quotefeed/pkg/quote/binance"
	"quotefeed/pkg/ratelimit"
	"quotefeed/pkg/retry"
)

// HostConfig names one upstream mirror.
type HostConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// Config describes the quote source: mirror hosts in failover order, the
// outbound request budget, and the supported symbol set.
type Config struct {
	Hosts   []HostConfig `yaml:"hosts"`
	Symbols []SymbolSpec `yaml:"symbols"`

	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MinIntervalRaw string        `yaml:"min_interval"`
	MinInterval    time.Duration `yaml:"-"`
	BaseDelayRaw   string        `yaml:"base_delay"`
	BaseDelay      time.Duration `yaml:"-"`
	CooldownRaw    string        `yaml:"cooldown"`
	Cooldown       time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quote config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read quote config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal quote config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	for i := range c.Hosts {
		c.Hosts[i].Name = strings.TrimSpace(os.ExpandEnv(c.Hosts[i].Name))
		c.Hosts[i].BaseURL = strings.TrimSpace(os.ExpandEnv(c.Hosts[i].BaseURL))
	}
	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{c.HTTPTimeoutRaw, "http_timeout", &c.HTTPTimeout},
		{c.MinIntervalRaw, "min_interval", &c.MinInterval},
		{c.BaseDelayRaw, "base_delay", &c.BaseDelay},
		{c.CooldownRaw, "cooldown", &c.Cooldown},
	}
	for _, entry := range durations {
		raw := strings.TrimSpace(os.ExpandEnv(entry.raw))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("quote config: invalid %s %q: %w", entry.name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("quote config: %s must be positive, got %s", entry.name, d)
		}
		*entry.dst = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("quote config: hosts cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Hosts))
	for i, host := range c.Hosts {
		if host.Name == "" {
			return fmt.Errorf("quote config: host %d must specify name", i)
		}
		if host.BaseURL == "" {
			return fmt.Errorf("quote config: host %s must specify base_url", host.Name)
		}
		if _, dup := seen[host.Name]; dup {
			return fmt.Errorf("quote config: duplicate host name %s", host.Name)
		}
		seen[host.Name] = struct{}{}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("quote config: max_retries cannot be negative")
	}
	if _, err := NewSymbolSet(c.Symbols); err != nil {
		return err
	}
	return nil
}

// SymbolSet builds the validated symbol set.
func (c *Config) SymbolSet() (*SymbolSet, error) {
	return NewSymbolSet(c.Symbols)
}

// BuildSource assembles the full fetch pipeline: one governed adapter per
// mirror host behind a retry/failover controller. The rate gate is shared
// across hosts so the outbound budget holds through failover.
func (c *Config) BuildSource() (Source, error) {
	symbols, err := c.SymbolSet()
	if err != nil {
		return nil, err
	}
	gate := ratelimit.NewMinInterval(c.MinInterval)
	handler := retry.New(retry.Config{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
		Cooldown:   c.Cooldown,
	})

	sources := make([]Source, 0, len(c.Hosts))
	for _, host := range c.Hosts {
		opts := []binance.Option{binance.WithBaseURL(host.BaseURL)}
		if c.HTTPTimeout > 0 {
			opts = append(opts, binance.WithTimeout(c.HTTPTimeout))
		}
		client := binance.NewClient(opts...)
		sources = append(sources, NewAdapter(host.Name, client, symbols, gate))
	}
	return NewFailover(handler, sources...), nil
}

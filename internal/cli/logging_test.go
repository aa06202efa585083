package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quotefeed/internal/config"
	"quotefeed/internal/ingest"
	"quotefeed/pkg/confkit"
)

func TestConfigSummaryLines(t *testing.T) {
	cfg := &config.Config{
		Env: "dev",
		Postgres: config.PostgresConf{
			DSN: "postgres://quotefeed@localhost/quotefeed",
		},
		TTL: config.CacheTTL{Short: 10, Medium: 60, Long: 300},
		Ingest: confkit.Section[ingest.Config]{
			File: "etc/ingest.yaml",
			Value: &ingest.Config{
				Interval:      5 * time.Minute,
				RetentionDays: 90,
			},
		},
	}

	out := strings.Join(ConfigSummaryLines(cfg), "\n")
	assert.Contains(t, out, "Environment: dev")
	assert.Contains(t, out, "Postgres: configured")
	assert.Contains(t, out, "Redis: not configured")
	assert.Contains(t, out, "Quote config: not configured")
	assert.Contains(t, out, "Ingest config: etc/ingest.yaml")
	assert.Contains(t, out, "Ingest interval: 5m0s")
	assert.Contains(t, out, "Retention: 90 days")
}

func TestConfigSummaryLinesNil(t *testing.T) {
	lines := ConfigSummaryLines(nil)
	assert.Equal(t, []string{"Configuration: <nil>"}, lines)
}

package cli

import (
	"fmt"
	"strings"

	"quotefeed/internal/config"
	"quotefeed/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		sectionLine("Quote config", cfg.Quote),
		sectionLine("Ingest config", cfg.Ingest),
	}

	if cfg.Quote.Value != nil {
		lines = append(lines,
			fmt.Sprintf("Quote hosts: %d", len(cfg.Quote.Value.Hosts)),
			fmt.Sprintf("Quote symbols: %d", len(cfg.Quote.Value.Symbols)),
		)
	}
	if cfg.Ingest.Value != nil {
		lines = append(lines,
			fmt.Sprintf("Ingest interval: %s", cfg.Ingest.Value.Interval),
			fmt.Sprintf("Retention: %d days", cfg.Ingest.Value.RetentionDays),
		)
	}

	return lines
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}

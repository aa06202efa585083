package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "quotefeed/internal/cache"
)

// MarkdownConfig is the externally managed display adjustment singleton.
// This service only reads it; the admin surface owns writes.
type MarkdownConfig struct {
	Percent decimal.Decimal
	Active  bool
}

// SettingsStore reads display settings with a medium-TTL cache in front.
type SettingsStore struct {
	conn  sqlx.SqlConn
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// NewSettingsStore wires a settings reader.
func NewSettingsStore(conn sqlx.SqlConn, cache gocache.Cache, ttl cachekeys.TTLSet) *SettingsStore {
	return &SettingsStore{conn: conn, cache: cache, ttl: ttl}
}

type settingsRow struct {
	Percentage string `db:"percentage"`
	Active     bool   `db:"active"`
}

type cachedSettings struct {
	Percentage string `json:"percentage"`
	Active     bool   `json:"active"`
}

// MarkdownSettings returns the current markdown configuration. A missing
// row means markdown was never configured: inactive, zero percent.
func (s *SettingsStore) MarkdownSettings(ctx context.Context) (MarkdownConfig, error) {
	if cached, ok := s.cachedSettings(ctx); ok {
		return cached, nil
	}

	const q = `SELECT percentage, active FROM display_settings ORDER BY id LIMIT 1`

	var row settingsRow
	if err := s.conn.QueryRowCtx(ctx, &row, q); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return MarkdownConfig{}, nil
		}
		return MarkdownConfig{}, fmt.Errorf("store: display settings: %w", err)
	}
	percent, err := decimal.NewFromString(row.Percentage)
	if err != nil {
		return MarkdownConfig{}, fmt.Errorf("store: corrupt markdown percentage: %w", err)
	}
	cfg := MarkdownConfig{Percent: percent, Active: row.Active}
	s.cacheSettings(ctx, cfg)
	return cfg, nil
}

func (s *SettingsStore) cacheSettings(ctx context.Context, cfg MarkdownConfig) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.DisplaySettingsTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.DisplaySettingsKey()
	payload := cachedSettings{Percentage: cfg.Percent.String(), Active: cfg.Active}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("store: cache settings err=%v", err)
	}
}

func (s *SettingsStore) cachedSettings(ctx context.Context) (MarkdownConfig, bool) {
	if s.cache == nil {
		return MarkdownConfig{}, false
	}
	var payload cachedSettings
	if err := s.cache.GetCtx(ctx, cachekeys.DisplaySettingsKey(), &payload); err != nil {
		if !s.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("store: cache settings read err=%v", err)
		}
		return MarkdownConfig{}, false
	}
	percent, err := decimal.NewFromString(payload.Percentage)
	if err != nil {
		return MarkdownConfig{}, false
	}
	return MarkdownConfig{Percent: percent, Active: payload.Active}, true
}

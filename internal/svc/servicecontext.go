package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "quotefeed/internal/cache"
	"quotefeed/internal/config"
	"quotefeed/internal/display"
	"quotefeed/internal/ingest"
	"quotefeed/internal/joblock"
	"quotefeed/internal/store"
	"quotefeed/pkg/journal"
	quotepkg "quotefeed/pkg/quote"
)

// ServiceContext wires configuration into the concrete services the daemon
// runs: the quote source chain, the price and settings stores, the display
// adjuster and the ingestion job.
type ServiceContext struct {
	Config config.Config

	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cachekeys.TTLSet

	Symbols       *quotepkg.SymbolSet
	Source        quotepkg.Source
	PriceStore    *store.PriceStore
	SettingsStore *store.SettingsStore
	Adjuster      *display.Adjuster
	Lock          *joblock.Lock
	Journal       *journal.Writer
	Job           *ingest.Job
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		db, err := conn.RawDB()
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
		if c.Postgres.MaxOpen > 0 {
			db.SetMaxOpenConns(c.Postgres.MaxOpen)
		}
		if c.Postgres.MaxIdle > 0 {
			db.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
		svc.DBConn = conn
	}
	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		svc.Cache = cache.NewNode(rds, syncx.NewSingleFlight(), cache.NewStat(cachekeys.Namespace), store.ErrNotFound)
	}

	if c.Quote.Value == nil {
		log.Fatalf("quote config is required (set Quote.File)")
	}
	quoteCfg := c.Quote.Value

	symbols, err := quoteCfg.SymbolSet()
	if err != nil {
		log.Fatalf("failed to build symbol set: %v", err)
	}
	svc.Symbols = symbols

	source, err := quoteCfg.BuildSource()
	if err != nil {
		log.Fatalf("failed to build quote source: %v", err)
	}
	svc.Source = source

	svc.PriceStore = store.NewPriceStore(store.Config{
		Conn:    svc.DBConn,
		Cache:   svc.Cache,
		TTL:     svc.TTL,
		Symbols: symbols,
	})
	svc.SettingsStore = store.NewSettingsStore(svc.DBConn, svc.Cache, svc.TTL)
	svc.Adjuster = display.NewAdjuster(svc.SettingsStore, symbols)

	ingestCfg := ingest.Config{}
	if c.Ingest.Value != nil {
		ingestCfg = *c.Ingest.Value
	}
	svc.Lock = joblock.New(ingestCfg.LockTTL)
	if ingestCfg.JournalDir != "" {
		svc.Journal = journal.NewWriter(ingestCfg.JournalDir)
	}

	job, err := ingest.NewJob(ingestCfg, svc.Source, svc.Lock, svc.PriceStore, svc.Journal)
	if err != nil {
		log.Fatalf("failed to build ingest job: %v", err)
	}
	svc.Job = job

	return svc
}

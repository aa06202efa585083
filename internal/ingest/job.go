package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quotefeed/internal/joblock"
	"quotefeed/pkg/journal"
	"quotefeed/pkg/quote"
)

// Store is the slice of the persistence layer the job needs.
type Store interface {
	StorePrices(ctx context.Context, prices quote.PriceMap, source string) (int, error)
	CleanupOlderThan(ctx context.Context, days int) (int64, error)
}

// CycleResult summarises one ingestion cycle.
type CycleResult struct {
	Skipped    bool
	Stored     int
	Provenance string
	Elapsed    time.Duration
}

// Status is a point-in-time snapshot of the job.
type Status struct {
	Running    bool
	LastRun    time.Time
	LastResult CycleResult
	LastErr    string
	Runs       int
	Skips      int
	Failures   int
}

// Job runs the fetch-validate-store cycle on a fixed cadence, holding the
// run lock for the duration of each cycle. Retention cleanup runs on its
// own, much slower, ticker.
type Job struct {
	cfg     Config
	source  quote.Source
	lock    *joblock.Lock
	store   Store
	journal *journal.Writer

	nowFn func() time.Time

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastRun    time.Time
	lastResult CycleResult
	lastErr    string
	runs       int
	skips      int
	failures   int
	cycle      int
}

// NewJob wires an ingestion job. The journal writer may be nil, in which
// case no cycle records are written.
func NewJob(cfg Config, source quote.Source, lock *joblock.Lock, store Store, jw *journal.Writer) (*Job, error) {
	if source == nil {
		return nil, fmt.Errorf("ingest: source is required")
	}
	if lock == nil {
		return nil, fmt.Errorf("ingest: lock is required")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	return &Job{
		cfg:     cfg,
		source:  source,
		lock:    lock,
		store:   store,
		journal: jw,
		nowFn:   time.Now,
	}, nil
}

// Start launches the cycle loop. It returns an error if the job is already
// running. The loop runs one cycle immediately, then on every tick until
// ctx is cancelled or Stop is called.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("ingest: job already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.running = true
	j.cancel = cancel
	j.done = make(chan struct{})
	done := j.done
	j.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			j.mu.Lock()
			j.running = false
			j.mu.Unlock()
		}()
		j.loop(runCtx)
	}()
	return nil
}

// Stop halts the cycle loop and waits for the in-flight cycle to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Status reports the job's counters and last outcome.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		Running:    j.running,
		LastRun:    j.lastRun,
		LastResult: j.lastResult,
		LastErr:    j.lastErr,
		Runs:       j.runs,
		Skips:      j.skips,
		Failures:   j.failures,
	}
}

// TriggerTestRun executes a single cycle outside the ticker cadence.
func (j *Job) TriggerTestRun(ctx context.Context) (CycleResult, error) {
	return j.RunCycle(ctx)
}

func (j *Job) loop(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(j.cfg.CleanupInterval)
	defer cleanup.Stop()

	logx.WithContext(ctx).Infof("ingest: loop started, interval=%s retention=%dd", j.cfg.Interval, j.cfg.RetentionDays)
	j.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logx.WithContext(ctx).Infof("ingest: loop stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		case <-cleanup.C:
			j.runCleanup(ctx)
		}
	}
}

func (j *Job) runOnce(ctx context.Context) {
	if _, err := j.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.WithContext(ctx).Errorf("ingest: cycle failed: %v", err)
	}
}

func (j *Job) runCleanup(ctx context.Context) {
	if j.cfg.RetentionDays <= 0 {
		return
	}
	removed, err := j.store.CleanupOlderThan(ctx, j.cfg.RetentionDays)
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest: retention cleanup failed: %v", err)
		return
	}
	logx.WithContext(ctx).Infof("ingest: retention cleanup removed %d snapshots older than %d days", removed, j.cfg.RetentionDays)
}

// RunCycle executes one fetch-validate-store cycle. A cycle that finds the
// run lock held is a skip, not an error. The lock is always released when
// the cycle returns, whatever the outcome.
func (j *Job) RunCycle(ctx context.Context) (CycleResult, error) {
	start := j.nowFn()
	j.mu.Lock()
	j.cycle++
	cycleNum := j.cycle
	j.mu.Unlock()

	token, err := j.lock.Acquire()
	if err != nil {
		if errors.Is(err, joblock.ErrAlreadyLocked) {
			logx.WithContext(ctx).Infof("ingest: cycle %d skipped, lock held", cycleNum)
			res := CycleResult{Skipped: true, Elapsed: j.nowFn().Sub(start)}
			j.record(ctx, cycleNum, res, nil, nil)
			return res, nil
		}
		return CycleResult{}, fmt.Errorf("ingest: acquire lock: %w", err)
	}
	defer j.lock.Release(token)

	prices, provenance, err := j.source.FetchPrices(ctx)
	if err != nil {
		res := CycleResult{Provenance: provenance, Elapsed: j.nowFn().Sub(start)}
		j.record(ctx, cycleNum, res, nil, err)
		return res, fmt.Errorf("ingest: fetch prices: %w", err)
	}
	if len(prices) == 0 {
		err := fmt.Errorf("ingest: source %s returned no usable prices", j.source.Name())
		res := CycleResult{Provenance: provenance, Elapsed: j.nowFn().Sub(start)}
		j.record(ctx, cycleNum, res, nil, err)
		return res, err
	}

	stored, err := j.store.StorePrices(ctx, prices, provenance)
	if err != nil {
		res := CycleResult{Provenance: provenance, Elapsed: j.nowFn().Sub(start)}
		j.record(ctx, cycleNum, res, prices, err)
		return res, fmt.Errorf("ingest: store prices: %w", err)
	}

	res := CycleResult{Stored: stored, Provenance: provenance, Elapsed: j.nowFn().Sub(start)}
	j.record(ctx, cycleNum, res, prices, nil)
	logx.WithContext(ctx).Infof("ingest: cycle %d stored %d prices from %s in %s", cycleNum, stored, provenance, res.Elapsed)
	return res, nil
}

func (j *Job) record(ctx context.Context, cycleNum int, res CycleResult, prices quote.PriceMap, runErr error) {
	j.mu.Lock()
	j.lastRun = j.nowFn()
	j.lastResult = res
	switch {
	case res.Skipped:
		j.skips++
	case runErr != nil:
		j.failures++
		j.lastErr = runErr.Error()
	default:
		j.runs++
		j.lastErr = ""
	}
	j.mu.Unlock()

	if j.journal == nil {
		return
	}
	rec := &journal.CycleRecord{
		Timestamp:   j.nowFn().UTC(),
		CycleNumber: cycleNum,
		Provenance:  res.Provenance,
		Stored:      res.Stored,
		Skipped:     res.Skipped,
		Success:     runErr == nil && !res.Skipped,
		Elapsed:     res.Elapsed.String(),
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	if len(prices) > 0 {
		rec.Prices = make(map[string]string, len(prices))
		for symbol, price := range prices {
			rec.Prices[symbol] = price.String()
		}
	}
	if _, err := j.journal.WriteCycle(rec); err != nil {
		logx.WithContext(ctx).Errorf("ingest: journal write failed: %v", err)
	}
}

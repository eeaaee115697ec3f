// Package synchronizer keeps the node table in step with the mempool.space
// connectivity rankings.
package synchronizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/narvanalabs/lnsync/internal/mempool"
	"github.com/narvanalabs/lnsync/internal/metrics"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

// Cycle phases, used in logs and results.
const (
	PhaseFetch     = "fetch"
	PhaseReconcile = "reconcile"
)

// State is the current activity of the synchronizer.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
)

// Fetcher retrieves the current node rankings.
type Fetcher interface {
	Fetch(ctx context.Context) ([]mempool.Node, error)
}

// NodeReconciler persists a fetched batch.
type NodeReconciler interface {
	Reconcile(ctx context.Context, nodes []mempool.Node) error
}

// Config holds synchronizer settings.
type Config struct {
	// Interval between the start of consecutive scheduled cycles.
	Interval time.Duration
	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration
	// WriteTimeout bounds the reconcile phase.
	WriteTimeout time.Duration
	// FetchAttempts is the number of fetch attempts per cycle.
	FetchAttempts int
	// RetryInitialInterval is the first backoff delay between fetch attempts.
	RetryInitialInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:             60 * time.Second,
		FetchTimeout:         30 * time.Second,
		WriteTimeout:         30 * time.Second,
		FetchAttempts:        3,
		RetryInitialInterval: time.Second,
	}
}

// Result describes a finished cycle.
type Result struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	// Phase is where the cycle failed. Empty on success.
	Phase   string
	Fetched int
	Err     error
}

// Succeeded reports whether the cycle completed without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Synchronizer runs fetch and reconcile cycles on a fixed interval. Cycles
// never overlap and a failed cycle does not affect the next one.
type Synchronizer struct {
	fetcher    Fetcher
	reconciler NodeReconciler
	cfg        Config
	logger     *slog.Logger

	// cycleMu serializes cycles.
	cycleMu sync.Mutex

	mu      sync.Mutex
	state   State
	last    *Result
	running bool
	started bool

	// stopEarly records a Stop that arrived before the first Start.
	stopEarly bool
	stopChan  chan struct{}
	trigger   chan struct{}
}

// New creates a Synchronizer. A nil cfg uses DefaultConfig.
func New(fetcher Fetcher, reconciler NodeReconciler, cfg *Config, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	c := *cfg
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaults.FetchTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 1
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = defaults.RetryInitialInterval
	}

	return &Synchronizer{
		fetcher:    fetcher,
		reconciler: reconciler,
		cfg:        c,
		logger:     logger,
		state:      StateIdle,
		stopChan:   make(chan struct{}),
		trigger:    make(chan struct{}, 1),
	}
}

// Start runs one cycle immediately and then one per interval until ctx is
// cancelled or Stop is called. Cycle errors are logged and never end the loop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if s.stopEarly {
		s.stopEarly = false
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.started = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	// In-flight cycles are abandoned on Stop.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	s.logger.Info("starting synchronizer",
		"interval", s.cfg.Interval,
		"fetch_timeout", s.cfg.FetchTimeout,
		"write_timeout", s.cfg.WriteTimeout,
		"fetch_attempts", s.cfg.FetchAttempts,
	)

	s.RunCycle(loopCtx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("synchronizer stopped by context")
			s.markStopped()
			return ctx.Err()
		case <-stop:
			s.logger.Info("synchronizer stopped")
			return nil
		case <-ticker.C:
			s.RunCycle(loopCtx)
		case <-s.trigger:
			s.logger.Info("running manually triggered cycle")
			s.RunCycle(loopCtx)
		}
	}
}

// Stop ends the loop started by Start.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if !s.started {
			s.stopEarly = true
		}
		return
	}
	close(s.stopChan)
	s.running = false
}

func (s *Synchronizer) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Trigger queues an extra cycle on the running loop. Requests made while one
// is already queued are coalesced; it reports whether a new one was queued.
func (s *Synchronizer) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// State returns what the synchronizer is currently doing.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the outcome of the most recent cycle, if any.
func (s *Synchronizer) LastResult() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

func (s *Synchronizer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// RunCycle performs a single fetch and reconcile cycle. The returned error is
// informational; the next cycle starts from scratch regardless.
func (s *Synchronizer) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	result := Result{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now(),
	}
	ctx = logger.ContextWithCycleID(ctx, result.CycleID)
	log := (&logger.Logger{Logger: s.logger}).WithContext(ctx)

	defer func() {
		result.Duration = time.Since(result.StartedAt)
		s.mu.Lock()
		s.state = StateIdle
		s.last = &result
		s.mu.Unlock()

		outcome := metrics.OutcomeSuccess
		switch result.Phase {
		case PhaseFetch:
			outcome = metrics.OutcomeFetchError
		case PhaseReconcile:
			outcome = metrics.OutcomeReconcileError
		}
		metrics.RecordSyncCycle(outcome, result.Duration, result.Fetched)
	}()

	s.setState(StateFetching)
	nodes, err := s.fetch(ctx, log.Logger)
	if err != nil {
		result.Phase = PhaseFetch
		result.Err = err
		log.WithError(err).Error("sync cycle failed", "phase", PhaseFetch)
		return err
	}
	result.Fetched = len(nodes)

	s.setState(StateReconciling)
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.reconciler.Reconcile(writeCtx, nodes); err != nil {
		result.Phase = PhaseReconcile
		result.Err = err
		log.WithError(err).Error("sync cycle failed", "phase", PhaseReconcile)
		return err
	}

	log.Info("sync cycle completed",
		"nodes", len(nodes),
		"duration", time.Since(result.StartedAt),
	)
	return nil
}

// fetch calls the fetcher, retrying transient failures with exponential
// backoff up to the configured number of attempts.
func (s *Synchronizer) fetch(ctx context.Context, log *slog.Logger) ([]mempool.Node, error) {
	var nodes []mempool.Node

	operation := func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()

		result, err := s.fetcher.Fetch(fetchCtx)
		metrics.RecordFetchAttempt(err)
		if err != nil {
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		nodes = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(s.cfg.FetchAttempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		log.Warn("fetch attempt failed, retrying",
			"error", err,
			"retry_in", wait,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return nodes, nil
}

// retryable reports whether a failed fetch is worth another attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var decodeErr *mempool.DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	var transportErr *mempool.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Temporary()
	}
	return true
}

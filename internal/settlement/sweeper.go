package settlement

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bazaarhq/settld/internal/alerts"
	"github.com/bazaarhq/settld/internal/metrics"
	"github.com/bazaarhq/settld/internal/traces"
)

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Released   int `json:"released"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Sweeper periodically releases escrowed transactions whose hold period has
// elapsed. Multiple sweepers may run against the same store: each candidate
// is claimed with a version-guarded write, so a transaction is released at
// most once no matter how many workers see it.
type Sweeper struct {
	service   *Service
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper over the given service.
func NewSweeper(service *Service, interval time.Duration, batchSize int, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Start launches the background sweep loop. Calling Start on a running
// sweeper is a no-op.
func (s *Sweeper) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("escrow sweeper started", "interval", s.interval, "batch_size", s.batchSize)
}

// Stop halts the sweep loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("escrow sweeper stopped")
}

// Running reports whether the background loop is active.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("escrow sweeper panicked", "panic", r)
			s.running.Store(false)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			result, err := s.RunSweep(ctx)
			cancel()
			if err != nil {
				s.logger.Error("escrow sweep failed", "error", err)
				continue
			}
			if result.Candidates > 0 {
				s.logger.Info("escrow sweep finished",
					"candidates", result.Candidates,
					"released", result.Released,
					"skipped", result.Skipped,
					"failed", result.Failed,
				)
			}
		}
	}
}

// RunSweep executes one sweep pass: list due candidates, then claim and
// release each one. A candidate that changed since listing (new dispute,
// concurrent release, renegotiated release date) is skipped; a claim that
// errors is counted as failed and does not abort the rest of the batch.
func (s *Sweeper) RunSweep(ctx context.Context) (SweepResult, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.RunSweep")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.service.now()
	candidates, err := s.service.store.ListReleasable(ctx, now, s.batchSize)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Candidates: len(candidates)}
	for _, candidate := range candidates {
		released, err := s.service.autoReleaseOne(ctx, candidate.ID, now)
		switch {
		case err != nil:
			result.Failed++
			metrics.SweepFailedTotal.Inc()
			s.logger.Error("escrow release failed", "transaction_id", candidate.ID, "error", err)
			s.service.alerter.Raise(ctx, alerts.KindSweepItemFailed, candidate.ID,
				"sweep could not release due escrow", map[string]string{
					"error": err.Error(),
				})
		case released:
			result.Released++
			metrics.SweepReleasedTotal.Inc()
		default:
			result.Skipped++
			metrics.SweepSkippedTotal.Inc()
		}
	}
	return result, nil
}

// Package service wires the extraction pipeline to a plan store and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tapdin/planner/internal/adapters/repository"
	"github.com/tapdin/planner/internal/domain/content"
	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/logger"
	"github.com/tapdin/planner/pkg/metrics"
)

// Extractor produces raw text from a submission.
type Extractor interface {
	Extract(ctx context.Context, in content.Input) (model.RawContent, model.Meta, error)
}

// Normalizer turns raw text into an event record.
type Normalizer interface {
	Normalize(ctx context.Context, raw model.RawContent) (model.EventRecord, error)
}

// Result is the outcome of one submission. ID is empty when the record was
// not persisted.
type Result struct {
	ID     string
	Record model.EventRecord
	Meta   model.Meta
}

// Service runs submissions through extract, normalize and store.
type Service struct {
	mu sync.RWMutex

	// Core components
	extractor  Extractor
	normalizer Normalizer
	store      repository.Store

	// Configuration
	storeDriver           string
	systemMetricsInterval time.Duration

	// Counters
	processed atomic.Int64
	failed    atomic.Int64

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreDriver records which backend the store is, for stats.
func WithStoreDriver(name string) Option {
	return func(s *Service) {
		s.storeDriver = name
	}
}

// WithSystemMetricsInterval sets how often runtime metrics are sampled.
func WithSystemMetricsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.systemMetricsInterval = d
		}
	}
}

// New constructs a Service. store may be nil for callers that only use the
// non-persisting path.
func New(extractor Extractor, normalizer Normalizer, store repository.Store, opts ...Option) *Service {
	s := &Service{
		extractor:             extractor,
		normalizer:            normalizer,
		store:                 store,
		storeDriver:           "memory",
		systemMetricsInterval: 15 * time.Second,
		stopCh:                make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins sampling runtime metrics.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.wg.Add(1)
	go s.sampleSystemMetrics(ctx)

	s.started = true
	s.logger.Info(ctx, "plan service started", logger.String("store", s.storeDriver))
	return nil
}

// Stop stops background work and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "plan service stopped")
}

// Process extracts, normalizes and, when persist is set, stores a submission.
func (s *Service) Process(ctx context.Context, in content.Input, persist bool) (Result, error) {
	res, err := s.process(ctx, in, persist)
	if err != nil {
		s.failed.Add(1)
		metrics.RecordPipelineFailure(errs.KindOf(err).String())
		return Result{}, err
	}
	s.processed.Add(1)
	return res, nil
}

func (s *Service) process(ctx context.Context, in content.Input, persist bool) (Result, error) {
	start := time.Now()
	raw, meta, err := s.extractor.Extract(ctx, in)
	metrics.RecordStageLatency("extract", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Result{}, err
	}

	start = time.Now()
	rec, err := s.normalizer.Normalize(ctx, raw)
	metrics.RecordStageLatency("normalize", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Result{}, err
	}

	res := Result{Record: rec, Meta: meta}
	if !persist {
		metrics.RecordRecordExtracted()
		return res, nil
	}

	if s.store == nil {
		return Result{}, errs.NewKind("service.process", errs.ErrStore)
	}
	start = time.Now()
	id, err := s.store.Create(ctx, rec, meta)
	metrics.RecordStageLatency("store", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Result{}, err
	}
	metrics.RecordPlanCreated()
	res.ID = id
	return res, nil
}

// List returns every stored plan, newest first.
func (s *Service) List(ctx context.Context) ([]model.Plan, error) {
	if s.store == nil {
		return nil, errs.NewKind("service.list", errs.ErrStore)
	}
	plans, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	return plans, nil
}

// Delete removes one plan.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return errs.NewKind("service.delete", errs.ErrStore)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordPlanDeleted()
	return nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return errs.NewKind("service.ping", errs.ErrStore)
	}
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":   s.started,
		"store":     s.storeDriver,
		"processed": s.processed.Load(),
		"failed":    s.failed.Load(),
	}

	if s.store != nil {
		if n, err := s.store.Count(ctx); err == nil {
			stats["plans"] = n
			metrics.UpdatePlansTotal(n)
		}
	}
	return stats
}

func (s *Service) sampleSystemMetrics(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			if m.NumGC > 0 {
				metrics.RecordSystemGCPauseTime(float64(m.PauseNs[(m.NumGC+255)%256]) / 1e6)
			}
		}
	}
}

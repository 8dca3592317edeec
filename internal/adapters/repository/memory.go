package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/metrics"
)

// MemoryStore keeps plans in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	plans  map[uuid.UUID]entry
	seq    uint64
	closed bool

	now                   func() time.Time
	metricsUpdateInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// entry remembers insertion order so plans created in the same instant still
// list newest first.
type entry struct {
	plan model.Plan
	seq  uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store and starts its metrics updater,
// which stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		plans:                 make(map[uuid.UUID]entry),
		now:                   time.Now,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Create inserts a plan under a fresh UUID.
func (s *MemoryStore) Create(ctx context.Context, rec model.EventRecord, meta model.Meta) (string, error) {
	const op = "repository.memory.create"
	if err := ctx.Err(); err != nil {
		return "", errs.WrapKind(op, errs.ErrStore, err)
	}

	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errs.WrapKind(op, errs.ErrStore, ErrClosed)
	}
	s.seq++
	s.plans[id] = entry{
		plan: model.Plan{
			ID:        id.String(),
			CreatedAt: s.now().UTC(),
			Meta:      meta,
			Event:     rec,
		},
		seq: s.seq,
	}
	return id.String(), nil
}

// List returns every plan ordered by CreatedAt, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]model.Plan, error) {
	const op = "repository.memory.list"
	if err := ctx.Err(); err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}

	s.mu.RLock()
	entries := make([]entry, 0, len(s.plans))
	for _, e := range s.plans {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.plan.CreatedAt.Equal(b.plan.CreatedAt) {
			return a.plan.CreatedAt.After(b.plan.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]model.Plan, len(entries))
	for i, e := range entries {
		out[i] = e.plan
	}
	return out, nil
}

// Delete removes the plan with the given id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	const op = "repository.memory.delete"
	key, err := ParseID(op, id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.WrapKind(op, errs.ErrStore, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.WrapKind(op, errs.ErrStore, ErrClosed)
	}
	if _, ok := s.plans[key]; !ok {
		return errs.NewKind(op, errs.ErrNotFound)
	}
	delete(s.plans, key)
	return nil
}

// Count returns the number of stored plans.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans), nil
}

// Ping fails only once the store is closed.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errs.WrapKind("repository.memory.ping", errs.ErrStore, ErrClosed)
	}
	return nil
}

// Close stops the metrics updater. Further writes fail.
func (s *MemoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdatePlansTotal(n)
			}
		}
	}()
}

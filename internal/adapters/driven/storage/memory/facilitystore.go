package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.FacilityStore = (*FacilityStore)(nil)
	_ driven.RunStore      = (*RunStore)(nil)
	_ driven.PlanStore     = (*PlanStore)(nil)
)

// FacilityStore is an in-memory implementation of driven.FacilityStore.
type FacilityStore struct {
	mu         sync.RWMutex
	facilities map[string]domain.Facility
	reads      int
}

// NewFacilityStore creates a store holding the given facilities.
func NewFacilityStore(facilities ...domain.Facility) *FacilityStore {
	s := &FacilityStore{facilities: make(map[string]domain.Facility, len(facilities))}
	for _, f := range facilities {
		s.facilities[f.ID] = f
	}
	return s
}

// List returns facilities matching the query, sorted by id unless the query sorts.
func (s *FacilityStore) List(_ context.Context, query *domain.StructuredQuery) ([]domain.Facility, error) {
	s.mu.Lock()
	s.reads++
	all := make([]domain.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		all = append(all, f)
	}
	s.mu.Unlock()

	if query == nil {
		domain.SortFacilities(all, nil)
		return all, nil
	}
	return query.Apply(all), nil
}

// Get retrieves a facility by id.
func (s *FacilityStore) Get(_ context.Context, id string) (*domain.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	f, ok := s.facilities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFacilityNotFound, id)
	}
	return &f, nil
}

// Count returns the number of facilities.
func (s *FacilityStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facilities), nil
}

// Replace swaps the whole dataset.
func (s *FacilityStore) Replace(_ context.Context, facilities []domain.Facility) error {
	next := make(map[string]domain.Facility, len(facilities))
	for _, f := range facilities {
		if err := f.Validate(); err != nil {
			return err
		}
		next[f.ID] = f
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities = next
	return nil
}

// Reads returns how many read calls the store has served.
func (s *FacilityStore) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

// RunStore is an append-only in-memory run record store.
type RunStore struct {
	mu   sync.RWMutex
	runs []domain.RunRecord
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{}
}

// Append writes a run record.
func (s *RunStore) Append(_ context.Context, record domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, record)
	return nil
}

// List returns the newest records first.
func (s *RunStore) List(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	out := append([]domain.RunRecord(nil), s.runs...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].StartTime, out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PlanStore is an in-memory plan store.
type PlanStore struct {
	mu    sync.RWMutex
	plans []domain.Plan
}

// NewPlanStore creates an empty plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{}
}

// Save stores a plan, replacing one with the same id.
func (s *PlanStore) Save(_ context.Context, plan domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.plans {
		if s.plans[i].ID == plan.ID {
			s.plans[i] = plan
			return nil
		}
	}
	s.plans = append(s.plans, plan)
	return nil
}

// Get retrieves a plan by id.
func (s *PlanStore) Get(_ context.Context, id string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, id)
}

// List returns the newest plans first.
func (s *PlanStore) List(_ context.Context, limit int) ([]domain.Plan, error) {
	s.mu.RLock()
	out := append([]domain.Plan(nil), s.plans...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newer(a, b time.Time) bool {
	return a.After(b)
}

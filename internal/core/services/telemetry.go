package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure TelemetryRecorder implements the interface.
var _ driving.TelemetryService = (*TelemetryRecorder)(nil)

// persistTimeout bounds a single run record write.
const persistTimeout = 5 * time.Second

// TelemetryRecorder persists run records off the request path.
// Record never blocks: a full buffer drops the record, and a failed write is
// logged. A nil recorder discards everything.
type TelemetryRecorder struct {
	store driven.RunStore

	mu     sync.RWMutex
	closed bool
	queue  chan domain.RunRecord
	done   chan struct{}
}

// NewTelemetryRecorder starts the background writer.
func NewTelemetryRecorder(store driven.RunStore, buffer int) *TelemetryRecorder {
	if buffer <= 0 {
		buffer = 1
	}
	r := &TelemetryRecorder{
		store: store,
		queue: make(chan domain.RunRecord, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// Record queues a run record and returns its run id.
func (r *TelemetryRecorder) Record(record domain.RunRecord) string {
	if record.RunID == "" {
		record.RunID = NewRunID()
	}
	if r == nil {
		return record.RunID
	}
	record = freeze(record)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		logger.Warn("telemetry closed, dropping run %s", record.RunID)
		return record.RunID
	}
	select {
	case r.queue <- record:
	default:
		logger.Warn("telemetry buffer full, dropping run %s", record.RunID)
	}
	return record.RunID
}

// Runs returns up to limit records, newest first.
func (r *TelemetryRecorder) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if r == nil || r.store == nil {
		return []domain.RunRecord{}, nil
	}
	if limit <= 0 {
		limit = domain.DefaultRunLimit
	}
	if limit > domain.MaxRunLimit {
		limit = domain.MaxRunLimit
	}
	runs, err := r.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close stops accepting records and waits for queued ones to be written.
func (r *TelemetryRecorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *TelemetryRecorder) run() {
	defer close(r.done)
	for record := range r.queue {
		r.persist(record)
	}
}

func (r *TelemetryRecorder) persist(record domain.RunRecord) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.Append(ctx, record); err != nil {
		logger.Warn("persist run %s: %v", record.RunID, err)
		return
	}
	logger.Debug("persisted run %s (%s)", record.RunID, record.Type)
}

// freeze copies the maps so later caller mutation cannot change the record.
func freeze(record domain.RunRecord) domain.RunRecord {
	params := make(map[string]string, len(record.Params))
	for k, v := range record.Params {
		params[k] = v
	}
	metrics := make(map[string]float64, len(record.Metrics))
	for k, v := range record.Metrics {
		metrics[k] = v
	}
	record.Params = params
	record.Metrics = metrics
	if record.RunName == "" {
		record.RunName = string(record.Type)
	}
	if record.StartTime.IsZero() {
		record.StartTime = time.Now().UTC()
	}
	return record
}

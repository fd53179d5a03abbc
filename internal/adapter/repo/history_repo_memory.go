package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"postergen/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryRepositoryMemory keeps the newest records in process memory.
type HistoryRepositoryMemory struct {
	mu       sync.RWMutex
	capacity int
	records  []domain.GenerationRecord
}

func NewHistoryRepositoryMemory(capacity int) *HistoryRepositoryMemory {
	return &HistoryRepositoryMemory{capacity: clampLimit(capacity)}
}

func (r *HistoryRepositoryMemory) Save(_ context.Context, rec *domain.GenerationRecord) error {
	prepareRecord(rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]domain.GenerationRecord{cloneRecord(*rec)}, r.records...)
	if len(r.records) > r.capacity {
		r.records = r.records[:r.capacity]
	}
	return nil
}

func (r *HistoryRepositoryMemory) ListRecent(_ context.Context, limit int) ([]domain.GenerationRecord, error) {
	limit = clampLimit(limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]domain.GenerationRecord, 0, limit)
	for _, rec := range r.records[:limit] {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *HistoryRepositoryMemory) Get(_ context.Context, id string) (*domain.GenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			c := cloneRecord(rec)
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func prepareRecord(rec *domain.GenerationRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ImageURLs == nil {
		rec.ImageURLs = []string{}
	}
	if rec.Failures == nil {
		rec.Failures = []string{}
	}
}

func cloneRecord(rec domain.GenerationRecord) domain.GenerationRecord {
	rec.ImageURLs = append([]string(nil), rec.ImageURLs...)
	rec.Failures = append([]string(nil), rec.Failures...)
	return rec
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}

var (
	_ domain.HistoryRepository = (*HistoryRepositoryMemory)(nil)
	_ domain.HistoryRepository = (*HistoryRepositoryRedis)(nil)
	_ domain.HistoryRepository = (*HistoryRepositoryPG)(nil)
)

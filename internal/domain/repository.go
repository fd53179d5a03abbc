package domain

import "context"

// HistoryRepository persists generation records. Get returns ErrNotFound for unknown ids.
type HistoryRepository interface {
	Save(ctx context.Context, rec *GenerationRecord) error
	ListRecent(ctx context.Context, limit int) ([]GenerationRecord, error)
	Get(ctx context.Context, id string) (*GenerationRecord, error)
}

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"postergen/internal/domain"
)

const (
	historyKeyPrefix = "history:"
	historyRecentKey = "history:recent"
)

// HistoryRepositoryRedis stores records as JSON strings and keeps a capped list of recent ids.
type HistoryRepositoryRedis struct {
	rdb      *redis.Client
	capacity int64
	ttl      time.Duration
}

// NewHistoryRepositoryRedis keeps at most capacity ids in the recent list. Records expire after ttl when positive.
func NewHistoryRepositoryRedis(rdb *redis.Client, capacity int, ttl time.Duration) *HistoryRepositoryRedis {
	return &HistoryRepositoryRedis{rdb: rdb, capacity: int64(clampLimit(capacity)), ttl: ttl}
}

func (r *HistoryRepositoryRedis) Save(ctx context.Context, rec *domain.GenerationRecord) error {
	prepareRecord(rec)
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, historyKeyPrefix+rec.ID, payload, r.ttl)
	pipe.LPush(ctx, historyRecentKey, rec.ID)
	pipe.LTrim(ctx, historyRecentKey, 0, r.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save history record: %w", err)
	}
	return nil
}

func (r *HistoryRepositoryRedis) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	ids, err := r.rdb.LRange(ctx, historyRecentKey, 0, int64(clampLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = historyKeyPrefix + id
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load history records: %w", err)
	}
	records := make([]domain.GenerationRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired record whose id is still listed
			continue
		}
		var rec domain.GenerationRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode history record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *HistoryRepositoryRedis) Get(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	raw, err := r.rdb.Get(ctx, historyKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history record: %w", err)
	}
	var rec domain.GenerationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode history record: %w", err)
	}
	return &rec, nil
}

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slidecast/api/internal/model"
)

const (
	jobKeyPrefix = "job:"
	jobRetention = 24 * time.Hour
)

// RedisStore persists job records as JSON under job:<id> keys. Records expire
// after the retention window; the in-memory registry remains authoritative
// within a process lifetime.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return s.redis.Set(ctx, jobKeyPrefix+job.ID, data, jobRetention).Err()
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	return s.redis.Del(ctx, jobKeyPrefix+jobID).Err()
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	iter := s.redis.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan job keys: %w", err)
	}
	return jobs, nil
}

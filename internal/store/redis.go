package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finledger/api/internal/model"
)

// DefaultRetention is how long finished jobs and artifacts stay readable.
const DefaultRetention = 7 * 24 * time.Hour

// RedisStore keeps job records and artifacts in Redis so that a poller may
// hit any instance sharing the same Redis. The whole record is written as
// one value per transition, which is what gives readers a consistent
// snapshot.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{redis: redisClient, retention: retention}
}

func (s *RedisStore) Create(ctx context.Context, job *model.ReportJob) error {
	return s.save(ctx, job)
}

func (s *RedisStore) Get(ctx context.Context, ownerID, jobID string) (*model.ReportJob, error) {
	data, err := s.redis.Get(ctx, jobKey(ownerID, jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job model.ReportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Update reads, mutates and rewrites the record. Safe because each job has
// exactly one writer (the worker executing it).
func (s *RedisStore) Update(ctx context.Context, ownerID, jobID string, mutate func(*model.ReportJob) error) (*model.ReportJob, error) {
	job, err := s.Get(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RedisStore) PutArtifact(ctx context.Context, ownerID, jobID string, data []byte, contentType string) (string, error) {
	ref := artifactKey(ownerID, jobID)
	if err := s.redis.Set(ctx, ref, data, s.retention).Err(); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}

func (s *RedisStore) GetArtifact(ctx context.Context, ownerID, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, artifactKey(ownerID, "")) {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, ref).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return data, nil
}

func (s *RedisStore) save(ctx context.Context, job *model.ReportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKey(job.OwnerID, job.ID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func jobKey(ownerID, jobID string) string {
	return fmt.Sprintf("report:job:%s:%s", ownerID, jobID)
}

func artifactKey(ownerID, jobID string) string {
	return fmt.Sprintf("report:file:%s:%s", ownerID, jobID)
}

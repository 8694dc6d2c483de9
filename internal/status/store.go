package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

const namespace = "reencode:job"

var ErrNotFound = errors.New("job result not found")

// Store keeps the last result of each job in Redis.
type Store struct {
	rc  redis.UniversalClient
	ttl time.Duration
}

func NewStore(rc redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{rc: rc, ttl: ttl}
}

// Dial connects to addr and checks the connection before returning.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Store, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}

	return NewStore(rc, ttl), nil
}

func (s *Store) Close() error {
	return s.rc.Close()
}

func key(jobID string) string {
	return namespace + ":" + jobID
}

func (s *Store) Record(ctx context.Context, result models.JobResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.rc.Set(ctx, key(result.JobID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record job %s: %w", result.JobID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (models.JobResult, error) {
	var result models.JobResult

	raw, err := s.rc.Get(ctx, key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, ErrNotFound
	}
	if err != nil {
		return result, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	return result, nil
}

// Package queue backs two Redis-assisted concerns: a best-effort
// idempotency lookaside in front of the case store, and an asynchronous
// job list for the issuance stub's screenshot simulation.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const issuanceJobsKey = "issuance_jobs"

type Queue struct {
	client *redis.Client
}

func New(url string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &Queue{client: client}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// SetIdempotencyKey records a recently-seen idempotency key with a short
// TTL so a hot replay can resolve without a Postgres round trip. Postgres's
// unique constraint on idempotency_key remains the source of truth; a miss
// here never implies the key is unused.
func (q *Queue) SetIdempotencyKey(ctx context.Context, key, caseID string, ttl time.Duration) error {
	return q.client.Set(ctx, idempotencyRedisKey(key), caseID, ttl).Err()
}

// LookupIdempotencyKey returns the case ID cached for key, if present.
func (q *Queue) LookupIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	caseID, err := q.client.Get(ctx, idempotencyRedisKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return caseID, true, nil
}

func idempotencyRedisKey(key string) string {
	return "idempotency:" + key
}

// PushIssuanceJob enqueues a case ID for asynchronous issuance simulation.
func (q *Queue) PushIssuanceJob(ctx context.Context, caseID string) error {
	return q.client.LPush(ctx, issuanceJobsKey, caseID).Err()
}

// PopIssuanceJob blocks up to timeout for the next queued case ID.
func (q *Queue) PopIssuanceJob(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, issuanceJobsKey).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", redis.Nil
	}
	return res[1], nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, issuanceJobsKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

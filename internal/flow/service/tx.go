package service

import (
	"context"
	"sync"
	"time"

	dErrors "garita/pkg/domain-errors"
)

// StoreTx is the atomic boundary of one flow step: the actor bind, the
// answer upsert, and any truncation must commit or fail together.
// Implementations may wrap a database transaction or, in-memory, a lock.
type StoreTx interface {
	RunInTx(ctx context.Context, key string, fn func(txCtx context.Context) error) error
}

// shardedTx provides fine-grained locking using sharded mutexes. Instead of
// a single global lock, steps are distributed across N shards based on a
// hash of the submission id, reducing contention under concurrent load.
const numTxShards = 128

// defaultTxTimeout is the maximum duration for one step transaction.
const defaultTxTimeout = 5 * time.Second

type shardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns the in-memory StoreTx. Steps against the same
// submission serialize on one shard; unrelated submissions rarely contend.
func NewShardedTx() StoreTx {
	return &shardedTx{}
}

func (t *shardedTx) RunInTx(ctx context.Context, key string, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashTxKey(key) % numTxShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashTxKey uses FNV-1a for good distribution across shards.
func hashTxKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

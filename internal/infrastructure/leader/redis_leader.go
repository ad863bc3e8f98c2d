package leader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"live-auction/pkg/logger"

	"github.com/go-redis/redis/v8"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end
`)

// RedisLeaderElection holds a SETNX lease so that one engine instance owns
// all auctions. The lease is refreshed at a third of its TTL.
type RedisLeaderElection struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
	log        logger.Logger

	mu       sync.Mutex
	leader   bool
	lost     chan struct{}
	stopBeat context.CancelFunc
}

func NewRedisLeaderElection(client *redis.Client, key, instanceID string, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	return &RedisLeaderElection{
		client:     client,
		key:        key,
		instanceID: instanceID,
		ttl:        ttl,
		log:        log,
		lost:       make(chan struct{}),
	}
}

// TryAcquire makes one attempt to take the lease.
func (r *RedisLeaderElection) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key, r.instanceID, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("leader: acquire %s: %w", r.key, err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.leader = true
	beatCtx, cancel := context.WithCancel(context.Background())
	r.stopBeat = cancel
	go r.maintainLeadership(beatCtx)
	return true, nil
}

// Campaign blocks until the lease is acquired or ctx is done.
func (r *RedisLeaderElection) Campaign(ctx context.Context) error {
	retry := r.ttl / 3
	if retry <= 0 {
		retry = time.Second
	}
	for {
		ok, err := r.TryAcquire(ctx)
		if err != nil {
			r.log.Warn("Leader campaign attempt failed", "error", err)
		}
		if ok {
			r.log.Info("Acquired leadership", "instance_id", r.instanceID)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (r *RedisLeaderElection) IsLeader() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leader
}

// Lost is closed once an acquired lease could not be renewed.
func (r *RedisLeaderElection) Lost() <-chan struct{} {
	return r.lost
}

func (r *RedisLeaderElection) Resign(ctx context.Context) error {
	r.mu.Lock()
	if r.stopBeat != nil {
		r.stopBeat()
		r.stopBeat = nil
	}
	r.leader = false
	r.mu.Unlock()

	err := releaseScript.Run(ctx, r.client, []string{r.key}, r.instanceID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("leader: release %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisLeaderElection) maintainLeadership(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		result, err := extendScript.Run(callCtx, r.client, []string{r.key}, r.instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil || result == 0 {
			r.log.Error("Lost leadership", "instance_id", r.instanceID, "error", err)
			r.markLost()
			return
		}
	}
}

func (r *RedisLeaderElection) markLost() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.leader {
		return
	}
	r.leader = false
	if r.stopBeat != nil {
		r.stopBeat()
		r.stopBeat = nil
	}
	close(r.lost)
}

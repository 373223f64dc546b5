package leader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultKey = "auction_leader"
	DefaultTTL = 30 * time.Second
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end`)
)

// RedisLeaderElection gates singleton work (the lifecycle sweeper) to one
// instance. Leadership is a key with a TTL, refreshed at a third of the TTL
// while held.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu         sync.Mutex
	generation uint64
	heartbeat  map[string]heartbeat
}

// heartbeat is one refresh loop; gen tells a stale loop apart from the one
// that replaced it.
type heartbeat struct {
	gen    uint64
	cancel context.CancelFunc
}

func NewRedisLeaderElection(client *redis.Client, key string, ttl time.Duration) *RedisLeaderElection {
	if key == "" {
		key = DefaultKey
	}
	if ttl < time.Second {
		ttl = DefaultTTL
	}
	return &RedisLeaderElection{
		client:    client,
		key:       key,
		ttl:       ttl,
		heartbeat: make(map[string]heartbeat),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if acquired {
		r.startHeartbeat(instanceID)
	}

	return acquired, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return releaseScript.Run(ctx, r.client, []string{r.key}, instanceID).Err()
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hb, running := r.heartbeat[instanceID]; running {
		hb.cancel()
	}
	r.generation++
	ctx, cancel := context.WithCancel(context.Background())
	r.heartbeat[instanceID] = heartbeat{gen: r.generation, cancel: cancel}
	go r.maintainLeadership(ctx, instanceID, r.generation)
	return r.generation
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hb, running := r.heartbeat[instanceID]; running {
		hb.cancel()
		delete(r.heartbeat, instanceID)
	}
}

// endHeartbeat removes the loop of generation gen only; a newer loop started
// by a later BecomeLeader keeps running.
func (r *RedisLeaderElection) endHeartbeat(instanceID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hb, running := r.heartbeat[instanceID]; running && hb.gen == gen {
		hb.cancel()
		delete(r.heartbeat, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(ctx context.Context, instanceID string, gen uint64) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		extended, err := extendScript.Run(callCtx, r.client, []string{r.key},
			instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || extended == 0 {
			// Lost leadership; the next scheduled tick will try to reacquire.
			r.endHeartbeat(instanceID, gen)
			return
		}
	}
}

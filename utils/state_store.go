package utils

import (
	"context"
	"sync"
	"time"
)

const oauthStateKeyPrefix = "auth:state:"

type stateEntry struct {
	expiresAt time.Time
}

var (
	stateLocal   = map[string]stateEntry{}
	stateLocalMu sync.Mutex
)

// SaveState records an OAuth state token with a TTL so the callback can
// verify the redirect originated here. Stored in Redis for multi-instance
// deployments, in process when Redis is unreachable.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := GetRedis().Set(ctx, oauthStateKeyPrefix+state, "1", ttl).Err(); err == nil {
		return
	}

	stateLocalMu.Lock()
	stateLocal[state] = stateEntry{expiresAt: time.Now().Add(ttl)}
	stateLocalMu.Unlock()
}

// ConsumeState validates a state token and removes it. Each token is
// single-use; GETDEL keeps check and removal atomic on the Redis side.
func ConsumeState(state string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := GetRedis().GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if err == nil {
		return v != ""
	}

	// Missing from Redis or Redis unreachable: the token may have been
	// saved locally while Redis was down.
	stateLocalMu.Lock()
	entry, ok := stateLocal[state]
	if ok {
		delete(stateLocal, state)
	}
	stateLocalMu.Unlock()
	if !ok {
		return false
	}
	return time.Now().Before(entry.expiresAt)
}

package utils

import (
	"context"
	"sync"
	"time"
)

const revokedKeyPrefix = "session:revoked:"

// revokedEntry keeps expiration metadata for a locally remembered token.
type revokedEntry struct {
	expiresAt time.Time
}

var (
	revokedLocal   = map[string]revokedEntry{}
	revokedLocalMu sync.RWMutex
)

// BlacklistToken revokes a session token until its natural expiration,
// backing logout. Redis is the shared store; when it is unreachable the
// token is remembered in process so logout still sticks on this instance.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := GetRedis().Set(ctx, revokedKeyPrefix+token, "1", ttl).Err(); err == nil {
		return
	}

	revokedLocalMu.Lock()
	revokedLocal[token] = revokedEntry{expiresAt: expiresAt}
	revokedLocalMu.Unlock()
}

// IsTokenBlacklisted reports whether a token was revoked before its
// natural expiration.
func IsTokenBlacklisted(token string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if n, err := GetRedis().Exists(ctx, revokedKeyPrefix+token).Result(); err == nil && n > 0 {
		return true
	}

	revokedLocalMu.RLock()
	entry, ok := revokedLocal[token]
	revokedLocalMu.RUnlock()
	if !ok {
		return false
	}

	if time.Now().After(entry.expiresAt) {
		revokedLocalMu.Lock()
		delete(revokedLocal, token)
		revokedLocalMu.Unlock()
		return false
	}

	return true
}

// Package tenantcache caches the token → webhook source resolution that
// every inbound webhook performs before touching the store.
//
// Only positive lookups are cached. Entries expire after a TTL and are
// removed explicitly when a source is deactivated, so a revoked token stops
// working on this instance immediately and on other instances (Redis
// backend) at the same time.
package tenantcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tbourn/go-crm-webhooks/internal/config"
)

// ErrMiss is returned by Get when the token has no live entry.
var ErrMiss = errors.New("tenantcache: miss")

// Entry is the cached view of an active webhook source.
type Entry struct {
	SourceID       string `json:"source_id"`
	OrganizationID string `json:"organization_id"`
}

// Cache maps webhook tokens to their source.
type Cache interface {
	Get(ctx context.Context, token string) (Entry, error)
	Set(ctx context.Context, token string, e Entry) error
	Invalidate(ctx context.Context, token string) error
}

// New builds the cache selected by cfg.Backend.
func New(ctx context.Context, cfg config.TokenCacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	case "off":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("tenantcache: unknown backend %q", cfg.Backend)
	}
}

// Nop never stores anything; every Get is a miss.
type Nop struct{}

func (Nop) Get(context.Context, string) (Entry, error) { return Entry{}, ErrMiss }
func (Nop) Set(context.Context, string, Entry) error   { return nil }
func (Nop) Invalidate(context.Context, string) error   { return nil }

// tokenKey hashes the secret so raw tokens never appear as cache keys.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

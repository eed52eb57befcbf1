package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/backoffice/backoffice/internal/permissions"
)

// DecisionCache memoizes decisions in Redis. Entries are keyed by a
// per-organization version; Invalidate bumps the version so older entries
// are never read again and simply expire.
type DecisionCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewDecisionCache returns nil when caching is disabled (ttl <= 0 or no
// client). A nil cache is safe to use.
func NewDecisionCache(client redis.Cmdable, ttl time.Duration) *DecisionCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &DecisionCache{client: client, ttl: ttl, prefix: "authz"}
}

func (c *DecisionCache) versionKey(orgID int64) string {
	return fmt.Sprintf("%s:org:%d:version", c.prefix, orgID)
}

func (c *DecisionCache) decisionKey(orgID, version, userID int64, action permissions.Action, subject permissions.Subject) string {
	return fmt.Sprintf("%s:org:%d:v%d:user:%d:%s:%s", c.prefix, orgID, version, userID, action, subject)
}

// Version returns the current version for the organization.
func (c *DecisionCache) Version(ctx context.Context, orgID int64) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(orgID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *DecisionCache) memberKey(orgID, version, userID int64) string {
	return fmt.Sprintf("%s:org:%d:v%d:user:%d:member", c.prefix, orgID, version, userID)
}

// lookup returns the cached answer under key, if any.
func (c *DecisionCache) lookup(ctx context.Context, key string) (value, hit bool, err error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return raw == "1", true, nil
}

func (c *DecisionCache) store(ctx context.Context, key string, value bool) error {
	raw := "0"
	if value {
		raw = "1"
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate retires every cached decision for the organization. Call it
// after the mutating transaction has committed.
func (c *DecisionCache) Invalidate(ctx context.Context, orgID int64) error {
	if c == nil {
		return nil
	}
	if err := c.client.Incr(ctx, c.versionKey(orgID)).Err(); err != nil {
		return fmt.Errorf("rbac: bump cache version: %w", err)
	}
	return nil
}

package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/decr_floor.lua
var decrFloorScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

// Cached values expire so a count that drifted from the ledger (lost event,
// instance crash between incr and decr) falls back to the miss-reseed path
// instead of staying wrong forever.
const cacheTTL = 15 * time.Minute

// Client is a best-effort cache in front of the ledger: product availability
// for display, per-company pending badge counts, and a lock that keeps the
// periodic reaper single-flight across instances. The ledger stays
// authoritative; nothing here participates in the reconciliation transaction.
type Client struct {
	rdb           *redis.Client
	decrFloor     *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		decrFloor:     redis.NewScript(decrFloorScript),
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func availabilityKey(productID string) string { return "availability:" + productID }
func pendingKey(companyID string) string      { return "pending:" + companyID }
func lockKey(name string) string              { return "lock:" + name }

// SetAvailability overwrites the cached available quantity for a product.
func (c *Client) SetAvailability(ctx context.Context, productID string, quantity int) error {
	return c.rdb.Set(ctx, availabilityKey(productID), quantity, cacheTTL).Err()
}

// GetAvailability reads the cached available quantity. The second return is
// false on a cache miss.
func (c *Client) GetAvailability(ctx context.Context, productID string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, availabilityKey(productID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	quantity, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value %q: %w", val, err)
	}
	return quantity, true, nil
}

// SetPendingCount overwrites the cached pending badge count for a company.
func (c *Client) SetPendingCount(ctx context.Context, companyID string, count int) error {
	return c.rdb.Set(ctx, pendingKey(companyID), count, cacheTTL).Err()
}

// IncrPendingCount bumps the cached pending badge count.
func (c *Client) IncrPendingCount(ctx context.Context, companyID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, pendingKey(companyID))
	pipe.Expire(ctx, pendingKey(companyID), cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// DecrPendingCount drops the cached pending badge count, flooring at zero so
// a drifted cache never shows a negative badge.
func (c *Client) DecrPendingCount(ctx context.Context, companyID string) error {
	return c.decrFloor.Run(ctx, c.rdb, []string{pendingKey(companyID)}, cacheTTL.Milliseconds()).Err()
}

// PendingCount reads the cached pending badge count. The second return is
// false on a cache miss.
func (c *Client) PendingCount(ctx context.Context, companyID string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, pendingKey(companyID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt pending count %q: %w", val, err)
	}
	return count, true, nil
}

// AcquireLock takes a named lock with the given token and TTL. Returns false
// if another holder has it.
func (c *Client) AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
}

// ReleaseLock releases a named lock, but only if the token still matches, so
// an expired holder cannot release a lock someone else re-acquired.
func (c *Client) ReleaseLock(ctx context.Context, name, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

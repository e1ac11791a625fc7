package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/tcc"
)

type client struct {
	conn *Connection
}

// Client is the subset of the wrapper other packages compose in: the sequence
// generator & the advisory locker.
type Client interface {
	// Ping tests connectivity.
	Ping(ctx context.Context) error
	// Incr increments & returns the named sequence.
	Incr(ctx context.Context, key string) (int64, error)
	// Lock attempts to acquire all given lock keys for the TTL duration.
	Lock(ctx context.Context, duration time.Duration, lockKeys []*tcc.LockKey) (bool, tcc.UUID, error)
	// IsLocked reports whether all given lock keys are owned by this process.
	IsLocked(ctx context.Context, lockKeys []*tcc.LockKey) (bool, error)
	// Unlock releases the given lock keys where owned.
	Unlock(ctx context.Context, lockKeys []*tcc.LockKey) error
}

// NewClient returns a wrapper over the singleton connection. OpenConnection
// must have been called beforehand.
func NewClient() Client {
	return client{
		conn: connection,
	}
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (c client) keyNotFound(err error) bool {
	return err == redis.Nil
}

func (c client) ensureOpen() error {
	if c.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	return nil
}

// Ping tests connectivity for redis (PONG should be returned).
func (c client) Ping(ctx context.Context) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.conn.Client.Ping(ctx).Err()
}

// Set executes the redis Set command.
func (c client) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.conn.Client.Set(ctx, key, value, expiration).Err()
}

// SetNX executes the redis SetNX command, reporting whether this call created the key.
func (c client) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	if err := c.ensureOpen(); err != nil {
		return false, err
	}
	return c.conn.Client.SetNX(ctx, key, value, expiration).Result()
}

// Get executes the redis Get command.
func (c client) Get(ctx context.Context, key string) (bool, string, error) {
	if err := c.ensureOpen(); err != nil {
		return false, "", err
	}
	s, err := c.conn.Client.Get(ctx, key).Result()
	// Convert key not found into returning false and nil err.
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	}
	return r, s, err
}

// Incr executes the redis Incr command.
func (c client) Incr(ctx context.Context, key string) (int64, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	return c.conn.Client.Incr(ctx, key).Result()
}

// Delete removes the given keys, reporting whether all were found.
func (c client) Delete(ctx context.Context, keys []string) (bool, error) {
	if err := c.ensureOpen(); err != nil {
		return false, err
	}
	n, err := c.conn.Client.Del(ctx, keys...).Result()
	return n == int64(len(keys)), err
}

// SetStruct serializes value to JSON and executes the redis Set command.
func (c client) SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	ba, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.conn.Client.Set(ctx, key, ba, expiration).Err()
}

// GetStruct executes the redis Get command and deserializes into target.
// Returns false, nil when the key does not exist.
func (c client) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	if err := c.ensureOpen(); err != nil {
		return false, err
	}
	if target == nil {
		return false, fmt.Errorf("target can't be nil")
	}
	ba, err := c.conn.Client.Get(ctx, key).Bytes()
	if err == nil {
		err = json.Unmarshal(ba, target)
	}
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	}
	return r, err
}

// DeleteIfEqual removes key only while it still holds value, atomically, so a
// late release can't take out a key that has since changed owners. Reports
// whether the key was deleted.
func (c client) DeleteIfEqual(ctx context.Context, key string, value string) (bool, error) {
	if err := c.ensureOpen(); err != nil {
		return false, err
	}
	const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
	n, err := c.conn.Client.Eval(ctx, script, []string{key}, value).Int64()
	return n == 1, err
}

// ZAdd adds member to the sorted set at key with the given score.
func (c client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.conn.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes member from the sorted set at key.
func (c client) ZRem(ctx context.Context, key string, member string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.conn.Client.ZRem(ctx, key, member).Err()
}

// ZRange returns up to count members of the sorted set at key, lowest scores first.
func (c client) ZRange(ctx context.Context, key string, count int64) ([]string, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	return c.conn.Client.ZRange(ctx, key, 0, count-1).Result()
}

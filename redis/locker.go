package redis

import (
	"context"
	"time"

	"github.com/sharedcode/tcc"
)

// Lock attempts to acquire locks for all provided keys using the given TTL
// duration. If any key is already locked by another owner, it returns false
// and that owner's UUID.
func (c client) Lock(ctx context.Context, duration time.Duration, lockKeys []*tcc.LockKey) (bool, tcc.UUID, error) {
	for _, lk := range lockKeys {
		found, readItem, err := c.Get(ctx, lk.Key)
		if err != nil {
			return false, tcc.NilUUID, err
		}
		if found {
			// Item found in Redis, check if not ours. Most likely, but check anyway.
			if readItem != lk.LockID.String() {
				id, _ := tcc.ParseUUID(readItem)
				return false, id, nil
			}
			continue
		}

		// Item does not exist, upsert it.
		if err := c.Set(ctx, lk.Key, lk.LockID.String(), duration); err != nil {
			return false, tcc.NilUUID, err
		}
		// Use a 2nd "get" to ensure we "won" the lock attempt & fail if not.
		if found, readItem2, err := c.Get(ctx, lk.Key); !found || err != nil {
			return false, tcc.NilUUID, err
		} else if readItem2 != lk.LockID.String() {
			id, _ := tcc.ParseUUID(readItem2)
			// Item found in Redis, lock attempt failed.
			return false, id, nil
		}
		// We got the item locked, ensure we can unlock it.
		lk.IsLockOwner = true
	}
	// Successfully locked.
	return true, tcc.NilUUID, nil
}

// IsLocked reports whether all provided lock keys are currently owned by this process.
func (c client) IsLocked(ctx context.Context, lockKeys []*tcc.LockKey) (bool, error) {
	r := true
	var lastErr error
	for _, lk := range lockKeys {
		found, readItem, err := c.Get(ctx, lk.Key)
		if !found || err != nil {
			lk.IsLockOwner = false
			r = false
			if err != nil {
				lastErr = err
			}
			continue
		}
		// Item found in Redis has different value, means key is locked by a different function.
		if readItem != lk.LockID.String() {
			lk.IsLockOwner = false
			r = false
			continue
		}
		lk.IsLockOwner = true
	}
	return r, lastErr
}

// Unlock releases the provided lock keys. The delete is conditioned on the
// stored owner id still being ours: after the TTL lapsed and another instance
// took the lock, a late Unlock must not take out the new owner's key.
func (c client) Unlock(ctx context.Context, lockKeys []*tcc.LockKey) error {
	var lastErr error
	for _, lk := range lockKeys {
		if !lk.IsLockOwner {
			continue
		}
		lk.IsLockOwner = false
		// The key being gone already (TTL lapse) or re-owned is not an error.
		if _, err := c.DeleteIfEqual(ctx, lk.Key, lk.LockID.String()); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

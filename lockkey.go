package tcc

// LockKey names one advisory lock together with the owner id this process will
// stamp on it. IsLockOwner is maintained by the locker implementations: only
// keys acquired by this process get released on Unlock.
type LockKey struct {
	Key         string
	LockID      UUID
	IsLockOwner bool
}

// FormatLockKey decorates a lock name with the coordinator's namespace prefix.
func FormatLockKey(k string) string {
	return "TCC" + k
}

// CreateLockKeys generates LockKeys with fresh owner ids for the given names.
func CreateLockKeys(keys []string) []*LockKey {
	lockKeys := make([]*LockKey, len(keys))
	for i := range keys {
		lockKeys[i] = &LockKey{
			Key:    FormatLockKey(keys[i]),
			LockID: NewUUID(),
		}
	}
	return lockKeys
}

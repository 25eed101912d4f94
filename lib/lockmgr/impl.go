package lockmgr

import (
	"bytes"
	"context"
	"time"

	"github.com/ValentinKolb/dcov/lib/store"
)

type lockMgrImpl struct {
	store store.IStore
}

func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	ownerID := generateOwnerID()

	// SetEIfUnset only succeeds for one of several concurrent requesters
	ok, err := lm.store.SetEIfUnset(key, ownerID, timeout)
	if err != nil || !ok {
		return false, nil, err
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	value, ok, err := lm.store.Get(key)
	if err != nil || !ok {
		return err == nil, err
	}

	// Check if the lock is owned by us
	if !bytes.Equal(ownerID, value) {
		return false, nil
	}

	err = lm.store.Delete(key)
	return err == nil, err
}

// AcquireLockWait retries AcquireLock every interval until the lock is acquired,
// an error occurs or ctx is done.
func AcquireLockWait(ctx context.Context, lm ILockManager, key string, timeout uint64, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, ownerID, err := lm.AcquireLock(key, timeout)
		if err != nil {
			return nil, err
		}
		if ok {
			return ownerID, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

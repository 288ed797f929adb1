package cmd

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

var instanceLock *flock.Flock

// AcquireLock takes the single-instance lock for the serve daemon. It
// reports false when another daemon already holds it.
func AcquireLock() (bool, error) {
	dir := runtimeFile("")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	lock := flock.New(runtimeFile("serve.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return false, nil
	}
	instanceLock = lock
	return true, nil
}

// ReleaseLock drops the lock taken by AcquireLock.
func ReleaseLock() error {
	if instanceLock == nil {
		return nil
	}
	err := instanceLock.Unlock()
	instanceLock = nil
	return err
}

package dependency

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"devctl/pkg/logging"
)

// WithLock runs fn while holding an exclusive advisory lock on path. The lock
// is released on every return path, including panics in fn.
func WithLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			logging.Warn("Installer", "failed to release lock %s: %v", path, err)
		}
	}()
	return fn()
}

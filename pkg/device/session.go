package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
)

// Session is exclusive use of one device. While a Session is open no other
// Session (in this or another process) can be opened for the same serial.
type Session struct {
	*AndroidDevice

	lockPath string
	lock     *flock.Flock
}

// OpenSession acquires the device lock in lockDir without blocking. It
// returns core.ErrDeviceBusy when another session holds it.
func OpenSession(dev *AndroidDevice, lockDir string) (*Session, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := LockPath(lockDir, dev.Serial())
	lock := flock.New(lockPath)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire device lock: %w", err)
	}
	if !ok {
		return nil, core.ErrDeviceBusy.
			WithMessage(fmt.Sprintf("device %s is busy with another print run", dev.Serial())).
			WithDetails(map[string]interface{}{"serial": dev.Serial(), "lock": lockPath})
	}

	logger.Debug("Acquired device lock %s", lockPath)
	return &Session{AndroidDevice: dev, lockPath: lockPath, lock: lock}, nil
}

// LockPath returns the lock file used for a device serial.
func LockPath(lockDir, serial string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(serial)
	if name == "" {
		name = "default"
	}
	return filepath.Join(lockDir, "mythra-print-"+name+".lock")
}

// Close releases the device lock. Safe to call more than once.
func (s *Session) Close() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	if err != nil {
		return fmt.Errorf("release device lock: %w", err)
	}
	logger.Debug("Released device lock %s", s.lockPath)
	return nil
}

package mcc172

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Locker is the cross-process SPI bus mutex contract from spec.md §6
// (obtain_lock/release_lock). It is an external collaborator: the core
// never assumes a particular locking mechanism, only that Lock respects
// ctx's deadline and Unlock is idempotent-safe when called after a
// successful Lock.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// AddressSelector is the chip-select demultiplexer contract from spec.md §6
// (set_address). Boards are stacked on one physical SPI bus; this routes a
// transaction to the board at addr.
type AddressSelector interface {
	SetAddress(addr int) error
}

// flockLocker is a default Locker backed by flock(2) on a well-known lock
// file, grounded on the same golang.org/x/sys/unix syscall family the SPI
// transport uses. It satisfies the 5s ceiling from spec.md §4.B/§5 via
// ctx's deadline.
type flockLocker struct {
	path string
	f    *os.File
}

// newFlockLocker opens (creating if needed) the lock file at path. The file
// is kept open for the lifetime of the registry; Lock/Unlock flock(2) it
// per transaction.
func newFlockLocker(path string) (*flockLocker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &flockLocker{path: path, f: f}, nil
}

// NewFlockLocker is the exported constructor CLI binaries use to wire up
// the default cross-process Locker.
func NewFlockLocker(path string) (Locker, error) {
	return newFlockLocker(path)
}

func (l *flockLocker) Lock(ctx context.Context) error {
	const pollInterval = 2 * time.Millisecond
	for {
		err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK {
			return fmt.Errorf("flock: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *flockLocker) Unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

func (l *flockLocker) Close() error {
	return l.f.Close()
}

// obtainLock is a small helper: acquire l within the spec's 5s ceiling,
// mapping a missed deadline to LockTimeout rather than a bare context error.
func obtainLock(l Locker) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := l.Lock(ctx); err != nil {
		return newErr("obtainLock", LockTimeout, err)
	}
	return nil
}

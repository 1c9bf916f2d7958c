package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// lockRetryDelay is how often a blocked writer re-attempts the advisory
// lock while its context is still live.
const lockRetryDelay = 25 * time.Millisecond

// Disk is a filesystem store that can be shared between processes. Keys are
// hashed into a two-level sharded layout under the root directory. Writes go
// through a unique temporary file and an atomic rename, serialized across
// processes with an advisory lock, so readers always observe complete
// values and never need the lock themselves.
type Disk struct {
	root string
	lock *flock.Flock
}

var _ Store = (*Disk)(nil)

// NewDisk creates a disk store rooted at dir, creating it if needed. An
// empty dir selects a directory under the XDG cache home.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		dir = filepath.Join(xdg.CacheHome, "simple-repository")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Disk{
		root: dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Root returns the directory backing the store.
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) path(key string) string {
	digest := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(digest[:])
	return filepath.Join(d.root, name[:2], name[2:])
}

// Get implements Store.
func (d *Disk) Get(_ context.Context, key string) ([]byte, error) {
	value, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	return value, nil
}

// Set implements Store.
func (d *Disk) Set(ctx context.Context, key string, value []byte) error {
	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking cache: %w", err)
	}
	if !locked {
		return errors.New("cache lock unavailable")
	}
	defer d.lock.Unlock() //nolint:errcheck

	target := d.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating cache shard: %w", err)
	}

	tmp := filepath.Join(d.root, "tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, value, 0o640); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("publishing cache entry: %w", err)
	}
	return nil
}

// Delete implements Store.
func (d *Disk) Delete(ctx context.Context, key string) error {
	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking cache: %w", err)
	}
	if !locked {
		return errors.New("cache lock unavailable")
	}
	defer d.lock.Unlock() //nolint:errcheck

	if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}

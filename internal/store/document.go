// Package store persists whole documents (one file per concern) with a
// single-writer discipline: every read and write goes through an in-process
// mutex and an advisory file lock, and every save replaces the file atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 10 * time.Millisecond
)

var (
	ErrCorrupt     = errors.New("document is corrupt")
	ErrLockTimeout = errors.New("timed out acquiring document lock")
)

// StorageError records the failing operation and document path.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Option configures a Document.
type Option func(*options)

type options struct {
	lockTimeout time.Duration
}

// WithLockTimeout bounds how long an operation waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// Document is a single file holding one value of type T.
type Document[T any] struct {
	path        string
	codec       Codec[T]
	lock        *flock.Flock
	lockTimeout time.Duration

	mu sync.Mutex
}

// NewDocument returns a handle on the document at path. Nothing is read or
// created until the first operation.
func NewDocument[T any](path string, codec Codec[T], opts ...Option) *Document[T] {
	o := options{lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Document[T]{
		path:        path,
		codec:       codec,
		lock:        flock.New(path + ".lock"),
		lockTimeout: o.lockTimeout,
	}
}

// Path returns the document's file path.
func (d *Document[T]) Path() string { return d.path }

// Load reads the whole document. A missing file yields codec.Empty().
func (d *Document[T]) Load(ctx context.Context) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.acquire(ctx, false); err != nil {
		return d.codec.Empty(), err
	}
	defer d.release()

	return d.read()
}

// Save replaces the whole document with v.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.acquire(ctx, true); err != nil {
		return err
	}
	defer d.release()

	return d.write(v)
}

// Update performs read-modify-write while holding the exclusive lock, so
// concurrent writers cannot clobber each other. If fn returns an error nothing
// is written.
func (d *Document[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.acquire(ctx, true); err != nil {
		return d.codec.Empty(), err
	}
	defer d.release()

	current, err := d.read()
	if err != nil {
		return current, err
	}

	next, err := fn(current)
	if err != nil {
		return current, err
	}

	if err := d.write(next); err != nil {
		return current, err
	}
	return next, nil
}

func (d *Document[T]) acquire(ctx context.Context, exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return &StorageError{Op: "lock", Path: d.path, Err: err}
	}

	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = d.lock.TryLockContext(lockCtx, lockRetryDelay)
	} else {
		locked, err = d.lock.TryRLockContext(lockCtx, lockRetryDelay)
	}

	if ctx.Err() != nil {
		if locked {
			d.release()
		}
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return &StorageError{Op: "lock", Path: d.path, Err: err}
	}
	if !locked {
		return &StorageError{Op: "lock", Path: d.path, Err: ErrLockTimeout}
	}
	return nil
}

func (d *Document[T]) release() {
	_ = d.lock.Unlock()
}

func (d *Document[T]) read() (T, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return d.codec.Empty(), nil
		}
		return d.codec.Empty(), &StorageError{Op: "read", Path: d.path, Err: err}
	}

	v, err := d.codec.Decode(data)
	if err != nil {
		return d.codec.Empty(), &StorageError{Op: "decode", Path: d.path, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return v, nil
}

// write replaces the file via temp file, fsync and rename so readers never
// observe a partial document.
func (d *Document[T]) write(v T) error {
	data, err := d.codec.Encode(v)
	if err != nil {
		return &StorageError{Op: "encode", Path: d.path, Err: err}
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+"-*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Path: d.path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &StorageError{Op: "write", Path: d.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &StorageError{Op: "sync", Path: d.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &StorageError{Op: "close", Path: d.path, Err: err}
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		return &StorageError{Op: "rename", Path: d.path, Err: err}
	}
	return nil
}

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linguadesk/translator/internal/domain"
)

// LocalStore keeps artifacts as files inside a private temporary directory. The index lives in
// memory, so artifacts do not survive a restart; Close removes the directory.
type LocalStore struct {
	dir        string
	defaultTTL time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	index  map[string]domain.Artifact
	closed bool
}

// LocalOption customises the local store.
type LocalOption func(*LocalStore)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) LocalOption {
	return func(s *LocalStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDefaultTTL sets the retention used when a Put carries no TTL.
func WithDefaultTTL(ttl time.Duration) LocalOption {
	return func(s *LocalStore) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewLocalStore creates a fresh directory under parent (os.TempDir when empty).
func NewLocalStore(parent string, opts ...LocalOption) (*LocalStore, error) {
	dir, err := os.MkdirTemp(parent, "lingua-artifacts-")
	if err != nil {
		return nil, fmt.Errorf("artifacts: create temp dir: %w", err)
	}
	store := &LocalStore{
		dir:        dir,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		index:      map[string]domain.Artifact{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Dir returns the backing directory.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes the artifact to disk and registers it in the index.
func (s *LocalStore) Put(ctx context.Context, in PutInput) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}
	in, err := in.Validate(s.defaultTTL)
	if err != nil {
		return domain.Artifact{}, err
	}
	now := s.now().UTC()
	artifact := domain.Artifact{
		ID:          NewID(),
		Owner:       in.Owner,
		Name:        in.Name,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		CreatedAt:   now,
		ExpiresAt:   now.Add(in.TTL),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Artifact{}, errors.New("artifacts: store is closed")
	}
	if err := os.WriteFile(s.path(artifact.ID), in.Data, 0o600); err != nil {
		return domain.Artifact{}, fmt.Errorf("artifacts: write %s: %w", artifact.ID, err)
	}
	s.index[artifact.ID] = artifact
	return artifact, nil
}

// Open returns the artifact metadata and a reader over its content.
func (s *LocalStore) Open(ctx context.Context, id string) (domain.Artifact, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, nil, err
	}
	s.mu.RLock()
	artifact, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Artifact{}, nil, ErrNotFound
	}
	if artifact.Expired(s.now()) {
		return domain.Artifact{}, nil, ErrExpired
	}
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Artifact{}, nil, ErrNotFound
		}
		return domain.Artifact{}, nil, fmt.Errorf("artifacts: open %s: %w", id, err)
	}
	return artifact, f, nil
}

// Delete removes the artifact. Deleting an unknown id is not an error.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

// Sweep removes every artifact expired at now and returns how many were removed.
func (s *LocalStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, artifact := range s.index {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !artifact.Expired(now) {
			continue
		}
		if err := s.deleteLocked(id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close removes the backing directory and every artifact in it.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.index = map[string]domain.Artifact{}
	return os.RemoveAll(s.dir)
}

func (s *LocalStore) deleteLocked(id string) error {
	delete(s.index, id)
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifacts: remove %s: %w", id, err)
	}
	return nil
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.dir, filepath.Base(id))
}

package artifacts

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linguadesk/translator/internal/domain"
)

// DefaultTTL is the retention applied when a PutInput carries no TTL.
const DefaultTTL = time.Hour

var (
	// ErrNotFound is returned when the artifact does not exist or was swept.
	ErrNotFound = errors.New("artifacts: not found")
	// ErrExpired is returned when the artifact outlived its TTL but has not been swept yet.
	ErrExpired = errors.New("artifacts: expired")
	// ErrPermissionDenied is returned when the caller does not own the artifact.
	ErrPermissionDenied = errors.New("artifacts: permission denied")
	// ErrInvalidInput is returned for a Put without owner, name or content.
	ErrInvalidInput = errors.New("artifacts: owner, name and content type are required")
)

// PutInput describes a new artifact.
type PutInput struct {
	Owner       string
	Name        string
	ContentType string
	Data        []byte
	TTL         time.Duration
}

// Store holds generated files for a bounded time.
type Store interface {
	Put(ctx context.Context, in PutInput) (domain.Artifact, error)
	Open(ctx context.Context, id string) (domain.Artifact, io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NewID returns a sortable artifact identifier.
func NewID() string {
	return ulid.Make().String()
}

// Validate normalises the input and applies defaultTTL when no TTL is set.
func (in PutInput) Validate(defaultTTL time.Duration) (PutInput, error) {
	in.Owner = strings.TrimSpace(in.Owner)
	in.Name = strings.TrimSpace(in.Name)
	in.ContentType = strings.TrimSpace(in.ContentType)
	if in.Owner == "" || in.Name == "" || in.ContentType == "" {
		return PutInput{}, ErrInvalidInput
	}
	if strings.ContainsAny(in.Name, "/\\") || strings.Contains(in.Name, "..") {
		return PutInput{}, ErrInvalidInput
	}
	if in.TTL <= 0 {
		in.TTL = defaultTTL
	}
	if in.TTL <= 0 {
		in.TTL = DefaultTTL
	}
	return in, nil
}

// Authorize checks that principal owns the artifact.
func Authorize(artifact domain.Artifact, principal domain.Principal) error {
	if principal.UID == "" {
		return ErrPermissionDenied
	}
	if artifact.Owner != "" && artifact.Owner == principal.UID {
		return nil
	}
	return ErrPermissionDenied
}

// OpenFor opens an artifact after verifying the principal owns it.
func OpenFor(ctx context.Context, store Store, id string, principal domain.Principal) (domain.Artifact, io.ReadCloser, error) {
	artifact, rc, err := store.Open(ctx, id)
	if err != nil {
		return domain.Artifact{}, nil, err
	}
	if err := Authorize(artifact, principal); err != nil {
		_ = rc.Close()
		return domain.Artifact{}, nil, err
	}
	return artifact, rc, nil
}

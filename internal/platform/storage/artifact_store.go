package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/domain"
)

const (
	metaOwner     = "owner"
	metaName      = "name"
	metaCreatedAt = "created_at"
	metaExpiresAt = "expires_at"
)

var errInvalidBucket = errors.New("storage: bucket name is required")

// objectWrite carries the attributes recorded with a new object.
type objectWrite struct {
	ContentType        string
	ContentDisposition string
	Metadata           map[string]string
}

// objectIterator is satisfied by *gcs.ObjectIterator.
type objectIterator interface {
	Next() (*gcs.ObjectAttrs, error)
}

// bucketObjects is the slice of bucket operations the artifact store needs.
type bucketObjects interface {
	Write(ctx context.Context, object string, attrs objectWrite, data []byte) error
	Attrs(ctx context.Context, object string) (*gcs.ObjectAttrs, error)
	NewReader(ctx context.Context, object string) (io.ReadCloser, error)
	Delete(ctx context.Context, object string) error
	List(ctx context.Context, prefix string) objectIterator
}

type gcsBucket struct {
	handle *gcs.BucketHandle
}

func (b gcsBucket) Write(ctx context.Context, object string, attrs objectWrite, data []byte) error {
	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = attrs.ContentType
	w.ContentDisposition = attrs.ContentDisposition
	w.Metadata = attrs.Metadata
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b gcsBucket) Attrs(ctx context.Context, object string) (*gcs.ObjectAttrs, error) {
	return b.handle.Object(object).Attrs(ctx)
}

func (b gcsBucket) NewReader(ctx context.Context, object string) (io.ReadCloser, error) {
	return b.handle.Object(object).NewReader(ctx)
}

func (b gcsBucket) Delete(ctx context.Context, object string) error {
	return b.handle.Object(object).Delete(ctx)
}

func (b gcsBucket) List(ctx context.Context, prefix string) objectIterator {
	return b.handle.Objects(ctx, &gcs.Query{Prefix: prefix})
}

// ArtifactStore keeps artifacts as Cloud Storage objects. Ownership and expiry travel as object
// metadata so the store needs no separate index.
type ArtifactStore struct {
	objects    bucketObjects
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// ArtifactStoreOption customises the store.
type ArtifactStoreOption func(*ArtifactStore)

// WithPrefix overrides the object prefix (defaults to DefaultPrefix).
func WithPrefix(prefix string) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the retention used when a Put carries no TTL.
func WithTTL(ttl time.Duration) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewArtifactStore constructs a bucket-backed artifact store.
func NewArtifactStore(client *gcs.Client, bucket string, opts ...ArtifactStoreOption) (*ArtifactStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	return newArtifactStore(gcsBucket{handle: client.Bucket(bucket)}, opts...), nil
}

func newArtifactStore(objects bucketObjects, opts ...ArtifactStoreOption) *ArtifactStore {
	store := &ArtifactStore{
		objects:    objects,
		prefix:     DefaultPrefix,
		defaultTTL: artifacts.DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Put uploads the artifact content with its ownership metadata.
func (s *ArtifactStore) Put(ctx context.Context, in artifacts.PutInput) (domain.Artifact, error) {
	in, err := in.Validate(s.defaultTTL)
	if err != nil {
		return domain.Artifact{}, err
	}
	now := s.now().UTC()
	artifact := domain.Artifact{
		ID:          artifacts.NewID(),
		Owner:       in.Owner,
		Name:        in.Name,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		CreatedAt:   now,
		ExpiresAt:   now.Add(in.TTL),
	}
	object, err := ObjectPath(s.prefix, artifact.ID)
	if err != nil {
		return domain.Artifact{}, err
	}

	err = s.objects.Write(ctx, object, objectWrite{
		ContentType:        artifact.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", artifact.Name),
		Metadata:           encodeMetadata(artifact),
	}, in.Data)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("storage: write artifact: %w", err)
	}
	return artifact, nil
}

// Open returns the artifact metadata and a streaming reader.
func (s *ArtifactStore) Open(ctx context.Context, id string) (domain.Artifact, io.ReadCloser, error) {
	object, err := ObjectPath(s.prefix, id)
	if err != nil {
		return domain.Artifact{}, nil, artifacts.ErrNotFound
	}
	attrs, err := s.objects.Attrs(ctx, object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return domain.Artifact{}, nil, artifacts.ErrNotFound
		}
		return domain.Artifact{}, nil, fmt.Errorf("storage: stat artifact: %w", err)
	}
	artifact := decodeMetadata(id, attrs)
	if artifact.Expired(s.now()) {
		return domain.Artifact{}, nil, artifacts.ErrExpired
	}
	reader, err := s.objects.NewReader(ctx, object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return domain.Artifact{}, nil, artifacts.ErrNotFound
		}
		return domain.Artifact{}, nil, fmt.Errorf("storage: read artifact: %w", err)
	}
	return artifact, reader, nil
}

// Delete removes the artifact object. Missing objects are ignored.
func (s *ArtifactStore) Delete(ctx context.Context, id string) error {
	object, err := ObjectPath(s.prefix, id)
	if err != nil {
		return nil
	}
	if err := s.objects.Delete(ctx, object); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete artifact: %w", err)
	}
	return nil
}

// Sweep lists the prefix and deletes objects whose expiry metadata is before now.
func (s *ArtifactStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	it := s.objects.List(ctx, s.prefix+"/")
	removed := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return removed, nil
		}
		if err != nil {
			return removed, fmt.Errorf("storage: list artifacts: %w", err)
		}
		id, ok := ArtifactIDFromPath(s.prefix, attrs.Name)
		if !ok {
			continue
		}
		if !decodeMetadata(id, attrs).Expired(now) {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
}

func encodeMetadata(artifact domain.Artifact) map[string]string {
	return map[string]string{
		metaOwner:     artifact.Owner,
		metaName:      artifact.Name,
		metaCreatedAt: artifact.CreatedAt.Format(time.RFC3339Nano),
		metaExpiresAt: artifact.ExpiresAt.Format(time.RFC3339Nano),
	}
}

func decodeMetadata(id string, attrs *gcs.ObjectAttrs) domain.Artifact {
	artifact := domain.Artifact{ID: id}
	if attrs == nil {
		return artifact
	}
	artifact.ContentType = attrs.ContentType
	artifact.Size = attrs.Size
	artifact.CreatedAt = attrs.Created
	artifact.Owner = attrs.Metadata[metaOwner]
	artifact.Name = attrs.Metadata[metaName]
	if created, err := time.Parse(time.RFC3339Nano, attrs.Metadata[metaCreatedAt]); err == nil {
		artifact.CreatedAt = created
	}
	if expires, err := time.Parse(time.RFC3339Nano, attrs.Metadata[metaExpiresAt]); err == nil {
		artifact.ExpiresAt = expires
	}
	return artifact
}

var _ artifacts.Store = (*ArtifactStore)(nil)

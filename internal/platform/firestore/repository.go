package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document is a decoded Firestore document with its timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder serialises an entity prior to persistence.
type Encoder[T any] func(value T) (map[string]any, error)

// Decoder hydrates an entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// BaseRepository provides typed helpers over one collection.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository binds a repository to a collection. A nil decoder uses DataTo.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) *BaseRepository[T] {
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     encode,
		decode:     decode,
	}
}

// Create writes a new document and fails with a conflict if the id is taken.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) (time.Time, error) {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if r.encode == nil {
		return time.Time{}, errors.New("firestore: encoder is required")
	}
	payload, err := r.encode(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("firestore: encode document %s: %w", id, err)
	}
	result, err := doc.Create(ctx, payload)
	if err != nil {
		return time.Time{}, WrapError(r.op("create"), err)
	}
	return result.UpdateTime, nil
}

// Get fetches and decodes one document.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decodeDocument(snapshot)
}

func (r *BaseRepository[T]) decodeDocument(snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := r.decode(snapshot)
	if err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if r.collection == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) documentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("firestore: document id is required")
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) op(action string) string {
	return r.collection + "." + action
}

// StructDecoder populates the target using Firestore struct tags.
func StructDecoder[T any]() Decoder[T] {
	return func(snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}

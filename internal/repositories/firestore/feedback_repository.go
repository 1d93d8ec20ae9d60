package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	"github.com/linguadesk/translator/internal/domain"
	pfirestore "github.com/linguadesk/translator/internal/platform/firestore"
	"github.com/linguadesk/translator/internal/repositories"
)

// DefaultFeedbackCollection is the collection used when none is configured.
const DefaultFeedbackCollection = "feedback"

type feedbackDocument struct {
	User      string  `firestore:"user"`
	Type      string  `firestore:"type"`
	Message   string  `firestore:"message"`
	Timestamp float64 `firestore:"timestamp"`
}

// FeedbackRepository appends feedback records to a Firestore collection.
type FeedbackRepository struct {
	base  *pfirestore.BaseRepository[feedbackDocument]
	newID func() string
}

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

// NewFeedbackRepository constructs a Firestore-backed feedback repository.
func NewFeedbackRepository(provider *pfirestore.Provider, collection string) (*FeedbackRepository, error) {
	if provider == nil {
		return nil, errors.New("feedback repository requires firestore provider")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = DefaultFeedbackCollection
	}
	base := pfirestore.NewBaseRepository[feedbackDocument](provider, collection, encodeFeedback, decodeFeedback)
	return &FeedbackRepository{
		base:  base,
		newID: func() string { return ulid.Make().String() },
	}, nil
}

// Append writes the record as a new document. Records are never updated; an id collision is
// reported as a conflict.
func (r *FeedbackRepository) Append(ctx context.Context, record domain.FeedbackRecord) (domain.FeedbackRecord, error) {
	if r == nil || r.base == nil {
		return domain.FeedbackRecord{}, errors.New("feedback repository not initialised")
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = r.newID()
	}
	if _, err := r.base.Create(ctx, record.ID, fromDomainFeedback(record)); err != nil {
		return domain.FeedbackRecord{}, err
	}
	return record, nil
}

func fromDomainFeedback(record domain.FeedbackRecord) feedbackDocument {
	return feedbackDocument{
		User:      record.User,
		Type:      string(record.Type),
		Message:   record.Message,
		Timestamp: record.Timestamp,
	}
}

func toDomainFeedback(id string, doc feedbackDocument) domain.FeedbackRecord {
	return domain.FeedbackRecord{
		ID:        id,
		User:      doc.User,
		Type:      domain.FeedbackType(doc.Type),
		Message:   doc.Message,
		Timestamp: doc.Timestamp,
	}
}

func encodeFeedback(doc feedbackDocument) (map[string]any, error) {
	return map[string]any{
		"user":      doc.User,
		"type":      doc.Type,
		"message":   doc.Message,
		"timestamp": doc.Timestamp,
	}, nil
}

func decodeFeedback(snap *firestore.DocumentSnapshot) (feedbackDocument, error) {
	var doc feedbackDocument
	if err := snap.DataTo(&doc); err != nil {
		return feedbackDocument{}, err
	}
	return doc, nil
}

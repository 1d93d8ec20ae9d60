package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/repositories"
)

const defaultFeedbackMaxLength = 5000

var (
	// ErrInvalidFeedbackType is returned for a category outside domain.FeedbackTypes.
	ErrInvalidFeedbackType = errors.New("feedback service: unknown feedback type")
	// ErrEmptyFeedback is returned when the message is blank after sanitising.
	ErrEmptyFeedback = errors.New("feedback service: message is required")
	// ErrFeedbackTooLong is returned when the message exceeds the configured length.
	ErrFeedbackTooLong = errors.New("feedback service: message is too long")
	// ErrFeedbackNotSaved is returned when the store rejects the record.
	ErrFeedbackNotSaved = errors.New("feedback service: feedback could not be saved")
)

// FeedbackServiceDeps bundles collaborators required to construct a feedback service.
type FeedbackServiceDeps struct {
	Repository repositories.FeedbackRepository
	Notifier   FeedbackNotifier
	Logger     *zap.Logger
	Clock      func() time.Time
	MaxLength  int
}

type feedbackService struct {
	repo      repositories.FeedbackRepository
	notifier  FeedbackNotifier
	logger    *zap.Logger
	clock     func() time.Time
	maxLength int
	policy    *bluemonday.Policy
}

var _ FeedbackService = (*feedbackService)(nil)

// NewFeedbackService validates deps. The notifier is optional.
func NewFeedbackService(deps FeedbackServiceDeps) (FeedbackService, error) {
	if deps.Repository == nil {
		return nil, errors.New("feedback service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxLength := deps.MaxLength
	if maxLength <= 0 {
		maxLength = defaultFeedbackMaxLength
	}
	return &feedbackService{
		repo:      deps.Repository,
		notifier:  deps.Notifier,
		logger:    logger,
		clock:     clock,
		maxLength: maxLength,
		policy:    bluemonday.StrictPolicy(),
	}, nil
}

// Submit stores one feedback record attributed to the principal's email. Store failures are
// returned; notification failures are only logged.
func (s *feedbackService) Submit(ctx context.Context, principal Principal, in FeedbackInput) (FeedbackRecord, error) {
	if principal.IsZero() {
		return FeedbackRecord{}, ErrUnauthenticated
	}
	feedbackType := domain.FeedbackType(strings.TrimSpace(in.Type))
	if !feedbackType.Valid() {
		return FeedbackRecord{}, ErrInvalidFeedbackType
	}
	message := s.sanitize(in.Message)
	if message == "" {
		return FeedbackRecord{}, ErrEmptyFeedback
	}
	if utf8.RuneCountInString(message) > s.maxLength {
		return FeedbackRecord{}, ErrFeedbackTooLong
	}

	user := principal.Email
	if user == "" {
		user = principal.UID
	}
	record := FeedbackRecord{
		User:      user,
		Type:      feedbackType,
		Message:   message,
		Timestamp: domain.EpochSeconds(s.clock()),
	}
	saved, err := s.repo.Append(ctx, record)
	if err != nil {
		s.logger.Error("feedback service: append failed",
			zap.String("type", string(feedbackType)),
			zap.Error(err),
		)
		return FeedbackRecord{}, fmt.Errorf("%w: %w", ErrFeedbackNotSaved, err)
	}

	if s.notifier != nil {
		if _, err := s.notifier.PublishFeedback(ctx, saved); err != nil {
			s.logger.Warn("feedback service: publish failed",
				zap.String("feedback_id", saved.ID),
				zap.Error(err),
			)
		}
	}
	return saved, nil
}

const maxSanitizePasses = 8

// sanitize strips markup and stores plain text. Entity-encoded markup is decoded and stripped
// again until the text is stable.
func (s *feedbackService) sanitize(message string) string {
	current := message
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			return strings.TrimSpace(current)
		}
		current = next
	}
	return strings.TrimSpace(s.policy.Sanitize(current))
}

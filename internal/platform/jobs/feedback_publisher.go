package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/linguadesk/translator/internal/domain"
)

// FeedbackSubmittedEvent is the event type attribute on feedback messages.
const FeedbackSubmittedEvent = "feedback.submitted"

// FeedbackMessage is the JSON payload published for each stored feedback record.
type FeedbackMessage struct {
	ID        string  `json:"id"`
	User      string  `json:"user"`
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// FeedbackPublisher announces stored feedback on a Pub/Sub topic.
type FeedbackPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewFeedbackPublisher constructs a Pub/Sub backed feedback publisher.
func NewFeedbackPublisher(topic *pubsub.Topic) (*FeedbackPublisher, error) {
	if topic == nil {
		return nil, errors.New("feedback publisher: topic is required")
	}
	return &FeedbackPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishFeedback publishes the record and waits for the server id.
func (p *FeedbackPublisher) PublishFeedback(ctx context.Context, record domain.FeedbackRecord) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("feedback publisher: not initialised")
	}
	data, err := p.marshal(FeedbackMessage{
		ID:        record.ID,
		User:      record.User,
		Type:      string(record.Type),
		Message:   record.Message,
		Timestamp: record.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal feedback: %w", err)
	}

	attrs := map[string]string{"event": FeedbackSubmittedEvent}
	setAttr(attrs, "feedbackId", record.ID)
	setAttr(attrs, "type", string(record.Type))

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish feedback: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *FeedbackPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

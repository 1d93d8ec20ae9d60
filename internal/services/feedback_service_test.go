package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/linguadesk/translator/internal/domain"
)

type stubFeedbackRepository struct {
	records []FeedbackRecord
	err     error
}

func (s *stubFeedbackRepository) Append(_ context.Context, record FeedbackRecord) (FeedbackRecord, error) {
	if s.err != nil {
		return FeedbackRecord{}, s.err
	}
	record.ID = "fb-1"
	s.records = append(s.records, record)
	return record, nil
}

type stubNotifier struct {
	published []FeedbackRecord
	err       error
}

func (s *stubNotifier) PublishFeedback(_ context.Context, record FeedbackRecord) (string, error) {
	s.published = append(s.published, record)
	return "msg-1", s.err
}

func TestFeedbackSubmitStoresSanitisedRecord(t *testing.T) {
	repo := &stubFeedbackRepository{}
	notifier := &stubNotifier{}
	now := time.Date(2026, 5, 1, 9, 30, 0, 500_000_000, time.UTC)
	svc, err := NewFeedbackService(FeedbackServiceDeps{
		Repository: repo,
		Notifier:   notifier,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewFeedbackService: %v", err)
	}

	saved, err := svc.Submit(context.Background(), testPrincipal, FeedbackInput{
		Type:    "Translation Issue",
		Message: "  <script>alert(1)</script><b>Wrong</b> tense & tone  ",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if saved.ID != "fb-1" || saved.User != "a@example.com" || saved.Type != domain.FeedbackTranslationIssue {
		t.Fatalf("unexpected record %+v", saved)
	}
	if saved.Message != "Wrong tense & tone" {
		t.Fatalf("unexpected sanitised message %q", saved.Message)
	}
	if saved.Timestamp != float64(now.Unix())+0.5 {
		t.Fatalf("unexpected timestamp %v", saved.Timestamp)
	}
	if len(notifier.published) != 1 || notifier.published[0].ID != "fb-1" {
		t.Fatalf("expected one notification, got %+v", notifier.published)
	}

	encoded := []struct {
		in   string
		want string
	}{
		{in: "&lt;b&gt;x&lt;/b&gt;", want: "x"},
		{in: "&amp;lt;i&amp;gt;y&amp;lt;/i&amp;gt;", want: "y"},
		{in: "a < b", want: "a < b"},
	}
	for _, tc := range encoded {
		saved, err := svc.Submit(context.Background(), testPrincipal, FeedbackInput{Type: "Usability Feedback", Message: tc.in})
		if err != nil {
			t.Fatalf("Submit(%q): %v", tc.in, err)
		}
		if saved.Message != tc.want {
			t.Fatalf("Submit(%q): expected %q, got %q", tc.in, tc.want, saved.Message)
		}
	}
}

func TestFeedbackSubmitValidates(t *testing.T) {
	repo := &stubFeedbackRepository{}
	svc, err := NewFeedbackService(FeedbackServiceDeps{Repository: repo, MaxLength: 10})
	if err != nil {
		t.Fatalf("NewFeedbackService: %v", err)
	}
	cases := []struct {
		principal Principal
		in        FeedbackInput
		want      error
	}{
		{principal: Principal{}, in: FeedbackInput{Type: "Feature Request", Message: "x"}, want: ErrUnauthenticated},
		{principal: testPrincipal, in: FeedbackInput{Type: "Complaint", Message: "x"}, want: ErrInvalidFeedbackType},
		{principal: testPrincipal, in: FeedbackInput{Type: "Feature Request", Message: " <p> </p> "}, want: ErrEmptyFeedback},
		{principal: testPrincipal, in: FeedbackInput{Type: "Feature Request", Message: strings.Repeat("a", 11)}, want: ErrFeedbackTooLong},
	}
	for _, tc := range cases {
		if _, err := svc.Submit(context.Background(), tc.principal, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.in, tc.want, err)
		}
	}
	if len(repo.records) != 0 {
		t.Fatalf("invalid feedback must not be stored, got %d records", len(repo.records))
	}
}

func TestFeedbackSubmitSurfacesStoreFailure(t *testing.T) {
	storeErr := errors.New("firestore unavailable")
	notifier := &stubNotifier{}
	svc, err := NewFeedbackService(FeedbackServiceDeps{
		Repository: &stubFeedbackRepository{err: storeErr},
		Notifier:   notifier,
	})
	if err != nil {
		t.Fatalf("NewFeedbackService: %v", err)
	}
	_, err = svc.Submit(context.Background(), testPrincipal, FeedbackInput{Type: "Usability Feedback", Message: "slow"})
	if !errors.Is(err, ErrFeedbackNotSaved) || !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if len(notifier.published) != 0 {
		t.Fatal("failed writes must not be announced")
	}
}

func TestFeedbackSubmitLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc, err := NewFeedbackService(FeedbackServiceDeps{
		Repository: &stubFeedbackRepository{},
		Notifier:   &stubNotifier{err: errors.New("topic not found")},
		Logger:     zap.New(core),
	})
	if err != nil {
		t.Fatalf("NewFeedbackService: %v", err)
	}
	if _, err := svc.Submit(context.Background(), testPrincipal, FeedbackInput{Type: "Usability Feedback", Message: "ok"}); err != nil {
		t.Fatalf("publish failure must not fail Submit: %v", err)
	}
	if logs.FilterMessage("feedback service: publish failed").Len() != 1 {
		t.Fatalf("expected publish warning, got %v", logs.All())
	}
}

func TestNewFeedbackServiceRequiresRepository(t *testing.T) {
	if _, err := NewFeedbackService(FeedbackServiceDeps{}); err == nil {
		t.Fatal("expected error without repository")
	}
}

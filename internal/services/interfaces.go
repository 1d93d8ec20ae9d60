package services

import (
	"context"
	"io"

	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/extract"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Language           = domain.Language
	LanguageCode       = domain.LanguageCode
	Principal          = domain.Principal
	Artifact           = domain.Artifact
	FeedbackRecord     = domain.FeedbackRecord
	SystemHealthReport = domain.SystemHealthReport
)

// TranslationService orchestrates extraction, fan-out translation, speech synthesis and the
// downloadable result for one user action.
type TranslationService interface {
	Languages() []Language
	TranslateText(ctx context.Context, principal Principal, in TextInput) (TranslationBatch, error)
	TranslateDocument(ctx context.Context, principal Principal, in DocumentInput) (TranslationBatch, error)
	ExtractText(ctx context.Context, upload extract.Upload) (extract.Result, error)
	OpenArtifact(ctx context.Context, principal Principal, artifactID string) (Artifact, io.ReadCloser, error)
}

// FeedbackService validates and persists user feedback.
type FeedbackService interface {
	Submit(ctx context.Context, principal Principal, in FeedbackInput) (FeedbackRecord, error)
}

// SystemService exposes health reports and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Translator is the fan-out engine contract consumed by the translation service.
type Translator interface {
	Translate(ctx context.Context, req domain.TranslationRequest) domain.TranslationResult
}

// TextExtractor converts uploads into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, upload extract.Upload) (extract.Result, error)
}

// Synthesizer renders one translation as an audio artifact owned by the principal.
type Synthesizer interface {
	Synthesize(ctx context.Context, owner Principal, text, descriptor string) (*Artifact, error)
}

// FeedbackNotifier announces stored feedback to downstream consumers.
type FeedbackNotifier interface {
	PublishFeedback(ctx context.Context, record FeedbackRecord) (string, error)
}

// TextInput is a typed-text translation request. Languages holds UI selections: display names
// or catalog codes.
type TextInput struct {
	Text      string
	Languages []string
}

// DocumentInput is an uploaded-file translation request.
type DocumentInput struct {
	Upload    extract.Upload
	Languages []string
}

// FeedbackInput is the raw feedback form payload.
type FeedbackInput struct {
	Type    string
	Message string
}

// TranslationItem is the rendered view of one target language.
type TranslationItem struct {
	Language Language
	Outcome  domain.TranslationOutcome
	Audio    domain.AudioClip
}

// TranslationBatch is the complete result of one translate action. Items follow selection order.
type TranslationBatch struct {
	SourceText  string
	Extraction  *extract.Result
	Unsupported bool
	Items       []TranslationItem
	Result      domain.TranslationResult
	Download    *Artifact
}

// Failed reports how many languages carry an error placeholder.
func (b TranslationBatch) Failed() int {
	return len(b.Result.Failed())
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/languages"
)

// FallbackLanguage is used when a descriptor matches no catalog entry.
const FallbackLanguage domain.LanguageCode = "en"

const (
	audioContentType = "audio/mpeg"
	metricNamespace  = "github.com/linguadesk/translator/internal/speech"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("speech: text is empty")

// Backend turns text into MP3 audio for a BCP-47 voice language.
type Backend interface {
	Synthesize(ctx context.Context, text, voiceLanguage string) ([]byte, error)
}

// Adapter resolves language descriptors, calls the backend, and stores the audio as an artifact.
type Adapter struct {
	backend Backend
	catalog *languages.Catalog
	store   artifacts.Store
	logger  *zap.Logger
	ttl     time.Duration
	counter metric.Int64Counter
}

// Deps groups the adapter collaborators.
type Deps struct {
	Backend Backend
	Catalog *languages.Catalog
	Store   artifacts.Store
	Logger  *zap.Logger
	TTL     time.Duration
	Meter   metric.Meter
}

// NewAdapter validates deps and constructs an adapter.
func NewAdapter(deps Deps) (*Adapter, error) {
	if deps.Backend == nil {
		return nil, errors.New("speech: backend is required")
	}
	if deps.Store == nil {
		return nil, errors.New("speech: artifact store is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = languages.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	counter, err := meter.Int64Counter(
		"speech.synthesis",
		metric.WithDescription("Count of speech synthesis requests by outcome"),
	)
	if err != nil {
		deps.Logger.Warn("speech: unable to register synthesis metric", zap.Error(err))
	}
	return &Adapter{
		backend: deps.Backend,
		catalog: deps.Catalog,
		store:   deps.Store,
		logger:  deps.Logger,
		ttl:     deps.TTL,
		counter: counter,
	}, nil
}

// Resolve maps a display name or code onto the catalog. Unknown descriptors fall back to
// English and the substitution is logged.
func (a *Adapter) Resolve(descriptor string) domain.Language {
	if lang, ok := a.catalog.Resolve(descriptor); ok {
		return lang
	}
	fallback, ok := a.catalog.Lookup(FallbackLanguage)
	if !ok {
		fallback = domain.Language{Code: FallbackLanguage, Name: "english"}
	}
	a.logger.Warn("speech: unknown language, falling back",
		zap.String("descriptor", descriptor),
		zap.String("fallback", fallback.Code.String()),
	)
	return fallback
}

// Synthesize speaks text in the language named by descriptor and stores the audio for owner.
// On failure no artifact is returned.
func (a *Adapter) Synthesize(ctx context.Context, owner domain.Principal, text, descriptor string) (*domain.Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	lang := a.Resolve(descriptor)
	voice := VoiceLanguage(lang.Code)

	audio, err := a.backend.Synthesize(ctx, text, voice)
	if err != nil {
		a.record(ctx, lang.Code, "failure")
		a.logger.Warn("speech synthesis failed",
			zap.String("language", lang.Code.String()),
			zap.String("voice", voice),
			zap.Error(err),
		)
		return nil, fmt.Errorf("speech: synthesize %s: %w", lang.Code, err)
	}

	artifact, err := a.store.Put(ctx, artifacts.PutInput{
		Owner:       owner.UID,
		Name:        lang.Code.String() + ".mp3",
		ContentType: audioContentType,
		Data:        audio,
		TTL:         a.ttl,
	})
	if err != nil {
		a.record(ctx, lang.Code, "store_failure")
		return nil, fmt.Errorf("speech: store audio: %w", err)
	}
	a.record(ctx, lang.Code, "success")
	return &artifact, nil
}

func (a *Adapter) record(ctx context.Context, code domain.LanguageCode, outcome string) {
	if a.counter == nil {
		return
	}
	a.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", code.String()),
		attribute.String("outcome", outcome),
	))
}

// VoiceLanguage converts a catalog code into a BCP-47 tag with its most likely region
// ("fr" becomes "fr-FR", "zh-cn" becomes "zh-CN").
func VoiceLanguage(code domain.LanguageCode) string {
	tag, err := language.Parse(code.String())
	if err != nil {
		return code.String()
	}
	base, _ := tag.Base()
	region, confidence := tag.Region()
	if confidence == language.No {
		return base.String()
	}
	return base.String() + "-" + region.String()
}

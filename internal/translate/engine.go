package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linguadesk/translator/internal/domain"
)

const (
	defaultMaxAttempts    = 2
	defaultBackoff        = time.Second
	defaultAttemptTimeout = 15 * time.Second
	defaultConcurrency    = 4
	metricNamespace       = "github.com/linguadesk/translator/internal/translate"
)

// Backend performs a single translation call against a third-party service.
type Backend interface {
	Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, text string, target domain.LanguageCode) (string, error)

// Translate implements Backend.
func (f BackendFunc) Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error) {
	return f(ctx, text, target)
}

// Engine fans a request out to the backend, one task per target language, with bounded retry and concurrency.
type Engine struct {
	backend        Backend
	logger         *zap.Logger
	maxAttempts    int
	backoff        time.Duration
	attemptTimeout time.Duration
	concurrency    int
	classifier     Classifier

	attemptCounter metric.Int64Counter
}

type engineConfig struct {
	logger         *zap.Logger
	meter          metric.Meter
	maxAttempts    int
	backoff        time.Duration
	attemptTimeout time.Duration
	concurrency    int
	patterns       []string
	patternsSet    bool
}

// Option customises Engine construction.
type Option func(*engineConfig)

// WithLogger sets the logger used for retry and failure diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *engineConfig) {
		cfg.meter = m
	}
}

// WithMaxAttempts sets the total number of attempts per language, including the first call.
func WithMaxAttempts(n int) Option {
	return func(cfg *engineConfig) {
		cfg.maxAttempts = n
	}
}

// WithBackoff sets the fixed pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.backoff = d
	}
}

// WithAttemptTimeout bounds a single backend call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.attemptTimeout = d
	}
}

// WithConcurrency caps the number of languages translated at once.
func WithConcurrency(n int) Option {
	return func(cfg *engineConfig) {
		cfg.concurrency = n
	}
}

// WithTransientPatterns replaces the error message fragments treated as transient.
func WithTransientPatterns(patterns ...string) Option {
	return func(cfg *engineConfig) {
		cfg.patterns = append([]string(nil), patterns...)
		cfg.patternsSet = true
	}
}

// NewEngine constructs a fan-out engine around backend.
func NewEngine(backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("translate: backend is required")
	}
	cfg := engineConfig{
		logger:         zap.NewNop(),
		maxAttempts:    defaultMaxAttempts,
		backoff:        defaultBackoff,
		attemptTimeout: defaultAttemptTimeout,
		concurrency:    defaultConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.backoff < 0 {
		cfg.backoff = 0
	}
	if cfg.attemptTimeout <= 0 {
		cfg.attemptTimeout = defaultAttemptTimeout
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = defaultConcurrency
	}

	classifier := DefaultClassifier()
	if cfg.patternsSet {
		classifier = NewClassifier(cfg.patterns...)
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	counter, err := meter.Int64Counter(
		"translate.attempts",
		metric.WithDescription("Count of translation backend attempts by outcome"),
	)
	if err != nil {
		cfg.logger.Warn("translate: unable to register attempt metric", zap.Error(err))
	}

	return &Engine{
		backend:        backend,
		logger:         cfg.logger,
		maxAttempts:    cfg.maxAttempts,
		backoff:        cfg.backoff,
		attemptTimeout: cfg.attemptTimeout,
		concurrency:    cfg.concurrency,
		classifier:     classifier,
		attemptCounter: counter,
	}, nil
}

// MaxAttempts returns the configured attempt budget per language.
func (e *Engine) MaxAttempts() int { return e.maxAttempts }

// Translate returns exactly one outcome per request target, in request order. Per-language
// failures are reported in the outcome; the batch itself never fails.
func (e *Engine) Translate(ctx context.Context, req domain.TranslationRequest) domain.TranslationResult {
	targets := req.Targets()
	outcomes := make([]domain.TranslationOutcome, len(targets))

	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			outcomes[i] = cancelledOutcome(target, err)
			continue
		}
		group.Go(func() error {
			outcomes[i] = e.translateOne(ctx, req.SourceText(), target)
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.OK() {
			failed++
		}
	}
	e.logger.Debug("translation batch completed",
		zap.Int("languages", len(targets)),
		zap.Int("failed", failed),
	)
	return domain.TranslationResult{Outcomes: outcomes}
}

func (e *Engine) translateOne(ctx context.Context, text string, target domain.LanguageCode) domain.TranslationOutcome {
	var (
		translated string
		attempts   int
		transient  bool
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		defer cancel()

		out, err := e.backend.Translate(attemptCtx, text, target)
		if err == nil {
			translated = out
			e.recordAttempt(ctx, target, "success")
			return nil
		}
		transient = e.classifier.IsTransient(ctx, err)
		if transient {
			e.recordAttempt(ctx, target, "transient")
			return err
		}
		e.recordAttempt(ctx, target, "failure")
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.backoff), uint64(e.maxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("translation attempt failed, retrying",
			zap.String("language", target.String()),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		e.logger.Warn("translation failed",
			zap.String("language", target.String()),
			zap.Int("attempts", attempts),
			zap.Bool("transient", transient),
			zap.Error(err),
		)
		return domain.TranslationOutcome{
			Language: target,
			Err:      &domain.TranslationError{Language: target, Attempts: attempts, Transient: transient, Err: err},
			Attempts: attempts,
		}
	}

	return domain.TranslationOutcome{Language: target, Text: translated, Attempts: attempts}
}

func (e *Engine) recordAttempt(ctx context.Context, target domain.LanguageCode, outcome string) {
	if e.attemptCounter == nil {
		return
	}
	e.attemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", target.String()),
		attribute.String("outcome", outcome),
	))
}

func cancelledOutcome(target domain.LanguageCode, err error) domain.TranslationOutcome {
	return domain.TranslationOutcome{
		Language: target,
		Err:      &domain.TranslationError{Language: target, Err: fmt.Errorf("translation cancelled: %w", err)},
	}
}

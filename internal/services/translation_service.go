package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/extract"
	"github.com/linguadesk/translator/internal/languages"
)

const defaultSynthesisConcurrency = 4

var (
	// ErrNothingToTranslate is returned when the text is blank or no language is selected.
	ErrNothingToTranslate = errors.New("translation service: text and at least one language are required")
	// ErrUnauthenticated is returned when an operation needs a signed-in principal.
	ErrUnauthenticated = errors.New("translation service: sign-in required")
	// ErrExtractionFailed wraps parser failures for uploaded documents.
	ErrExtractionFailed = errors.New("translation service: could not read the uploaded file")
)

// TranslationServiceDeps bundles collaborators required to construct a translation service.
type TranslationServiceDeps struct {
	Translator           Translator
	Extractor            TextExtractor
	Synthesizer          Synthesizer
	Catalog              *languages.Catalog
	Artifacts            artifacts.Store
	Logger               *zap.Logger
	SynthesisConcurrency int
	DownloadTTL          time.Duration
}

type translationService struct {
	translator  Translator
	extractor   TextExtractor
	synthesizer Synthesizer
	catalog     *languages.Catalog
	artifacts   artifacts.Store
	logger      *zap.Logger
	concurrency int
	downloadTTL time.Duration
}

var _ TranslationService = (*translationService)(nil)

// NewTranslationService validates deps. A nil Synthesizer disables audio.
func NewTranslationService(deps TranslationServiceDeps) (TranslationService, error) {
	if deps.Translator == nil {
		return nil, errors.New("translation service: translator is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("translation service: extractor is required")
	}
	if deps.Artifacts == nil {
		return nil, errors.New("translation service: artifact store is required")
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = languages.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.SynthesisConcurrency
	if concurrency <= 0 {
		concurrency = defaultSynthesisConcurrency
	}
	return &translationService{
		translator:  deps.Translator,
		extractor:   deps.Extractor,
		synthesizer: deps.Synthesizer,
		catalog:     catalog,
		artifacts:   deps.Artifacts,
		logger:      logger,
		concurrency: concurrency,
		downloadTTL: deps.DownloadTTL,
	}, nil
}

func (s *translationService) Languages() []Language {
	return s.catalog.All()
}

func (s *translationService) TranslateText(ctx context.Context, principal Principal, in TextInput) (TranslationBatch, error) {
	if principal.IsZero() {
		return TranslationBatch{}, ErrUnauthenticated
	}
	return s.run(ctx, principal, in.Text, in.Languages, nil)
}

func (s *translationService) TranslateDocument(ctx context.Context, principal Principal, in DocumentInput) (TranslationBatch, error) {
	if principal.IsZero() {
		return TranslationBatch{}, ErrUnauthenticated
	}
	extraction, err := s.ExtractText(ctx, in.Upload)
	if err != nil {
		return TranslationBatch{}, err
	}
	if !extraction.Supported {
		return TranslationBatch{
			SourceText:  extraction.Text,
			Extraction:  &extraction,
			Unsupported: true,
		}, nil
	}
	return s.run(ctx, principal, extraction.Text, in.Languages, &extraction)
}

func (s *translationService) ExtractText(ctx context.Context, upload extract.Upload) (extract.Result, error) {
	result, err := s.extractor.Extract(ctx, upload)
	if err != nil {
		if errors.Is(err, extract.ErrTooLarge) || errors.Is(err, context.Canceled) {
			return extract.Result{}, err
		}
		return extract.Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return result, nil
}

func (s *translationService) OpenArtifact(ctx context.Context, principal Principal, artifactID string) (Artifact, io.ReadCloser, error) {
	return artifacts.OpenFor(ctx, s.artifacts, strings.TrimSpace(artifactID), principal)
}

func (s *translationService) run(ctx context.Context, principal Principal, text string, selections []string, extraction *extract.Result) (TranslationBatch, error) {
	targets := s.resolve(selections)
	if strings.TrimSpace(text) == "" || len(targets) == 0 {
		return TranslationBatch{}, ErrNothingToTranslate
	}
	codes := make([]LanguageCode, len(targets))
	byCode := make(map[LanguageCode]Language, len(targets))
	for i, lang := range targets {
		codes[i] = lang.Code
		byCode[lang.Code] = lang
	}
	req, err := domain.NewTranslationRequest(text, codes)
	if err != nil {
		return TranslationBatch{}, ErrNothingToTranslate
	}

	result := s.translator.Translate(ctx, req)
	items := make([]TranslationItem, len(result.Outcomes))
	for i, outcome := range result.Outcomes {
		lang, ok := byCode[outcome.Language]
		if !ok {
			lang = Language{Code: outcome.Language, Name: outcome.Language.String()}
		}
		items[i] = TranslationItem{Language: lang, Outcome: outcome}
	}
	s.synthesize(ctx, principal, items)

	batch := TranslationBatch{
		SourceText: text,
		Extraction: extraction,
		Items:      items,
		Result:     result,
	}
	download, err := s.artifacts.Put(ctx, artifacts.PutInput{
		Owner:       principal.UID,
		Name:        domain.DownloadFileName,
		ContentType: domain.DownloadContentType,
		Data:        []byte(result.DownloadText()),
		TTL:         s.downloadTTL,
	})
	if err != nil {
		s.logger.Warn("translation service: store download failed", zap.Error(err))
	} else {
		batch.Download = &download
	}

	s.logger.Info("translation batch served",
		zap.Int("languages", len(items)),
		zap.Int("failed", batch.Failed()),
		zap.Bool("document", extraction != nil),
	)
	return batch, nil
}

// resolve maps selections onto the catalog in selection order. Unknown selections are passed
// through as raw codes so the backend reports them per language.
func (s *translationService) resolve(selections []string) []Language {
	seen := make(map[LanguageCode]struct{}, len(selections))
	out := make([]Language, 0, len(selections))
	for _, selection := range selections {
		selection = strings.TrimSpace(selection)
		if selection == "" {
			continue
		}
		lang, ok := s.catalog.Resolve(selection)
		if !ok {
			lang = Language{Code: LanguageCode(selection), Name: selection}
		}
		if _, dup := seen[lang.Code]; dup {
			continue
		}
		seen[lang.Code] = struct{}{}
		out = append(out, lang)
	}
	return out
}

// synthesize fills Audio for every successful item. Failures are recorded per item.
func (s *translationService) synthesize(ctx context.Context, principal Principal, items []TranslationItem) {
	if s.synthesizer == nil {
		return
	}
	var group errgroup.Group
	group.SetLimit(s.concurrency)
	for i := range items {
		if !items[i].Outcome.OK() || strings.TrimSpace(items[i].Outcome.Text) == "" {
			continue
		}
		group.Go(func() error {
			item := &items[i]
			clip := domain.AudioClip{Language: item.Language.Code}
			artifact, err := s.synthesizer.Synthesize(ctx, principal, item.Outcome.Text, item.Language.Name)
			if err != nil {
				clip.Err = err
			} else {
				clip.Artifact = artifact
			}
			item.Audio = clip
			return nil
		})
	}
	_ = group.Wait()
}

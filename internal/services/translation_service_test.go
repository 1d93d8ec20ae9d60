package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/extract"
	"github.com/linguadesk/translator/internal/translate"
)

type stubExtractor struct {
	result extract.Result
	err    error
	calls  int
}

func (s *stubExtractor) Extract(context.Context, extract.Upload) (extract.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubSynthesizer struct {
	mu    sync.Mutex
	texts map[string]string
	fail  map[string]error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, owner Principal, text, descriptor string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.texts == nil {
		s.texts = map[string]string{}
	}
	s.texts[descriptor] = text
	if err := s.fail[descriptor]; err != nil {
		return nil, err
	}
	return &Artifact{ID: "audio-" + descriptor, Owner: owner.UID, Name: descriptor + ".mp3"}, nil
}

func mapBackend(translations map[domain.LanguageCode]string) translate.Backend {
	return translate.BackendFunc(func(_ context.Context, _ string, target domain.LanguageCode) (string, error) {
		if text, ok := translations[target]; ok {
			return text, nil
		}
		return "", errors.New("Invalid target language: " + target.String())
	})
}

func newTestTranslationService(t *testing.T, backend translate.Backend, extractor TextExtractor, synth Synthesizer) (TranslationService, *artifacts.LocalStore) {
	t.Helper()
	engine, err := translate.NewEngine(backend, translate.WithBackoff(0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store, err := artifacts.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if extractor == nil {
		extractor = &stubExtractor{}
	}
	svc, err := NewTranslationService(TranslationServiceDeps{
		Translator:  engine,
		Extractor:   extractor,
		Synthesizer: synth,
		Artifacts:   store,
	})
	if err != nil {
		t.Fatalf("NewTranslationService: %v", err)
	}
	return svc, store
}

var testPrincipal = Principal{UID: "user-1", Email: "a@example.com"}

func TestTranslateTextResolvesSelectionsAndBuildsDownload(t *testing.T) {
	synth := &stubSynthesizer{}
	svc, _ := newTestTranslationService(t, mapBackend(map[domain.LanguageCode]string{
		"fr": "Bonjour",
		"es": "Hola",
	}), nil, synth)

	batch, err := svc.TranslateText(context.Background(), testPrincipal, TextInput{
		Text:      "Hello",
		Languages: []string{"French", "es", "french"},
	})
	if err != nil {
		t.Fatalf("TranslateText: %v", err)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(batch.Items))
	}
	if batch.Items[0].Language.Code != "fr" || batch.Items[1].Language.Code != "es" {
		t.Fatalf("expected selection order fr, es; got %+v", batch.Items)
	}
	if got := batch.Result.Map(); got["fr"] != "Bonjour" || got["es"] != "Hola" || len(got) != 2 {
		t.Fatalf("unexpected result map %v", got)
	}
	for _, item := range batch.Items {
		if !item.Audio.OK() || item.Audio.Artifact.Owner != "user-1" {
			t.Fatalf("expected audio for %s, got %+v", item.Language.Code, item.Audio)
		}
	}
	if synth.texts["french"] != "Bonjour" {
		t.Fatalf("expected synthesis by catalog name, got %v", synth.texts)
	}

	if batch.Download == nil {
		t.Fatal("expected download artifact")
	}
	if batch.Download.Name != "translated_file.txt" || batch.Download.ContentType != "text/plain" {
		t.Fatalf("unexpected download %+v", batch.Download)
	}
	_, rc, err := svc.OpenArtifact(context.Background(), testPrincipal, batch.Download.ID)
	if err != nil {
		t.Fatalf("OpenArtifact: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "fr: Bonjour\nes: Hola" {
		t.Fatalf("unexpected download body %q", body)
	}
}

func TestTranslateTextUnknownSelectionBecomesPlaceholder(t *testing.T) {
	synth := &stubSynthesizer{}
	svc, _ := newTestTranslationService(t, mapBackend(map[domain.LanguageCode]string{"fr": "Bonjour"}), nil, synth)

	batch, err := svc.TranslateText(context.Background(), testPrincipal, TextInput{
		Text:      "Hello",
		Languages: []string{"Klingon", "fr"},
	})
	if err != nil {
		t.Fatalf("TranslateText: %v", err)
	}
	if batch.Failed() != 1 {
		t.Fatalf("expected one failure, got %d", batch.Failed())
	}
	first := batch.Items[0]
	if first.Language.Code != "Klingon" || first.Outcome.OK() {
		t.Fatalf("expected failed pass-through item, got %+v", first)
	}
	if first.Outcome.Display() != "Error: Invalid target language: Klingon" {
		t.Fatalf("unexpected placeholder %q", first.Outcome.Display())
	}
	if first.Audio.Artifact != nil || len(synth.texts) != 1 {
		t.Fatalf("failed translations must not be synthesized: %v", synth.texts)
	}
}

func TestTranslateTextSynthesisFailureIsPerItem(t *testing.T) {
	synth := &stubSynthesizer{fail: map[string]error{"spanish": errors.New("quota exceeded")}}
	svc, _ := newTestTranslationService(t, mapBackend(map[domain.LanguageCode]string{
		"fr": "Bonjour",
		"es": "Hola",
	}), nil, synth)

	batch, err := svc.TranslateText(context.Background(), testPrincipal, TextInput{Text: "Hello", Languages: []string{"fr", "es"}})
	if err != nil {
		t.Fatalf("TranslateText: %v", err)
	}
	if !batch.Items[0].Audio.OK() {
		t.Fatalf("expected french audio, got %+v", batch.Items[0].Audio)
	}
	if batch.Items[1].Audio.OK() || batch.Items[1].Audio.Err == nil {
		t.Fatalf("expected spanish synthesis error, got %+v", batch.Items[1].Audio)
	}
	if !batch.Items[1].Outcome.OK() {
		t.Fatal("synthesis failure must not affect the translation")
	}
}

func TestTranslateTextRequiresInput(t *testing.T) {
	svc, _ := newTestTranslationService(t, mapBackend(nil), nil, nil)

	cases := []TextInput{
		{Text: "   ", Languages: []string{"fr"}},
		{Text: "Hello"},
		{Text: "Hello", Languages: []string{" ", ""}},
	}
	for _, in := range cases {
		if _, err := svc.TranslateText(context.Background(), testPrincipal, in); !errors.Is(err, ErrNothingToTranslate) {
			t.Fatalf("%+v: expected ErrNothingToTranslate, got %v", in, err)
		}
	}
	if _, err := svc.TranslateText(context.Background(), Principal{}, TextInput{Text: "x", Languages: []string{"fr"}}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestTranslateDocumentUnsupportedSkipsTranslation(t *testing.T) {
	extractor := &stubExtractor{result: extract.Result{Text: extract.UnsupportedText, Kind: extract.KindUnsupported}}
	calls := 0
	backend := translate.BackendFunc(func(context.Context, string, domain.LanguageCode) (string, error) {
		calls++
		return "", nil
	})
	svc, _ := newTestTranslationService(t, backend, extractor, nil)

	batch, err := svc.TranslateDocument(context.Background(), testPrincipal, DocumentInput{
		Upload:    extract.Upload{Name: "a.zip", MediaType: "application/zip", Data: []byte("PK")},
		Languages: []string{"fr"},
	})
	if err != nil {
		t.Fatalf("TranslateDocument: %v", err)
	}
	if !batch.Unsupported || batch.SourceText != "Unsupported file type" {
		t.Fatalf("expected unsupported batch, got %+v", batch)
	}
	if calls != 0 || len(batch.Items) != 0 || batch.Download != nil {
		t.Fatalf("unsupported upload must not translate: calls=%d batch=%+v", calls, batch)
	}
}

func TestTranslateDocumentTranslatesExtractedText(t *testing.T) {
	extractor := &stubExtractor{result: extract.Result{Text: "Hello", Kind: extract.KindPDF, Supported: true}}
	svc, _ := newTestTranslationService(t, mapBackend(map[domain.LanguageCode]string{"de": "Hallo"}), extractor, nil)

	batch, err := svc.TranslateDocument(context.Background(), testPrincipal, DocumentInput{
		Upload:    extract.Upload{Name: "a.pdf", MediaType: "application/pdf", Data: []byte("%PDF")},
		Languages: []string{"German"},
	})
	if err != nil {
		t.Fatalf("TranslateDocument: %v", err)
	}
	if batch.Extraction == nil || batch.Extraction.Kind != extract.KindPDF {
		t.Fatalf("expected extraction details, got %+v", batch.Extraction)
	}
	if got := batch.Result.Map()["de"]; got != "Hallo" {
		t.Fatalf("expected Hallo, got %q", got)
	}
	if batch.Items[0].Audio.Artifact != nil {
		t.Fatal("audio must be absent without a synthesizer")
	}
}

func TestTranslateDocumentDownloadKeepsParagraphsPerLanguage(t *testing.T) {
	extractor := &stubExtractor{result: extract.Result{Text: "First paragraph\nSecond paragraph", Kind: extract.KindDOCX, Supported: true}}
	backend := translate.BackendFunc(func(_ context.Context, text string, target domain.LanguageCode) (string, error) {
		return target.String() + ":" + text, nil
	})
	svc, _ := newTestTranslationService(t, backend, extractor, nil)

	batch, err := svc.TranslateDocument(context.Background(), testPrincipal, DocumentInput{
		Upload:    extract.Upload{Name: "notes.docx", Data: []byte("PK")},
		Languages: []string{"fr", "es"},
	})
	if err != nil {
		t.Fatalf("TranslateDocument: %v", err)
	}
	if batch.Download == nil {
		t.Fatal("expected download artifact")
	}
	_, rc, err := svc.OpenArtifact(context.Background(), testPrincipal, batch.Download.ID)
	if err != nil {
		t.Fatalf("OpenArtifact: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)

	lines := domain.ParseDownload(string(body))
	if len(lines) != 2 {
		t.Fatalf("expected one line per language, got %d in %q", len(lines), body)
	}
	if lines[0].Label != "fr" || lines[0].Text != "fr:First paragraph\nSecond paragraph" {
		t.Fatalf("unexpected fr line %+v", lines[0])
	}
	if lines[1].Label != "es" || lines[1].Text != "es:First paragraph\nSecond paragraph" {
		t.Fatalf("unexpected es line %+v", lines[1])
	}
}

func TestTranslateDocumentWrapsParserErrors(t *testing.T) {
	parseErr := errors.New("malformed xref table")
	svc, _ := newTestTranslationService(t, mapBackend(nil), &stubExtractor{err: parseErr}, nil)

	_, err := svc.TranslateDocument(context.Background(), testPrincipal, DocumentInput{
		Upload:    extract.Upload{Name: "a.pdf", MediaType: "application/pdf"},
		Languages: []string{"fr"},
	})
	if !errors.Is(err, ErrExtractionFailed) || !errors.Is(err, parseErr) {
		t.Fatalf("expected wrapped parser error, got %v", err)
	}

	svc, _ = newTestTranslationService(t, mapBackend(nil), &stubExtractor{err: extract.ErrTooLarge}, nil)
	_, err = svc.ExtractText(context.Background(), extract.Upload{Name: "a.txt"})
	if !errors.Is(err, extract.ErrTooLarge) || errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected bare ErrTooLarge, got %v", err)
	}
}

func TestOpenArtifactChecksOwner(t *testing.T) {
	svc, store := newTestTranslationService(t, mapBackend(nil), nil, nil)
	artifact, err := store.Put(context.Background(), artifacts.PutInput{
		Owner:       "user-1",
		Name:        "fr.mp3",
		ContentType: "audio/mpeg",
		Data:        []byte("mp3"),
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, _, err := svc.OpenArtifact(context.Background(), Principal{UID: "intruder"}, artifact.ID); !errors.Is(err, artifacts.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	_, rc, err := svc.OpenArtifact(context.Background(), testPrincipal, artifact.ID)
	if err != nil {
		t.Fatalf("owner open: %v", err)
	}
	_ = rc.Close()
}

func TestLanguagesListsCatalog(t *testing.T) {
	svc, _ := newTestTranslationService(t, mapBackend(nil), nil, nil)
	langs := svc.Languages()
	if len(langs) == 0 || langs[0].Code != "af" {
		t.Fatalf("unexpected catalog %v", langs)
	}
}

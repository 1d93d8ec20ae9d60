package domain

import (
	"errors"
	"testing"
)

func TestNewTranslationRequestDeduplicates(t *testing.T) {
	req, err := NewTranslationRequest("Hello", []LanguageCode{"fr", "es", "fr", " ", "de", "es"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := req.Targets()
	want := []LanguageCode{"fr", "es", "de"}
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("target %d: expected %s got %s", i, want[i], got[i])
		}
	}

	got[0] = "xx"
	if req.Targets()[0] != "fr" {
		t.Fatalf("targets should be immutable")
	}
}

func TestNewTranslationRequestRequiresTargets(t *testing.T) {
	if _, err := NewTranslationRequest("Hello", nil); !errors.Is(err, ErrNoTargetLanguages) {
		t.Fatalf("expected ErrNoTargetLanguages, got %v", err)
	}
	if _, err := NewTranslationRequest("", []LanguageCode{"fr"}); err != nil {
		t.Fatalf("empty source text should be accepted: %v", err)
	}
}

func TestOutcomeDisplay(t *testing.T) {
	ok := TranslationOutcome{Language: "fr", Text: "Bonjour", Attempts: 1}
	if ok.Display() != "Bonjour" {
		t.Fatalf("unexpected display %q", ok.Display())
	}

	failed := TranslationOutcome{
		Language: "de",
		Err:      &TranslationError{Language: "de", Attempts: 2, Transient: true, Err: errors.New("The read operation timed out")},
		Attempts: 2,
	}
	if failed.Display() != "Error: The read operation timed out" {
		t.Fatalf("unexpected placeholder %q", failed.Display())
	}
}

func TestDownloadTextRoundTrip(t *testing.T) {
	result := TranslationResult{Outcomes: []TranslationOutcome{
		{Language: "fr", Text: "Bonjour"},
		{Language: "es", Text: "Hola"},
		{Language: "de", Err: errors.New("backend down: retry: later")},
	}}

	body := result.DownloadText()
	want := "fr: Bonjour\nes: Hola\nde: Error: backend down: retry: later"
	if body != want {
		t.Fatalf("unexpected body:\n%s", body)
	}

	lines := ParseDownload(body)
	if len(lines) != len(result.Outcomes) {
		t.Fatalf("expected %d lines, got %d", len(result.Outcomes), len(lines))
	}
	for i, outcome := range result.Outcomes {
		if lines[i].Label != string(outcome.Language) {
			t.Fatalf("line %d label: expected %s got %s", i, outcome.Language, lines[i].Label)
		}
		if lines[i].Text != outcome.Display() {
			t.Fatalf("line %d text: expected %q got %q", i, outcome.Display(), lines[i].Text)
		}
	}
}

func TestResultMapMatchesTargets(t *testing.T) {
	result := TranslationResult{Outcomes: []TranslationOutcome{
		{Language: "fr", Text: "Bonjour"},
		{Language: "de", Err: errors.New("boom")},
	}}
	m := result.Map()
	if len(m) != 2 || m["fr"] != "Bonjour" || m["de"] != "Error: boom" {
		t.Fatalf("unexpected map %v", m)
	}
	if failed := result.Failed(); len(failed) != 1 || failed[0].Language != "de" {
		t.Fatalf("unexpected failed outcomes %v", failed)
	}
}

func TestFeedbackTypeValid(t *testing.T) {
	if !FeedbackType("Feature Request").Valid() {
		t.Fatalf("expected Feature Request to be valid")
	}
	if FeedbackType("Spam").Valid() {
		t.Fatalf("expected Spam to be invalid")
	}
}

func TestDownloadKeepsMultiLineTranslationsOnOneLine(t *testing.T) {
	result := TranslationResult{Outcomes: []TranslationOutcome{
		{Language: "fr", Text: "Bonjour\nle monde"},
		{Language: "es", Text: `Hola\mundo`},
	}}

	body := result.DownloadText()
	want := "fr: Bonjour\\nle monde\nes: Hola\\\\mundo"
	if body != want {
		t.Fatalf("unexpected body %q", body)
	}

	lines := ParseDownload(body)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Label != "fr" || lines[0].Text != "Bonjour\nle monde" {
		t.Fatalf("unexpected fr line %+v", lines[0])
	}
	if lines[1].Label != "es" || lines[1].Text != `Hola\mundo` {
		t.Fatalf("unexpected es line %+v", lines[1])
	}
}

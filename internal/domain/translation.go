package domain

import (
	"errors"
	"strings"
)

const (
	// DownloadFileName is the attachment name used for translated text downloads.
	DownloadFileName = "translated_file.txt"
	// DownloadContentType is the media type of translated text downloads.
	DownloadContentType = "text/plain"

	errorPlaceholderPrefix = "Error: "
	downloadSeparator      = ": "
)

// Download lines escape backslashes and line breaks so each language stays on one line.
var (
	downloadEscaper   = strings.NewReplacer(`\`, `\\`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)
	downloadUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n")
)

// ErrNoTargetLanguages indicates a translation request was built without any target language.
var ErrNoTargetLanguages = errors.New("translation: at least one target language is required")

// TranslationRequest is an immutable unit of work for the fan-out engine.
type TranslationRequest struct {
	sourceText string
	targets    []LanguageCode
}

// NewTranslationRequest removes duplicate targets (first occurrence wins) and rejects an empty target set.
// Empty source text is accepted and forwarded to the backend unchanged.
func NewTranslationRequest(sourceText string, targets []LanguageCode) (TranslationRequest, error) {
	seen := make(map[LanguageCode]struct{}, len(targets))
	unique := make([]LanguageCode, 0, len(targets))
	for _, target := range targets {
		target = LanguageCode(strings.TrimSpace(string(target)))
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		unique = append(unique, target)
	}
	if len(unique) == 0 {
		return TranslationRequest{}, ErrNoTargetLanguages
	}
	return TranslationRequest{sourceText: sourceText, targets: unique}, nil
}

// SourceText returns the text to translate.
func (r TranslationRequest) SourceText() string { return r.sourceText }

// Targets returns a copy of the de-duplicated target list in selection order.
func (r TranslationRequest) Targets() []LanguageCode {
	out := make([]LanguageCode, len(r.targets))
	copy(out, r.targets)
	return out
}

// TranslationError records why a single language could not be translated.
type TranslationError struct {
	Language  LanguageCode
	Attempts  int
	Transient bool
	Err       error
}

// Error returns the backend message so the inline placeholder reads "Error: <backend message>".
func (e *TranslationError) Error() string {
	if e == nil || e.Err == nil {
		return "translation failed"
	}
	return e.Err.Error()
}

// Unwrap exposes the backend error.
func (e *TranslationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TranslationOutcome is the per-language result: either Text or Err is meaningful.
type TranslationOutcome struct {
	Language LanguageCode
	Text     string
	Err      error
	Attempts int
}

// OK reports whether the language translated successfully.
func (o TranslationOutcome) OK() bool { return o.Err == nil }

// Display renders the translated text, or the inline placeholder for a failure.
func (o TranslationOutcome) Display() string {
	if o.Err != nil {
		return errorPlaceholderPrefix + o.Err.Error()
	}
	return o.Text
}

// TranslationResult holds exactly one outcome per requested target, in request order.
type TranslationResult struct {
	Outcomes []TranslationOutcome
}

// Get returns the outcome for the given code.
func (r TranslationResult) Get(code LanguageCode) (TranslationOutcome, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.Language == code {
			return outcome, true
		}
	}
	return TranslationOutcome{}, false
}

// Map returns the code to display-string view consumed by renderers.
func (r TranslationResult) Map() map[LanguageCode]string {
	out := make(map[LanguageCode]string, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		out[outcome.Language] = outcome.Display()
	}
	return out
}

// Failed returns the outcomes that carry an error.
func (r TranslationResult) Failed() []TranslationOutcome {
	var failed []TranslationOutcome
	for _, outcome := range r.Outcomes {
		if !outcome.OK() {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// DownloadText renders the result as "code: text" lines joined by newlines, in request order.
// Line breaks inside a translation are written as `\n`.
func (r TranslationResult) DownloadText() string {
	lines := make([]string, 0, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		lines = append(lines, string(outcome.Language)+downloadSeparator+downloadEscaper.Replace(outcome.Display()))
	}
	return strings.Join(lines, "\n")
}

// DownloadLine is one parsed line of a translated text download.
type DownloadLine struct {
	Label string
	Text  string
}

// ParseDownload splits a download body back into label/text pairs on the first ": " of each line.
func ParseDownload(body string) []DownloadLine {
	if body == "" {
		return nil
	}
	rawLines := strings.Split(body, "\n")
	lines := make([]DownloadLine, 0, len(rawLines))
	for _, raw := range rawLines {
		label, text, _ := strings.Cut(raw, downloadSeparator)
		lines = append(lines, DownloadLine{Label: label, Text: downloadUnescaper.Replace(text)})
	}
	return lines
}

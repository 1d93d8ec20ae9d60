package handlers

import (
	"net/http"
	"strings"

	"github.com/linguadesk/translator/internal/content"
	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/extract"
	"github.com/linguadesk/translator/internal/languages"
	"github.com/linguadesk/translator/internal/platform/session"
	"github.com/linguadesk/translator/internal/services"
)

const (
	modeLogin  = "login"
	modeSignup = "signup"
)

type notice struct {
	Kind string
	Text string
}

type languageOption struct {
	Code     string
	Name     string
	Selected bool
}

type resultItem struct {
	Code       string
	Name       string
	Text       string
	Failed     bool
	AudioURL   string
	AudioError string
}

type resultsView struct {
	Notice      *notice
	Source      string
	Unsupported bool
	Items       []resultItem
	DownloadURL string
}

type previewView struct {
	Notice   *notice
	FileName string
	Kind     string
	Text     string
}

type authView struct {
	Mode  string
	Email string
	Error string
}

type pageData struct {
	Title         string
	Theme         string
	CSRFToken     string
	Flashes       []session.Flash
	User          *domain.Principal
	Auth          authView
	Languages     []languageOption
	FeedbackTypes []string
	Extensions    string
	Text          string
	Results       *resultsView
	Preview       *previewView
	Feedback      *notice
	Help          *content.Page
}

func (h *uiHandlers) newPageData(r *http.Request, title string) pageData {
	data := pageData{
		Title:      title,
		Theme:      "light",
		Extensions: "." + strings.Join(extract.AllowedExtensions, ",."),
	}
	for _, t := range domain.FeedbackTypes {
		data.FeedbackTypes = append(data.FeedbackTypes, string(t))
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		data.Theme = sess.Theme()
		data.CSRFToken = sess.EnsureCSRFToken()
		data.Flashes = sess.PopFlashes()
		if sess.Authenticated() {
			principal := sess.Principal()
			data.User = &principal
		}
	}
	data.Languages = h.languageOptions(nil)
	return data
}

func (h *uiHandlers) languageOptions(selected []string) []languageOption {
	chosen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		chosen[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	langs := h.translations.Languages()
	out := make([]languageOption, 0, len(langs))
	for _, lang := range langs {
		_, byName := chosen[strings.ToLower(lang.Name)]
		_, byCode := chosen[strings.ToLower(lang.Code.String())]
		out = append(out, languageOption{
			Code:     lang.Code.String(),
			Name:     languages.Title(lang.Name),
			Selected: byName || byCode,
		})
	}
	return out
}

func buildResults(batch services.TranslationBatch) *resultsView {
	view := &resultsView{Source: batch.SourceText, Unsupported: batch.Unsupported}
	if batch.Unsupported {
		view.Notice = &notice{Kind: session.FlashWarning, Text: extract.UnsupportedText}
		return view
	}
	for _, item := range batch.Items {
		result := resultItem{
			Code:   item.Language.Code.String(),
			Name:   languages.Title(item.Language.Name),
			Text:   item.Outcome.Display(),
			Failed: !item.Outcome.OK(),
		}
		switch {
		case item.Audio.OK():
			result.AudioURL = artifactURL(item.Audio.Artifact.ID)
		case item.Audio.Err != nil:
			result.AudioError = "Audio is not available for this translation."
		}
		view.Items = append(view.Items, result)
	}
	if batch.Download != nil {
		view.DownloadURL = artifactURL(batch.Download.ID)
	}
	if failed := batch.Failed(); failed > 0 && failed < len(batch.Items) {
		view.Notice = &notice{Kind: session.FlashWarning, Text: "Some languages could not be translated."}
	} else if failed > 0 {
		view.Notice = &notice{Kind: session.FlashError, Text: "Translation failed. Please try again."}
	}
	return view
}

func artifactURL(id string) string {
	return "/artifacts/" + id
}

package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/languages"
	"github.com/linguadesk/translator/internal/platform/httpx"
	"github.com/linguadesk/translator/internal/platform/requestctx"
	"github.com/linguadesk/translator/internal/services"
)

const maxTranslationRequestBytes = 1 << 20

type apiHandlers struct {
	translations services.TranslationService
}

type languagePayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type languagesResponse struct {
	Languages []languagePayload `json:"languages"`
}

type translationRequestPayload struct {
	Text      string   `json:"text"`
	Languages []string `json:"languages"`
}

type translationPayload struct {
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
	Audio    string `json:"audio,omitempty"`
}

type translationsResponse struct {
	Languages    []string                      `json:"languages"`
	Translations map[string]translationPayload `json:"translations"`
	Download     string                        `json:"download,omitempty"`
}

func (h *apiHandlers) listLanguages(w http.ResponseWriter, r *http.Request) {
	langs := h.translations.Languages()
	resp := languagesResponse{Languages: make([]languagePayload, 0, len(langs))}
	for _, lang := range langs {
		resp.Languages = append(resp.Languages, languagePayload{Code: lang.Code.String(), Name: languages.Title(lang.Name)})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *apiHandlers) createTranslation(w http.ResponseWriter, r *http.Request) {
	var req translationRequestPayload
	if err := httpx.DecodeJSON(r, maxTranslationRequestBytes, &req); err != nil {
		var apiErr httpx.Error
		if !errors.As(err, &apiErr) {
			apiErr = httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest)
		}
		httpx.WriteError(r.Context(), w, apiErr)
		return
	}
	principal, _ := requestctx.Principal(r.Context())
	batch, err := h.translations.TranslateText(r.Context(), principal, services.TextInput{Text: req.Text, Languages: req.Languages})
	switch {
	case errors.Is(err, services.ErrNothingToTranslate):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "text and at least one language are required", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	case err != nil:
		requestctx.Logger(r.Context()).Error("api translation failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "translation failed", http.StatusInternalServerError))
		return
	}

	resp := translationsResponse{
		Languages:    make([]string, 0, len(batch.Items)),
		Translations: make(map[string]translationPayload, len(batch.Items)),
	}
	for _, item := range batch.Items {
		code := item.Language.Code.String()
		payload := translationPayload{Attempts: item.Outcome.Attempts}
		if item.Outcome.OK() {
			payload.Text = item.Outcome.Text
		} else {
			payload.Error = item.Outcome.Display()
		}
		if item.Audio.OK() {
			payload.Audio = apiArtifactURL(item.Audio.Artifact.ID)
		}
		resp.Languages = append(resp.Languages, code)
		resp.Translations[code] = payload
	}
	if batch.Download != nil {
		resp.Download = apiArtifactURL(batch.Download.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func apiArtifactURL(id string) string {
	return "/api/v1/artifacts/" + id
}

// requirePrincipal rejects API calls without a verified bearer token.
func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := requestctx.Principal(r.Context()); ok && !principal.IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	})
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/content"
	"github.com/linguadesk/translator/internal/extract"
	"github.com/linguadesk/translator/internal/platform/auth"
	"github.com/linguadesk/translator/internal/platform/requestctx"
	"github.com/linguadesk/translator/internal/platform/session"
	"github.com/linguadesk/translator/internal/services"
)

const (
	uploadTooLargeMessage   = "The uploaded file is too large."
	nothingToTranslate      = "Please enter text and select at least one language to translate."
	unsupportedExtension    = "Please upload a TXT, PDF, DOCX, PNG or JPG file."
	missingUpload           = "Please choose a file to upload."
	extractionFailedMessage = "We could not read the uploaded file. Please check it and try again."
	translateFailedMessage  = "Translation failed. Please try again."
	signupSuccessMessage    = "Account created successfully! Please log in."
	loginSuccessMessage     = "Logged in successfully!"
	logoutMessage           = "You have been logged out."
	feedbackThanksMessage   = "Thank you for your feedback! We appreciate your input."
	feedbackFailedMessage   = "We could not save your feedback. Please try again later."
	uploadFormField         = "file"
)

// AuthGateway is the account surface used by the login and signup forms.
type AuthGateway interface {
	CreateAccount(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	SignOut(ctx context.Context, identity *auth.Identity) error
}

type uiHandlers struct {
	auth         AuthGateway
	translations services.TranslationService
	feedback     services.FeedbackService
	help         *content.Library
	render       *renderer
	maxUpload    int64
}

func (h *uiHandlers) index(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok || !sess.Authenticated() {
		h.renderAuth(w, r, http.StatusOK, authView{Mode: authMode(r.URL.Query().Get("mode"))})
		return
	}
	h.render.page(w, r, http.StatusOK, "home", h.newPageData(r, "Translate"))
}

func (h *uiHandlers) renderAuth(w http.ResponseWriter, r *http.Request, status int, view authView) {
	data := h.newPageData(r, "Sign in")
	if r.URL.Query().Get("status") == "logged_out" && view.Error == "" {
		data.Flashes = append(data.Flashes, session.Flash{Kind: session.FlashInfo, Message: logoutMessage})
	}
	data.Auth = view
	h.render.page(w, r, status, "auth", data)
}

func (h *uiHandlers) login(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	identity, err := h.auth.SignIn(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		requestctx.Logger(r.Context()).Info("login failed", zap.Error(err))
		h.renderAuth(w, r, http.StatusUnauthorized, authView{Mode: modeLogin, Email: email, Error: auth.UserMessage(err)})
		return
	}
	sess.SignIn(identity.Principal())
	sess.AddFlash(session.FlashSuccess, loginSuccessMessage)
	requestctx.Logger(r.Context()).Info("user signed in", zap.String("uid", identity.UID))
	redirect(w, r, "/")
}

func (h *uiHandlers) signup(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	if err := h.auth.CreateAccount(r.Context(), email, r.PostFormValue("password")); err != nil {
		requestctx.Logger(r.Context()).Info("signup failed", zap.Error(err))
		h.renderAuth(w, r, http.StatusBadRequest, authView{Mode: modeSignup, Email: email, Error: auth.UserMessage(err)})
		return
	}
	sess.AddFlash(session.FlashSuccess, signupSuccessMessage)
	redirect(w, r, "/?mode=login")
}

func (h *uiHandlers) logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		redirect(w, r, "/")
		return
	}
	if sess.Authenticated() {
		principal := sess.Principal()
		if err := h.auth.SignOut(r.Context(), &auth.Identity{UID: principal.UID, Email: principal.Email}); err != nil {
			requestctx.Logger(r.Context()).Warn("sign out failed", zap.Error(err))
		}
	}
	sess.Destroy()
	redirect(w, r, "/?status=logged_out")
}

func (h *uiHandlers) setTheme(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		sess.SetTheme(r.PostFormValue("theme"))
	}
	redirect(w, r, "/")
}

func (h *uiHandlers) translateText(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.Principal(r.Context())
	text := r.PostFormValue("text")
	selected := r.PostForm["languages"]
	batch, err := h.translations.TranslateText(r.Context(), principal, services.TextInput{Text: text, Languages: selected})
	if err != nil {
		h.translateError(w, r, err, text, selected)
		return
	}
	h.showResults(w, r, http.StatusOK, buildResults(batch), text, selected)
}

func (h *uiHandlers) translateFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.Principal(r.Context())
	selected := r.PostForm["languages"]
	upload, status, message := h.readUpload(r)
	if message != "" {
		h.showResults(w, r, status, &resultsView{Notice: &notice{Kind: session.FlashWarning, Text: message}}, "", selected)
		return
	}
	batch, err := h.translations.TranslateDocument(r.Context(), principal, services.DocumentInput{Upload: upload, Languages: selected})
	if err != nil {
		h.translateError(w, r, err, "", selected)
		return
	}
	h.showResults(w, r, http.StatusOK, buildResults(batch), "", selected)
}

func (h *uiHandlers) translateError(w http.ResponseWriter, r *http.Request, err error, text string, selected []string) {
	view := &resultsView{}
	status := http.StatusOK
	switch {
	case errors.Is(err, services.ErrNothingToTranslate):
		view.Notice = &notice{Kind: session.FlashWarning, Text: nothingToTranslate}
	case errors.Is(err, extract.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
		view.Notice = &notice{Kind: session.FlashError, Text: uploadTooLargeMessage}
	case errors.Is(err, services.ErrExtractionFailed):
		requestctx.Logger(r.Context()).Warn("extraction failed", zap.Error(err))
		status = http.StatusUnprocessableEntity
		view.Notice = &notice{Kind: session.FlashError, Text: extractionFailedMessage}
	case errors.Is(err, context.Canceled):
		return
	default:
		requestctx.Logger(r.Context()).Error("translation failed", zap.Error(err))
		status = http.StatusInternalServerError
		view.Notice = &notice{Kind: session.FlashError, Text: translateFailedMessage}
	}
	h.showResults(w, r, status, view, text, selected)
}

func (h *uiHandlers) showResults(w http.ResponseWriter, r *http.Request, status int, view *resultsView, text string, selected []string) {
	if IsHTMXRequest(r.Context()) {
		h.render.fragment(w, r, status, "results", view)
		return
	}
	data := h.newPageData(r, "Translate")
	data.Text = text
	data.Languages = h.languageOptions(selected)
	data.Results = view
	h.render.page(w, r, status, "home", data)
}

func (h *uiHandlers) extractPreview(w http.ResponseWriter, r *http.Request) {
	view := &previewView{}
	status := http.StatusOK
	upload, uploadStatus, message := h.readUpload(r)
	if message != "" {
		status = uploadStatus
		view.Notice = &notice{Kind: session.FlashWarning, Text: message}
	} else {
		view.FileName = upload.Name
		result, err := h.translations.ExtractText(r.Context(), upload)
		switch {
		case errors.Is(err, extract.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
			view.Notice = &notice{Kind: session.FlashError, Text: uploadTooLargeMessage}
		case err != nil:
			requestctx.Logger(r.Context()).Warn("preview extraction failed", zap.Error(err))
			status = http.StatusUnprocessableEntity
			view.Notice = &notice{Kind: session.FlashError, Text: extractionFailedMessage}
		case !result.Supported:
			view.Notice = &notice{Kind: session.FlashWarning, Text: extract.UnsupportedText}
		default:
			view.Kind = string(result.Kind)
			view.Text = result.Text
		}
	}
	if IsHTMXRequest(r.Context()) {
		h.render.fragment(w, r, status, "preview", view)
		return
	}
	data := h.newPageData(r, "Translate")
	data.Preview = view
	h.render.page(w, r, status, "home", data)
}

// readUpload returns the posted file, or a status and user message when it cannot be used.
func (h *uiHandlers) readUpload(r *http.Request) (extract.Upload, int, string) {
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		return extract.Upload{}, http.StatusBadRequest, missingUpload
	}
	defer file.Close()
	if !extract.AllowedExtension(header.Filename) {
		return extract.Upload{}, http.StatusUnsupportedMediaType, unsupportedExtension
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		return extract.Upload{}, http.StatusRequestEntityTooLarge, uploadTooLargeMessage
	}
	reader := io.Reader(file)
	if h.maxUpload > 0 {
		reader = io.LimitReader(file, h.maxUpload+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return extract.Upload{}, http.StatusBadRequest, missingUpload
	}
	if h.maxUpload > 0 && int64(len(data)) > h.maxUpload {
		return extract.Upload{}, http.StatusRequestEntityTooLarge, uploadTooLargeMessage
	}
	return extract.Upload{
		Name:      filepath.Base(header.Filename),
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}, http.StatusOK, ""
}

func (h *uiHandlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.Principal(r.Context())
	in := services.FeedbackInput{Type: r.PostFormValue("type"), Message: r.PostFormValue("message")}
	status := http.StatusOK
	result := &notice{Kind: session.FlashSuccess, Text: feedbackThanksMessage}
	if _, err := h.feedback.Submit(r.Context(), principal, in); err != nil {
		status, result = feedbackError(err)
		if status >= http.StatusInternalServerError {
			requestctx.Logger(r.Context()).Error("feedback submit failed", zap.Error(err))
		}
	}
	if IsHTMXRequest(r.Context()) {
		h.render.fragment(w, r, status, "feedback_status", result)
		return
	}
	data := h.newPageData(r, "Translate")
	data.Feedback = result
	h.render.page(w, r, status, "home", data)
}

func feedbackError(err error) (int, *notice) {
	switch {
	case errors.Is(err, services.ErrEmptyFeedback):
		return http.StatusBadRequest, &notice{Kind: session.FlashWarning, Text: "Please enter your feedback before submitting."}
	case errors.Is(err, services.ErrInvalidFeedbackType):
		return http.StatusBadRequest, &notice{Kind: session.FlashWarning, Text: "Please choose a feedback type."}
	case errors.Is(err, services.ErrFeedbackTooLong):
		return http.StatusBadRequest, &notice{Kind: session.FlashWarning, Text: "Your feedback is too long. Please shorten it."}
	default:
		return http.StatusInternalServerError, &notice{Kind: session.FlashError, Text: feedbackFailedMessage}
	}
}

func (h *uiHandlers) artifact(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.Principal(r.Context())
	id := chi.URLParam(r, "artifactID")
	meta, body, err := h.translations.OpenArtifact(r.Context(), principal, id)
	switch {
	case errors.Is(err, artifacts.ErrNotFound), errors.Is(err, artifacts.ErrExpired):
		http.Error(w, "This file is no longer available.", http.StatusNotFound)
		return
	case errors.Is(err, artifacts.ErrPermissionDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	case err != nil:
		requestctx.Logger(r.Context()).Error("open artifact failed", zap.String("artifactId", id), zap.Error(err))
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	disposition := "attachment"
	if strings.HasPrefix(meta.ContentType, "audio/") {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": meta.Name}))
	w.Header().Set("Cache-Control", "private, no-store")
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		requestctx.Logger(r.Context()).Warn("artifact stream interrupted", zap.String("artifactId", id), zap.Error(err))
	}
}

func (h *uiHandlers) helpPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.help.Page("help")
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.render.fail(w, r, fmt.Errorf("load help page: %w", err))
		return
	}
	data := h.newPageData(r, page.Title)
	data.Help = &page
	h.render.page(w, r, http.StatusOK, "help", data)
}

// requireAuth sends anonymous callers back to the sign-in page.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := requestctx.Principal(r.Context()); ok && !principal.IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/artifacts/") {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if sess, ok := session.FromContext(r.Context()); ok {
			sess.AddFlash(session.FlashInfo, "Please log in to continue.")
		}
		redirect(w, r, "/")
	})
}

func authMode(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), modeSignup) {
		return modeSignup
	}
	return modeLogin
}

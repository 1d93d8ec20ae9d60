package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/languages"
	"github.com/linguadesk/translator/internal/platform/requestctx"
)

//go:embed templates
var templateFS embed.FS

const (
	layoutGlob  = "templates/*.tmpl"
	pagesDir    = "templates/pages"
	layoutEntry = "base"
)

// renderer holds one template set per page; every set shares the layout and partials.
type renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"title": languages.Title,
		"year":  func() int { return time.Now().Year() },
		"join":  strings.Join,
	}
	shared, err := template.New("_root").Funcs(funcs).ParseFS(templateFS, layoutGlob)
	if err != nil {
		return nil, fmt.Errorf("handlers: parse layout: %w", err)
	}
	entries, err := fs.ReadDir(templateFS, pagesDir)
	if err != nil {
		return nil, fmt.Errorf("handlers: list pages: %w", err)
	}
	pages := make(map[string]*template.Template, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		clone, err := shared.Clone()
		if err != nil {
			return nil, err
		}
		page, err := clone.ParseFS(templateFS, path.Join(pagesDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("handlers: parse page %s: %w", entry.Name(), err)
		}
		pages[strings.TrimSuffix(entry.Name(), ".tmpl")] = page
	}
	return &renderer{pages: pages, fragments: shared}, nil
}

// page renders a full document through the base layout.
func (t *renderer) page(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := t.pages[name]
	if !ok {
		t.fail(w, r, fmt.Errorf("unknown page %q", name))
		return
	}
	t.execute(w, r, status, tmpl, layoutEntry, data)
}

// fragment renders a named partial for htmx swaps. htmx only swaps 2xx responses, so
// error statuses are reported in the HX-Trigger header instead.
func (t *renderer) fragment(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if status >= http.StatusBadRequest {
		w.Header().Set("HX-Trigger", fmt.Sprintf(`{"lingua:error":{"status":%d}}`, status))
		status = http.StatusOK
	}
	t.execute(w, r, status, t.fragments, name, data)
}

func (t *renderer) execute(w http.ResponseWriter, r *http.Request, status int, tmpl *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		t.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *renderer) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestctx.Logger(r.Context()).Error("template render failed", zap.Error(err))
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

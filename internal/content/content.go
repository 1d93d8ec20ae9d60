package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

//go:embed pages/*.md
var embeddedPages embed.FS

// ErrNotFound is returned for an unknown page slug.
var ErrNotFound = errors.New("content: page not found")

// Page is a static markdown page rendered to sanitised HTML.
type Page struct {
	Slug      string
	Title     string
	Summary   string
	UpdatedAt time.Time
	Body      template.HTML
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	UpdatedAt string `yaml:"updated_at"`
}

// Library loads pages from a filesystem and caches rendered results.
type Library struct {
	fsys     fs.FS
	markdown goldmark.Markdown
	policy   *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]Page
}

// NewLibrary reads pages from fsys. A nil fsys uses the embedded pages.
func NewLibrary(fsys fs.FS) *Library {
	if fsys == nil {
		sub, err := fs.Sub(embeddedPages, "pages")
		if err != nil {
			panic(fmt.Sprintf("content: embedded pages: %v", err))
		}
		fsys = sub
	}
	return &Library{
		fsys:     fsys,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
		cache:    map[string]Page{},
	}
}

// Page returns the rendered page for slug.
func (l *Library) Page(slug string) (Page, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Page{}, ErrNotFound
	}
	l.mu.RLock()
	page, ok := l.cache[slug]
	l.mu.RUnlock()
	if ok {
		return page, nil
	}

	page, err := l.load(slug)
	if err != nil {
		return Page{}, err
	}
	l.mu.Lock()
	l.cache[slug] = page
	l.mu.Unlock()
	return page, nil
}

func (l *Library) load(slug string) (Page, error) {
	data, err := fs.ReadFile(l.fsys, slug+".md")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("content: read %s: %w", slug, err)
	}
	fm, body := splitFrontMatter(string(data))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("content: parse front matter %s: %w", slug, err)
		}
	}

	var rendered bytes.Buffer
	if err := l.markdown.Convert([]byte(body), &rendered); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", slug, err)
	}

	page := Page{
		Slug:      slug,
		Title:     strings.TrimSpace(front.Title),
		Summary:   strings.TrimSpace(front.Summary),
		UpdatedAt: parseDate(front.UpdatedAt),
		Body:      template.HTML(l.policy.SanitizeBytes(rendered.Bytes())),
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	return page, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sanitizeSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	slug = path.Base(path.Clean("/" + slug))
	if slug == "/" || slug == "." {
		return ""
	}
	for _, r := range slug {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return ""
		}
	}
	return slug
}

func prettifySlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

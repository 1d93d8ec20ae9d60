package languages

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/linguadesk/translator/internal/domain"
)

//go:embed languages.yaml
var embeddedCatalog []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// ErrEmptyCatalog indicates a catalog document without entries.
var ErrEmptyCatalog = errors.New("languages: catalog is empty")

type catalogDocument struct {
	Languages []catalogEntry `yaml:"languages"`
}

type catalogEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Catalog is the ordered, read-only set of supported translation targets.
type Catalog struct {
	ordered []domain.Language
	byCode  map[domain.LanguageCode]domain.Language
	byName  map[string]domain.Language
}

// Default returns the catalog embedded in the binary. It panics when the embedded document is invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embeddedCatalog)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("languages: embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// Parse builds a catalog from a YAML document. Codes must be unique; a repeated name resolves to its first code.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("languages: parse catalog: %w", err)
	}
	languages := make([]domain.Language, 0, len(doc.Languages))
	for _, entry := range doc.Languages {
		languages = append(languages, domain.Language{
			Code: domain.LanguageCode(strings.TrimSpace(entry.Code)),
			Name: strings.TrimSpace(entry.Name),
		})
	}
	return New(languages)
}

// New builds a catalog from an ordered list of languages.
func New(languages []domain.Language) (*Catalog, error) {
	if len(languages) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		ordered: make([]domain.Language, 0, len(languages)),
		byCode:  make(map[domain.LanguageCode]domain.Language, len(languages)),
		byName:  make(map[string]domain.Language, len(languages)),
	}
	for i, lang := range languages {
		if lang.Code == "" || lang.Name == "" {
			return nil, fmt.Errorf("languages: entry %d requires code and name", i)
		}
		if _, exists := c.byCode[lang.Code]; exists {
			return nil, fmt.Errorf("languages: duplicate code %q", lang.Code)
		}
		c.ordered = append(c.ordered, lang)
		c.byCode[lang.Code] = lang
		key := normalize(lang.Name)
		if _, exists := c.byName[key]; !exists {
			c.byName[key] = lang
		}
	}
	return c, nil
}

// All returns the languages in display order.
func (c *Catalog) All() []domain.Language {
	out := make([]domain.Language, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.ordered) }

// Lookup returns the language registered under code.
func (c *Catalog) Lookup(code domain.LanguageCode) (domain.Language, bool) {
	lang, ok := c.byCode[domain.LanguageCode(strings.ToLower(strings.TrimSpace(string(code))))]
	return lang, ok
}

// ByName returns the language whose display name matches, ignoring case.
func (c *Catalog) ByName(name string) (domain.Language, bool) {
	lang, ok := c.byName[normalize(name)]
	return lang, ok
}

// Resolve accepts either a display name or a code.
func (c *Catalog) Resolve(descriptor string) (domain.Language, bool) {
	if lang, ok := c.ByName(descriptor); ok {
		return lang, true
	}
	return c.Lookup(domain.LanguageCode(descriptor))
}

// DisplayName returns the title-cased name for code, or the code itself when unknown.
func (c *Catalog) DisplayName(code domain.LanguageCode) string {
	lang, ok := c.Lookup(code)
	if !ok {
		return string(code)
	}
	return Title(lang.Name)
}

// Title upper-cases the first letter of each word ("chinese (simplified)" becomes "Chinese (Simplified)").
func Title(name string) string {
	return cases.Title(language.Und).String(name)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

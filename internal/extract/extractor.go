package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// UnsupportedText is returned as the extracted text for media types the extractor cannot read.
const UnsupportedText = "Unsupported file type"

// Kind identifies which parser produced a result.
type Kind string

const (
	KindText        Kind = "text"
	KindPDF         Kind = "pdf"
	KindDOCX        Kind = "docx"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

const (
	mediaTypeOctetStream = "application/octet-stream"
	mediaTypeWordML      = "wordprocessingml"
)

var (
	// ErrInvalidEncoding indicates a text upload that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("extract: text is not valid UTF-8")
	// ErrTooLarge indicates the upload exceeds the configured size limit.
	ErrTooLarge = errors.New("extract: upload exceeds size limit")
	// ErrOCRUnavailable indicates an image upload with no OCR engine configured.
	ErrOCRUnavailable = errors.New("extract: image recognition is not configured")
)

// AllowedExtensions lists the file extensions accepted by the upload surface.
var AllowedExtensions = []string{"txt", "pdf", "docx", "png", "jpg", "jpeg"}

// Upload is a file received from the user.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Result is the outcome of extraction. Supported is false when the media type is unknown,
// in which case Text holds UnsupportedText.
type Result struct {
	Text      string
	Kind      Kind
	MediaType string
	Supported bool
}

// OCR recognises text in an image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// PageReader returns the text of each page of a PDF document in order.
type PageReader func(data []byte) ([]string, error)

// Extractor converts uploads into plain text.
type Extractor struct {
	logger      *zap.Logger
	ocr         OCR
	pages       PageReader
	maxBytes    int64
	maxExpanded int64
}

// Option customises the extractor.
type Option func(*Extractor)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithOCR configures the image recognition engine.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) {
		e.ocr = ocr
	}
}

// WithPageReader replaces the PDF page reader.
func WithPageReader(reader PageReader) Option {
	return func(e *Extractor) {
		if reader != nil {
			e.pages = reader
		}
	}
}

// WithMaxBytes rejects uploads larger than n bytes. Zero disables the check.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		e.maxBytes = n
	}
}

// WithMaxExpandedBytes caps the decompressed size of archive parts such as the DOCX body.
// Non-positive values keep the default.
func WithMaxExpandedBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxExpanded = n
		}
	}
}

// New constructs an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:      zap.NewNop(),
		pages:       ReadPDFPages,
		maxExpanded: defaultMaxExpandedBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract dispatches on the declared media type. When the declared type is empty or generic the
// type is sniffed from the content. Unknown types yield UnsupportedText without an error; parser
// failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, upload Upload) (Result, error) {
	if e.maxBytes > 0 && int64(len(upload.Data)) > e.maxBytes {
		return Result{}, ErrTooLarge
	}
	mediaType := resolveMediaType(upload)
	kind := classify(mediaType)
	logger := e.logger.With(
		zap.String("file_name", upload.Name),
		zap.String("media_type", mediaType),
		zap.String("kind", string(kind)),
	)

	var (
		text string
		err  error
	)
	switch kind {
	case KindText:
		text, err = decodeText(upload.Data)
	case KindPDF:
		text, err = e.extractPDF(upload.Data)
	case KindDOCX:
		text, err = extractDOCX(upload.Data, e.maxExpanded)
	case KindImage:
		text, err = e.extractImage(ctx, upload.Data)
	default:
		logger.Info("unsupported upload type")
		return Result{Text: UnsupportedText, Kind: KindUnsupported, MediaType: mediaType, Supported: false}, nil
	}
	if err != nil {
		logger.Warn("text extraction failed", zap.Error(err))
		return Result{}, err
	}
	logger.Debug("text extracted", zap.Int("chars", utf8.RuneCountInString(text)))
	return Result{Text: text, Kind: kind, MediaType: mediaType, Supported: true}, nil
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	pages, err := e.pages(data)
	if err != nil {
		return "", fmt.Errorf("extract: read pdf: %w", err)
	}
	return joinNonEmpty(pages), nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	if e.ocr == nil {
		return "", ErrOCRUnavailable
	}
	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract: recognise image: %w", err)
	}
	return text, nil
}

// AllowedExtension reports whether the file name carries an accepted extension.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func resolveMediaType(upload Upload) string {
	declared := strings.ToLower(strings.TrimSpace(upload.MediaType))
	if declared != "" && declared != mediaTypeOctetStream {
		return declared
	}
	if len(upload.Data) == 0 {
		return declared
	}
	return mimetype.Detect(upload.Data).String()
}

func classify(mediaType string) Kind {
	switch {
	case strings.Contains(mediaType, "text"):
		return KindText
	case strings.Contains(mediaType, "pdf"):
		return KindPDF
	case strings.Contains(mediaType, "docx"), strings.Contains(mediaType, mediaTypeWordML):
		return KindDOCX
	case strings.Contains(mediaType, "image"):
		return KindImage
	default:
		return KindUnsupported
	}
}

func decodeText(data []byte) (string, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(text) {
		return "", ErrInvalidEncoding
	}
	return text, nil
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "\n")
}

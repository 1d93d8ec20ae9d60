package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart            = "word/document.xml"
	wordMLNamespace         = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	defaultMaxExpandedBytes = 50 << 20
)

// ErrMissingDocumentBody indicates a DOCX archive without word/document.xml.
var ErrMissingDocumentBody = errors.New("extract: docx has no document body")

func extractDOCX(data []byte, limit int64) (string, error) {
	if limit <= 0 {
		limit = defaultMaxExpandedBytes
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open docx: %w", err)
	}
	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", ErrMissingDocumentBody
	}
	if body.UncompressedSize64 > uint64(limit) {
		return "", ErrTooLarge
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("extract: open docx body: %w", err)
	}
	defer rc.Close()

	capped := &cappedReader{r: rc, remaining: limit}
	paragraphs, err := readParagraphs(capped)
	if capped.exceeded {
		return "", ErrTooLarge
	}
	if err != nil {
		return "", fmt.Errorf("extract: parse docx body: %w", err)
	}
	return joinNonEmpty(paragraphs), nil
}

// readParagraphs walks the WordprocessingML token stream collecting the text runs of each w:p.
func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inPara     int
		inText     bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if !isWordML(el.Name) {
				continue
			}
			switch el.Name.Local {
			case "p":
				if inPara == 0 {
					current.Reset()
				}
				inPara++
			case "t":
				inText = true
			case "tab":
				if inPara > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWordML(el.Name) {
				continue
			}
			switch el.Name.Local {
			case "p":
				if inPara > 0 {
					inPara--
					if inPara == 0 {
						paragraphs = append(paragraphs, current.String())
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara > 0 {
				current.Write(el)
			}
		}
	}
	return paragraphs, nil
}

// cappedReader fails with ErrTooLarge once more than remaining bytes have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		c.exceeded = true
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		c.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}

func isWordML(name xml.Name) bool {
	return name.Space == "" || name.Space == wordMLNamespace
}

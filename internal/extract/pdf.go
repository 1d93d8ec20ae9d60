package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ReadPDFPages returns the plain text of every page, in page order. Pages without a content
// dictionary produce an empty entry.
func ReadPDFPages(data []byte) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

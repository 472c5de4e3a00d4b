package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText pulls the plain text out of a PDF held in memory and reports
// the page count. Scanned documents with no text layer come back empty
// rather than failing.
func PDFText(r io.ReaderAt, size int64) (string, int, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, body); err != nil {
		return "", pages, fmt.Errorf("read pdf text: %w", err)
	}

	return sb.String(), pages, nil
}

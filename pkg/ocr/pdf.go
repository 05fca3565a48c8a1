package ocr

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// countPDFPages returns the page count of a PDF, or 1 when the bytes cannot
// be parsed (the sync OCR path then gets a chance to reject them).
func countPDFPages(pdfBytes []byte) (pages int) {
	pages = 1
	// The parser panics on some malformed files.
	defer func() { _ = recover() }()

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return pages
	}
	if n := reader.NumPage(); n > 0 {
		pages = n
	}
	return pages
}

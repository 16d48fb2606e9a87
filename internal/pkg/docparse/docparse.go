package docparse

import (
	"bytes"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Parse extracts plain text from an uploaded file. Plain text and markdown
// pass through untouched; PDFs go through text extraction.
func Parse(raw []byte, filename, contentType string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))

	switch {
	case ext == ".pdf" || contentType == "application/pdf":
		return extractPDF(raw)
	case ext == ".txt" || ext == ".md" || ext == ".markdown" ||
		strings.HasPrefix(contentType, "text/"):
		return string(raw), nil
	case contentType == "" && ext == "":
		// No hint at all, assume plain text.
		return string(raw), nil
	}
	return "", ErrUnsupportedFormat
}

// extractPDF returns the concatenated plain text of the PDF, or empty string
// with nil error when the PDF has no extractable text.
func extractPDF(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	readerAt := bytes.NewReader(raw)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(raw)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

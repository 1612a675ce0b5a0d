package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"podforge/internal/services"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

func (e *Extractor) fromFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrExtraction, "extract", "file", "file path is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "file", "stat upload", err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrExtraction, "extract", "file", "upload is not a regular file", nil)
	}
	if info.Size() > e.maxBytes {
		return "", services.Wrap(services.ErrExtraction, "extract", "file",
			fmt.Sprintf("file exceeds %d MB limit", e.maxBytes>>20), nil)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "file", "detect type", err)
	}
	switch {
	case mtype.Is(mimePDF):
		return readPDF(path)
	case mtype.Is(mimeDOCX):
		return readDOCX(path, info.Size())
	case isText(mtype):
		return readText(path)
	default:
		return "", services.Wrap(services.ErrExtraction, "extract", "file",
			fmt.Sprintf("unsupported file type %s; use PDF, DOCX or plain text", mtype.String()), nil)
	}
}

// isText walks the detected type's ancestry; mimetype reports HTML, CSV and
// friends as children of text/plain.
func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}

func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "pdf", "open pdf", err)
	}
	defer f.Close()
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "pdf", "read pdf text", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "pdf", "read pdf text", err)
	}
	return buf.String(), nil
}

func readDOCX(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "docx", "open docx", err)
	}
	defer f.Close()
	doc, err := docx.Parse(f, size)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "docx", "parse docx", err)
	}
	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			if text := strings.TrimSpace(fmt.Sprint(item)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "text", "read file", err)
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return StripMarkup(string(data)), nil
}

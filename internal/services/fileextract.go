package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// ExtractedDocument is the raw output of a PDF extraction.
type ExtractedDocument struct {
	Text      string
	PageCount int
	CharCount int
}

type FileExtractService struct{}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{}
}

// ExtractPDF returns the text of every page of data, each page preceded by
// a "--- Page N ---" marker. Pages without text are skipped. A payload that
// is not a readable PDF yields a *DocumentParseError. Extraction stops
// between pages once ctx is done.
func (s *FileExtractService) ExtractPDF(ctx context.Context, data []byte) (doc ExtractedDocument, err error) {
	// The parser panics on some malformed inputs instead of returning errors.
	defer func() {
		if r := recover(); r != nil {
			doc = ExtractedDocument{}
			err = &DocumentParseError{Cause: fmt.Errorf("%v", r)}
		}
	}()

	if len(data) == 0 {
		return ExtractedDocument{}, &DocumentParseError{Cause: errors.New("empty payload")}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedDocument{}, &DocumentParseError{Cause: err}
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return ExtractedDocument{}, err
		}
		content := pageText(reader, pageIndex)
		if content == "" {
			continue
		}
		b.WriteString(PageMarker(pageIndex))
		b.WriteString(content)
	}

	text := b.String()
	return ExtractedDocument{
		Text:      text,
		PageCount: totalPage,
		CharCount: utf8.RuneCountInString(text),
	}, nil
}

// PageMarker is the separator written before the text of a page.
func PageMarker(pageNumber int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", pageNumber)
}

// pageText returns "" for null pages and pages whose content cannot be decoded.
func pageText(reader *pdf.Reader, pageIndex int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := reader.Page(pageIndex)
	if page.V.IsNull() {
		return ""
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

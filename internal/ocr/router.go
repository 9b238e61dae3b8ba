package ocr

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// EnginePlainText identifies results read directly from text content.
const EnginePlainText = "plaintext"

// PlainText returns text content unchanged as a single page with confidence 1.
type PlainText struct{}

// Extract implements TextExtractor.
func (PlainText) Extract(_ context.Context, content []byte, _ string) (*Result, error) {
	const op = "Extract"

	if !utf8.Valid(content) {
		return nil, WrapOCRError(op, ErrUnsupportedType, "text content is not valid UTF-8")
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "")
	}

	result := Aggregate(EnginePlainText, []Page{{Number: 1, Text: text, Confidence: 1}}, nil)
	result.ProcessedAt = time.Now()
	return result, nil
}

// Router sends text/* content to PlainText and everything else to OCR.
type Router struct {
	OCR TextExtractor
}

// Extract implements TextExtractor.
func (r *Router) Extract(ctx context.Context, content []byte, mimeType string) (*Result, error) {
	if IsText(mimeType) {
		return PlainText{}.Extract(ctx, content, mimeType)
	}
	return r.OCR.Extract(ctx, content, mimeType)
}

// IsText reports whether mimeType is read without OCR.
func IsText(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.HasPrefix(strings.TrimSpace(base), "text/")
}

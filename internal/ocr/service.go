// Package ocr extracts text from stored documents.
//
// Three extractors are provided: Google Cloud Vision document text detection
// (the default), a Document AI OCR processor, and a pass-through for plain
// text. Router picks one by MIME type.
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path), falling back to Application
// Default Credentials.
//
// Cloud Vision API Limitations:
//   - Maximum file size: 20MB for synchronous processing
//   - Maximum pages: 5 pages for synchronous processing
//   - Supported formats: PDF, TIFF, GIF (files) and PNG, JPEG, WEBP, BMP (images)
//
// Every extractor returns per-page text and confidence; the document
// confidence is the mean of the page confidences.
package ocr

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// TextExtractor extracts text from document content.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (*Result, error)
}

// Page is the text found on one page.
type Page struct {
	Number     int     `json:"number"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// Result contains the results of text extraction with metadata.
type Result struct {
	// Text is the extracted text content from all pages, concatenated in reading order.
	Text string `json:"text"`

	// Pages holds the per-page text and confidence.
	Pages []Page `json:"pages"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"pageCount"`

	// Confidence is the mean page confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"languageCodes,omitempty"`

	// Extractor names the engine that produced the result.
	Extractor string `json:"extractor"`

	// ProcessedAt is the timestamp when extraction completed.
	ProcessedAt time.Time `json:"processedAt"`

	// ProcessingDuration is how long extraction took.
	ProcessingDuration time.Duration `json:"processingDuration"`
}

// Aggregate builds a Result from pages, joining their text with page
// separators and averaging their confidence.
func Aggregate(extractor string, pages []Page, languages []string) *Result {
	var text strings.Builder
	var sum float32
	for i, p := range pages {
		// Add page separator (except for first page)
		if i > 0 {
			text.WriteString("\n\n--- Page ")
			text.WriteString(strconv.Itoa(p.Number))
			text.WriteString(" ---\n\n")
		}
		text.WriteString(p.Text)
		sum += p.Confidence
	}

	var avg float32
	if len(pages) > 0 {
		avg = sum / float32(len(pages))
	}

	return &Result{
		Text:          text.String(),
		Pages:         pages,
		PageCount:     len(pages),
		Confidence:    avg,
		LanguageCodes: languages,
		Extractor:     extractor,
	}
}

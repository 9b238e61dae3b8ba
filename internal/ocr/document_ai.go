package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docpipe/internal/logger"
)

// EngineDocumentAI identifies results produced by a Document AI processor.
const EngineDocumentAI = "documentai"

// DocumentAIConfig holds configuration for Google Document AI processing.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	// Should match where your Document AI processor is created.
	Location string

	// ProcessorID is the id of an OCR processor.
	ProcessorID string

	// Timeout bounds one ProcessDocument call. Zero leaves the deadline to
	// the caller's context.
	Timeout time.Duration
}

type documentAIClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIExtractor implements TextExtractor with a Document AI OCR processor.
type DocumentAIExtractor struct {
	client documentAIClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates a Document AI extractor. A regional endpoint
// is used for locations other than "us".
func NewDocumentAIExtractor(ctx context.Context, config DocumentAIConfig, opts ...option.ClientOption) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewOCRError(op, ErrOCRFailed, "project id and processor id are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return newDocumentAIExtractor(client, config), nil
}

func newDocumentAIExtractor(client documentAIClient, config DocumentAIConfig) *DocumentAIExtractor {
	return &DocumentAIExtractor{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// Extract sends content to the OCR processor.
func (d *DocumentAIExtractor) Extract(ctx context.Context, content []byte, mimeType string) (*Result, error) {
	const op = "Extract"
	startTime := time.Now()

	if len(content) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(content)))
	}
	if !fileTypes[mimeType] && !imageTypes[mimeType] {
		return nil, WrapOCRError(op, ErrUnsupportedType, mimeType)
	}

	processCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
	if resp.GetDocument() == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result, err := processDocument(resp.Document)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Document AI response")
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	log := logger.FromContext(ctx, d.log)
	log.Info().
		Str("processor", d.config.ProcessorID).
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Msg("Document AI extraction completed")

	return result, nil
}

// processorName constructs the full processor name for Document AI API.
func (d *DocumentAIExtractor) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// processDocument slices the document text into pages using each page's
// layout anchor.
func processDocument(doc *documentaipb.Document) (*Result, error) {
	if strings.TrimSpace(doc.GetText()) == "" {
		return nil, ErrEmptyDocument
	}

	languageSet := make(map[string]bool)
	pages := make([]Page, 0, len(doc.GetPages()))

	for idx, p := range doc.GetPages() {
		page := Page{Number: idx + 1}
		if p.GetPageNumber() > 0 {
			page.Number = int(p.GetPageNumber())
		}
		page.Text = anchorText(doc.GetText(), p.GetLayout().GetTextAnchor())
		page.Confidence = p.GetLayout().GetConfidence()
		for _, lang := range p.GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
		pages = append(pages, page)
	}

	// Processors that return no page layout still return the full text.
	if len(pages) == 0 {
		pages = append(pages, Page{Number: 1, Text: doc.GetText()})
	}

	return Aggregate(EngineDocumentAI, pages, sortedKeys(languageSet)), nil
}

func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start > end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

// Close closes the underlying Document AI client.
func (d *DocumentAIExtractor) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

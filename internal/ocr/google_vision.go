package ocr

import (
	"context"
	"fmt"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docpipe/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5

	// EngineVision identifies results produced by Cloud Vision.
	EngineVision = "vision"
)

// fileTypes are sent through BatchAnnotateFiles; everything else in
// imageTypes through BatchAnnotateImages.
var (
	fileTypes = map[string]bool{
		"application/pdf": true,
		"image/tiff":      true,
		"image/gif":       true,
	}
	imageTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/webp": true,
		"image/bmp":  true,
	}
)

// visionClient is the part of *vision.ImageAnnotatorClient the extractor uses.
type visionClient interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionExtractor implements TextExtractor using Google Cloud Vision API.
type VisionExtractor struct {
	client visionClient
	log    zerolog.Logger
}

// NewVisionExtractor creates a Vision extractor with the given client options.
func NewVisionExtractor(ctx context.Context, opts ...option.ClientOption) (*VisionExtractor, error) {
	const op = "NewVisionExtractor"

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return newVisionExtractor(client), nil
}

func newVisionExtractor(client visionClient) *VisionExtractor {
	return &VisionExtractor{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// Extract runs document text detection on content.
func (v *VisionExtractor) Extract(ctx context.Context, content []byte, mimeType string) (*Result, error) {
	const op = "Extract"
	startTime := time.Now()

	if len(content) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(content)))
	}

	var (
		responses []*visionpb.AnnotateImageResponse
		err       error
	)
	switch {
	case fileTypes[mimeType]:
		responses, err = v.annotateFile(ctx, content, mimeType)
	case imageTypes[mimeType]:
		responses, err = v.annotateImage(ctx, content)
	default:
		return nil, WrapOCRError(op, ErrUnsupportedType, mimeType)
	}
	if err != nil {
		return nil, WrapOCRError(op, err, "Vision API call failed")
	}

	result, err := processVisionResponses(responses)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	log := logger.FromContext(ctx, v.log)
	log.Info().
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Vision text detection completed")

	return result, nil
}

func (v *VisionExtractor) annotateFile(ctx context.Context, content []byte, mimeType string) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  content,
					MimeType: mimeType,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("%w: no response from Vision API", ErrOCRFailed)
	}

	fileResp := resp.Responses[0]
	if fileResp.GetError() != nil {
		return nil, fmt.Errorf("%w: Vision API error: %s", ErrOCRFailed, fileResp.Error.GetMessage())
	}
	return fileResp.GetResponses(), nil
}

func (v *VisionExtractor) annotateImage(ctx context.Context, content []byte) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("%w: no response from Vision API", ErrOCRFailed)
	}
	return resp.Responses, nil
}

// processVisionResponses turns one AnnotateImageResponse per page into a Result.
func processVisionResponses(responses []*visionpb.AnnotateImageResponse) (*Result, error) {
	if len(responses) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(responses) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(responses))
	}

	languageSet := make(map[string]bool)
	pages := make([]Page, 0, len(responses))
	hasText := false

	for idx, resp := range responses {
		if resp.GetError() != nil {
			return nil, fmt.Errorf("error processing page %d: %s", idx+1, resp.Error.GetMessage())
		}

		page := Page{Number: idx + 1}
		if annCtx := resp.GetContext(); annCtx.GetPageNumber() > 0 {
			page.Number = int(annCtx.GetPageNumber())
		}

		if annotation := resp.GetFullTextAnnotation(); annotation != nil {
			page.Text = annotation.GetText()
			var sum float32
			for _, p := range annotation.GetPages() {
				sum += p.GetConfidence()
				for _, lang := range p.GetProperty().GetDetectedLanguages() {
					if lang.GetLanguageCode() != "" {
						languageSet[lang.GetLanguageCode()] = true
					}
				}
			}
			if n := len(annotation.GetPages()); n > 0 {
				page.Confidence = sum / float32(n)
			}
			if page.Text != "" {
				hasText = true
			}
		}
		pages = append(pages, page)
	}

	if !hasText {
		return nil, ErrEmptyDocument
	}

	return Aggregate(EngineVision, pages, sortedKeys(languageSet)), nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes the underlying Vision client.
func (v *VisionExtractor) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

package stages

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/logger"
	"docpipe/internal/ocr"
	"docpipe/internal/storage"
)

// Extraction runs text extraction on a stored raw document and writes the
// result to the results bucket.
type Extraction struct {
	objects       ObjectStore
	extractor     ocr.TextExtractor
	resultsBucket string
	now           clock
	log           zerolog.Logger
}

// NewExtraction creates the extraction stage. extractor is normally an
// *ocr.Router so text/* objects skip OCR.
func NewExtraction(objects ObjectStore, extractor ocr.TextExtractor, resultsBucket string) *Extraction {
	return &Extraction{
		objects:       objects,
		extractor:     extractor,
		resultsBucket: resultsBucket,
		now:           time.Now,
		log:           logger.WithComponent("stages"),
	}
}

// Handle implements Handler. The payload is an ObjectNotification for the
// raw bucket.
func (e *Extraction) Handle(ctx context.Context, env *event.Envelope) error {
	ctx, log := begin(ctx, e.log, StageExtraction)

	msg, err := event.Parse(env)
	if err != nil {
		return err
	}
	if err := event.RequireFields(msg.Data, "bucket", "name"); err != nil {
		return err
	}
	var n ObjectNotification
	if err := msg.Decode(&n); err != nil {
		return err
	}
	log = log.With().Str("object", n.Bucket+"/"+n.Name).Logger()

	content, err := e.objects.Read(ctx, n.Bucket, n.Name)
	if err != nil {
		return wrap(StageExtraction, "read object", err)
	}

	mimeType := n.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = contentType(n.Metadata[storage.MetaMimeType], n.Name)
	}

	result, err := e.extractor.Extract(ctx, content, mimeType)
	if err != nil {
		if unprocessable(err) {
			return errs.NewValidationError("name", err.Error())
		}
		return wrap(StageExtraction, "extract text", err)
	}

	digest := n.Metadata[storage.MetaSHA256]
	if digest == "" {
		base := path.Base(n.Name)
		digest = strings.TrimSuffix(base, path.Ext(base))
	}

	out := ExtractionResult{
		SourceBucket: n.Bucket,
		SourceObject: n.Name,
		SHA256:       digest,
		ContentType:  mimeType,
		Metadata:     n.Metadata,
		OCR:          result,
		ExtractedAt:  e.now(),
	}
	data, err := json.Marshal(out)
	if err != nil {
		return wrap(StageExtraction, "encode result", err)
	}

	resultName := storage.ResultName(n.Name)
	metadata := map[string]string{"sourceBucket": n.Bucket, "sourceObject": n.Name}
	err = e.objects.Upload(ctx, e.resultsBucket, resultName, data, "application/json", metadata)
	if errors.Is(err, storage.ErrObjectExists) {
		log.Info().Str("result", resultName).Msg("Result already written, skipping")
		return nil
	}
	if err != nil {
		return wrap(StageExtraction, "write result", err)
	}

	log.Info().
		Str("result", resultName).
		Str("extractor", result.Extractor).
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Msg("Text extracted")
	return nil
}

// unprocessable reports extraction failures that no redelivery can fix.
func unprocessable(err error) bool {
	return errors.Is(err, ocr.ErrUnsupportedType) ||
		errors.Is(err, ocr.ErrFileTooLarge) ||
		errors.Is(err, ocr.ErrTooManyPages) ||
		errors.Is(err, ocr.ErrEmptyDocument)
}

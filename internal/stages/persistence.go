package stages

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/firestore"
	"docpipe/internal/logger"
	"docpipe/internal/storage"
)

// Persistence turns an ExtractionResult into a DocumentRecord keyed by the
// document digest.
type Persistence struct {
	objects ObjectStore
	records RecordStore
	now     clock
	log     zerolog.Logger
}

// NewPersistence creates the persistence stage.
func NewPersistence(objects ObjectStore, records RecordStore) *Persistence {
	return &Persistence{
		objects: objects,
		records: records,
		now:     time.Now,
		log:     logger.WithComponent("stages"),
	}
}

// Handle implements Handler. The payload is an ObjectNotification for the
// results bucket.
func (p *Persistence) Handle(ctx context.Context, env *event.Envelope) error {
	ctx, log := begin(ctx, p.log, StagePersistence)

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

	data, err := p.objects.Read(ctx, n.Bucket, n.Name)
	if err != nil {
		return wrap(StagePersistence, "read result", err)
	}
	var result ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return errs.NewParsingError("parsing failed", err)
	}
	if result.SourceBucket == "" || result.SourceObject == "" {
		return errs.NewValidationError("sourceObject", "missing required fields: sourceObject")
	}

	attrs, err := p.objects.Attrs(ctx, result.SourceBucket, result.SourceObject)
	if err != nil {
		return wrap(StagePersistence, "read provenance", err)
	}
	provenance := storage.ProvenanceFromMetadata(attrs.Metadata)

	now := p.now()
	record := DocumentRecord{
		SHA256:         result.SHA256,
		DriveFileID:    provenance.DriveFileID,
		FileName:       provenance.DriveFileName,
		MimeType:       result.ContentType,
		SourceFolderID: provenance.SourceFolderID,
		SourceObject:   result.SourceBucket + "/" + result.SourceObject,
		Status:         StatusExtracted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if provenance.SHA256 != "" {
		record.SHA256 = provenance.SHA256
	}
	if result.OCR != nil {
		record.Text = result.OCR.Text
		record.PageCount = result.OCR.PageCount
		record.OCRConfidence = float64(result.OCR.Confidence)
		record.Extractor = result.OCR.Extractor
	}

	fields := record.Fields()
	if err := event.RequireFields(fields, "sha256", "driveFileId", "fileName", "text"); err != nil {
		return err
	}

	err = p.records.Create(ctx, record.SHA256, fields)
	if errors.Is(err, firestore.ErrAlreadyExists) {
		// Keep the classification state of an existing record.
		delete(fields, "status")
		delete(fields, "createdAt")
		err = p.records.Update(ctx, record.SHA256, fields)
		if err != nil {
			return wrap(StagePersistence, "update record", err)
		}
		log.Info().Str("document_id", record.SHA256).Msg("Document record refreshed")
		return nil
	}
	if err != nil {
		return wrap(StagePersistence, "create record", err)
	}

	log.Info().
		Str("document_id", record.SHA256).
		Int("pages", record.PageCount).
		Msg("Document record created")
	return nil
}

package stages

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/classify"
	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/firestore"
	"docpipe/internal/logger"
	"docpipe/internal/sheets"
)

// ClassificationConfig names the Drive folders classification files into.
type ClassificationConfig struct {
	// CategoryRootFolderID holds one subfolder per category.
	CategoryRootFolderID string

	// UncategorizedFolderID receives documents no category matched. Empty
	// leaves them where they are.
	UncategorizedFolderID string
}

// Classification classifies a persisted document and moves its Drive original
// into the matching category folder.
type Classification struct {
	records    RecordStore
	filer      Filer
	classifier classify.Classifier
	ledger     ReviewLedger
	config     ClassificationConfig
	now        clock
	log        zerolog.Logger
}

// NewClassification creates the classification stage. ledger may be nil.
func NewClassification(records RecordStore, filer Filer, classifier classify.Classifier, ledger ReviewLedger, config ClassificationConfig) *Classification {
	return &Classification{
		records:    records,
		filer:      filer,
		classifier: classifier,
		ledger:     ledger,
		config:     config,
		now:        time.Now,
		log:        logger.WithComponent("stages"),
	}
}

// Handle implements Handler. The payload is {"documentId": "..."} or a
// Firestore document event whose value.name ends in the document id.
func (c *Classification) Handle(ctx context.Context, env *event.Envelope) error {
	ctx, log := begin(ctx, c.log, StageClassification)

	msg, err := event.Parse(env)
	if err != nil {
		return err
	}
	documentID := documentIDOf(msg)
	if documentID == "" {
		return errs.NewValidationError("documentId", "missing required fields: documentId")
	}
	log = log.With().Str("document_id", documentID).Logger()

	record, err := c.records.Get(ctx, documentID)
	if errors.Is(err, firestore.ErrNotFound) {
		return errs.NewValidationError("documentId", fmt.Sprintf("document %s not found", documentID))
	}
	if err != nil {
		return wrap(StageClassification, "load record", err)
	}
	if err := event.RequireFields(record, "driveFileId", "text"); err != nil {
		return err
	}

	switch stringField(record, "status") {
	case StatusClassified, StatusUncategorized:
		log.Info().Msg("Document already classified, skipping")
		return nil
	}

	var categories []classify.Category
	if c.config.CategoryRootFolderID != "" {
		categories, err = c.filer.ListCategories(ctx, c.config.CategoryRootFolderID)
		if err != nil {
			return wrap(StageClassification, "list categories", err)
		}
	}

	result, err := c.classifier.Classify(ctx, stringField(record, "text"), categories)
	if err != nil {
		return wrap(StageClassification, "classify", err)
	}

	driveFileID := stringField(record, "driveFileId")
	sourceFolderID := stringField(record, "sourceFolderId")

	status := StatusUncategorized
	target := c.config.UncategorizedFolderID
	if result.Matched() {
		status = StatusClassified
		target = *result.CategoryFolderID
	}
	if target != "" {
		if err := c.filer.Move(ctx, driveFileID, sourceFolderID, target); err != nil {
			return wrap(StageClassification, "move file", err)
		}
	}

	now := c.now()
	update := map[string]any{
		"status":                   status,
		"categoryName":             nil,
		"categoryFolderId":         nil,
		"classificationConfidence": result.Confidence,
		"classificationReasoning":  result.Reasoning,
		"updatedAt":                now,
	}
	if target != "" {
		update["sourceFolderId"] = target
	}
	if result.Matched() {
		update["categoryName"] = *result.CategoryName
		update["categoryFolderId"] = *result.CategoryFolderID
	}
	if err := c.records.Update(ctx, documentID, update); err != nil {
		return wrap(StageClassification, "update record", err)
	}

	if c.ledger != nil {
		row := sheets.ReviewRow{
			DocumentID:   documentID,
			FileName:     stringField(record, "fileName"),
			DriveFileID:  driveFileID,
			Confidence:   result.Confidence,
			Reasoning:    result.Reasoning,
			Status:       status,
			ClassifiedAt: now,
		}
		if result.Matched() {
			row.CategoryName = *result.CategoryName
		}
		if err := c.ledger.Append(ctx, row); err != nil {
			log.Warn().Err(err).Msg("Failed to append review row")
		}
	}

	log.Info().
		Str("status", status).
		Str("target_folder", target).
		Float64("confidence", result.Confidence).
		Msg("Document filed")
	return nil
}

// documentIDOf reads documentId, falling back to the last segment of a
// Firestore event's value.name.
func documentIDOf(msg *event.Message) string {
	if id := msg.String("documentId"); id != "" {
		return id
	}
	value, ok := msg.Data["value"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := value["name"].(string)
	if name == "" {
		return ""
	}
	return path.Base(name)
}

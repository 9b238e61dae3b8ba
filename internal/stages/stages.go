// Package stages implements the five pipeline stages. Each stage is a Handler
// invoked once per triggering occurrence:
//
//	discovery      list the watched Drive folder, publish one FileMessage per file
//	preparation    download a file, store it content-addressed with provenance
//	extraction     OCR a stored object, write the ExtractionResult JSON
//	persistence    turn an ExtractionResult into a DocumentRecord
//	classification classify a record and file its Drive original
//
// Handlers return validation and parsing failures unchanged so the caller can
// acknowledge them with errs.IsPermanent. Every other failure is wrapped with
// the stage and step that produced it and should be redelivered.
package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docpipe/internal/classify"
	"docpipe/internal/drive"
	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/logger"
	"docpipe/internal/sheets"
	"docpipe/internal/storage"
)

// Stage names.
const (
	StageDiscovery      = "discovery"
	StagePreparation    = "preparation"
	StageExtraction     = "extraction"
	StagePersistence    = "persistence"
	StageClassification = "classification"
)

// Handler processes one envelope.
type Handler interface {
	Handle(ctx context.Context, env *event.Envelope) error
}

// FileLister lists the files of a Drive folder.
type FileLister interface {
	ListFiles(ctx context.Context, folderID string) ([]drive.File, error)
}

// Downloader fetches Drive file content.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Filer lists category folders and moves files between folders.
type Filer interface {
	ListCategories(ctx context.Context, rootID string) ([]classify.Category, error)
	Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error
}

// Publisher publishes a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// ObjectStore is the object storage used for raw documents and results.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name string, content []byte, contentType string, metadata map[string]string) error
	Exists(ctx context.Context, bucket, name string) (bool, error)
	Attrs(ctx context.Context, bucket, name string) (*storage.ObjectAttrs, error)
	Read(ctx context.Context, bucket, name string) ([]byte, error)
}

// RecordStore persists document records by id.
type RecordStore interface {
	Create(ctx context.Context, id string, data map[string]any) error
	Update(ctx context.Context, id string, data map[string]any) error
	Get(ctx context.Context, id string) (map[string]any, error)
}

// ReviewLedger receives one row per classification.
type ReviewLedger interface {
	Append(ctx context.Context, row sheets.ReviewRow) error
}

// begin tags the context logger (or base) with the stage and a fresh request
// id and stores it in the returned context.
func begin(ctx context.Context, base zerolog.Logger, stage string) (context.Context, zerolog.Logger) {
	requestID := uuid.NewString()
	log := logger.FromContext(ctx, base).With().
		Str("stage", stage).
		Str("request_id", requestID).
		Logger()
	return logger.WithContext(ctx, log), log
}

// wrap returns permanent errors unchanged and prefixes the others with the
// stage and step.
func wrap(stage, step string, err error) error {
	if errs.IsPermanent(err) {
		return err
	}
	return fmt.Errorf("%s: %s: %w", stage, step, err)
}

type clock func() time.Time

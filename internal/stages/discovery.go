package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/logger"
)

// maxConcurrentPublishes bounds the publish fan-out.
const maxConcurrentPublishes = 16

// Discovery lists the watched folder and publishes one FileMessage per file to
// the preparation topic.
type Discovery struct {
	files           FileLister
	publisher       Publisher
	topic           string
	defaultFolderID string
	log             zerolog.Logger
}

// NewDiscovery creates the discovery stage. defaultFolderID is used when the
// payload carries no folderId.
func NewDiscovery(files FileLister, publisher Publisher, topic, defaultFolderID string) *Discovery {
	return &Discovery{
		files:           files,
		publisher:       publisher,
		topic:           topic,
		defaultFolderID: defaultFolderID,
		log:             logger.WithComponent("stages"),
	}
}

// Handle implements Handler. The payload is {"folderId": "..."} or any object
// when a default folder is configured.
func (d *Discovery) Handle(ctx context.Context, env *event.Envelope) error {
	msg, err := event.Parse(env)
	if err != nil {
		return err
	}
	_, err = d.Run(ctx, msg.String("folderId"))
	return err
}

// Run publishes every file of folderID and returns how many were published.
// All publishes are attempted; the first failure is returned after the rest
// complete.
func (d *Discovery) Run(ctx context.Context, folderID string) (int, error) {
	ctx, log := begin(ctx, d.log, StageDiscovery)

	if folderID == "" {
		folderID = d.defaultFolderID
	}
	if folderID == "" {
		return 0, errs.NewValidationError("folderId", "missing required fields: folderId")
	}

	files, err := d.files.ListFiles(ctx, folderID)
	if err != nil {
		return 0, wrap(StageDiscovery, "list files", err)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentPublishes)
	for _, f := range files {
		msg := FileMessage{
			FileID:       f.ID,
			FileName:     f.Name,
			MimeType:     f.MimeType,
			FolderID:     folderID,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
		}
		g.Go(func() error {
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			attrs := map[string]string{"fileId": msg.FileID, "folderId": folderID}
			if _, err := d.publisher.Publish(ctx, d.topic, data, attrs); err != nil {
				log.Error().Err(err).Str("file_id", msg.FileID).Msg("Failed to publish file")
				return fmt.Errorf("file %s: %w", msg.FileID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, wrap(StageDiscovery, "publish", err)
	}

	log.Info().
		Str("folder_id", folderID).
		Int("published", len(files)).
		Msg("Discovery completed")
	return len(files), nil
}

package stages

import (
	"context"
	"errors"
	"mime"
	"path"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/event"
	"docpipe/internal/logger"
	"docpipe/internal/storage"
)

// Preparation copies a Drive file into the raw bucket under its content
// digest, attaching provenance metadata.
type Preparation struct {
	drive   Downloader
	objects ObjectStore
	bucket  string
	now     clock
	log     zerolog.Logger
}

// NewPreparation creates the preparation stage writing to bucket.
func NewPreparation(drive Downloader, objects ObjectStore, bucket string) *Preparation {
	return &Preparation{
		drive:   drive,
		objects: objects,
		bucket:  bucket,
		now:     time.Now,
		log:     logger.WithComponent("stages"),
	}
}

// Handle implements Handler. The payload is a FileMessage.
func (p *Preparation) Handle(ctx context.Context, env *event.Envelope) error {
	ctx, log := begin(ctx, p.log, StagePreparation)

	msg, err := event.Parse(env)
	if err != nil {
		return err
	}
	if err := event.RequireFields(msg.Data, "fileId", "fileName"); err != nil {
		return err
	}
	var file FileMessage
	if err := msg.Decode(&file); err != nil {
		return err
	}

	content, err := p.drive.Download(ctx, file.FileID)
	if err != nil {
		return wrap(StagePreparation, "download", err)
	}

	digest := storage.SHA256(content)
	name := storage.ObjectName(digest, file.FileName)
	log = log.With().Str("file_id", file.FileID).Str("object", name).Logger()

	exists, err := p.objects.Exists(ctx, p.bucket, name)
	if err != nil {
		return wrap(StagePreparation, "check object", err)
	}
	if exists {
		log.Info().Msg("Object already stored, skipping upload")
		return nil
	}

	mimeType := contentType(file.MimeType, file.FileName)
	provenance := storage.Provenance{
		DriveFileID:    file.FileID,
		DriveFileName:  file.FileName,
		SourceFolderID: file.FolderID,
		SHA256:         digest,
		MimeType:       mimeType,
		DiscoveredAt:   p.now(),
	}

	err = p.objects.Upload(ctx, p.bucket, name, content, mimeType, provenance.Metadata())
	if errors.Is(err, storage.ErrObjectExists) {
		log.Info().Msg("Object stored concurrently, skipping upload")
		return nil
	}
	if err != nil {
		return wrap(StagePreparation, "upload", err)
	}

	log.Info().Int("bytes", len(content)).Msg("Document prepared")
	return nil
}

// contentType prefers the declared type, then the file extension.
func contentType(declared, fileName string) string {
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(path.Ext(fileName)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Package drive wraps the Drive v3 API calls the pipeline needs: listing the
// watched folder, listing category subfolders, downloading file content and
// moving a file between folders.
//
// All calls set supportsAllDrives so shared drives behave like My Drive.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"docpipe/internal/classify"
	"docpipe/internal/logger"
)

const (
	// FolderMimeType is the MIME type Drive reports for folders.
	FolderMimeType = "application/vnd.google-apps.folder"

	// nativePrefix marks Google-native formats (Docs, Sheets, ...) that cannot
	// be downloaded without an export.
	nativePrefix = "application/vnd.google-apps."

	fileFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size, parents)"
)

// File is the subset of Drive file metadata the pipeline carries.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Size         int64
	Parents      []string
}

// Service is a Drive v3 client.
type Service struct {
	svc *drive.Service
	log zerolog.Logger
}

// NewService creates a Drive client with the given client options.
func NewService(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	const op = "NewService"

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create drive service: %w", op, err)
	}

	return &Service{
		svc: svc,
		log: logger.WithComponent("drive"),
	}, nil
}

// ListFiles returns the downloadable files directly inside folderID.
// Folders and Google-native documents are skipped.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	const op = "ListFiles"

	entries, err := s.list(ctx, fmt.Sprintf("'%s' in parents and trashed = false", escape(folderID)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	files := make([]File, 0, len(entries))
	for _, f := range entries {
		if strings.HasPrefix(f.MimeType, nativePrefix) {
			s.log.Debug().Str("file_id", f.ID).Str("mime_type", f.MimeType).Msg("Skipping Google-native entry")
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// ListCategories returns the subfolders of rootID as classification
// categories.
func (s *Service) ListCategories(ctx context.Context, rootID string) ([]classify.Category, error) {
	const op = "ListCategories"

	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", escape(rootID), FolderMimeType)
	folders, err := s.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	categories := make([]classify.Category, 0, len(folders))
	for _, f := range folders {
		categories = append(categories, classify.Category{ID: f.ID, Name: f.Name})
	}
	return categories, nil
}

func (s *Service) list(ctx context.Context, q string) ([]File, error) {
	var files []File
	err := s.svc.Files.List().
		Q(q).
		Fields(fileFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, File{
					ID:           f.Id,
					Name:         f.Name,
					MimeType:     f.MimeType,
					ModifiedTime: f.ModifiedTime,
					Size:         f.Size,
					Parents:      f.Parents,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Download returns the content of fileID.
func (s *Service) Download(ctx context.Context, fileID string) ([]byte, error) {
	const op = "Download"

	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to download %s: %w", op, fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, fileID, err)
	}

	s.log.Debug().Str("file_id", fileID).Int("bytes", len(content)).Msg("Downloaded file")
	return content, nil
}

// Move reparents fileID from fromFolderID to toFolderID. An empty
// fromFolderID only adds the new parent.
func (s *Service) Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error {
	const op = "Move"

	call := s.svc.Files.Update(fileID, &drive.File{}).
		AddParents(toFolderID).
		SupportsAllDrives(true).
		Fields("id, parents")
	if fromFolderID != "" && fromFolderID != toFolderID {
		call = call.RemoveParents(fromFolderID)
	}

	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to move %s to %s: %w", op, fileID, toFolderID, err)
	}

	s.log.Info().
		Str("file_id", fileID).
		Str("from", fromFolderID).
		Str("to", toFolderID).
		Msg("Moved file")
	return nil
}

// escape quotes a value for use inside a single-quoted Drive query literal.
func escape(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}

package stages

import (
	"time"

	"docpipe/internal/ocr"
)

// Record statuses.
const (
	StatusExtracted     = "extracted"
	StatusClassified    = "classified"
	StatusUncategorized = "uncategorized"
)

// FileMessage is published by discovery for each file to prepare.
type FileMessage struct {
	FileID       string `json:"fileId"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType,omitempty"`
	FolderID     string `json:"folderId,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// ObjectNotification is the storage finalize notification that triggers
// extraction and persistence.
type ObjectNotification struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ExtractionResult is the JSON object extraction writes to the results bucket.
type ExtractionResult struct {
	SourceBucket string            `json:"sourceBucket"`
	SourceObject string            `json:"sourceObject"`
	SHA256       string            `json:"sha256"`
	ContentType  string            `json:"contentType"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	OCR          *ocr.Result       `json:"ocr"`
	ExtractedAt  time.Time         `json:"extractedAt"`
}

// DocumentRecord is the persisted view of one document, keyed by SHA256.
type DocumentRecord struct {
	SHA256         string
	DriveFileID    string
	FileName       string
	MimeType       string
	SourceFolderID string
	SourceObject   string
	Text           string
	PageCount      int
	OCRConfidence  float64
	Extractor      string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fields returns the record as document fields. Classification fields are
// added later by the classification stage.
func (r DocumentRecord) Fields() map[string]any {
	return map[string]any{
		"sha256":         r.SHA256,
		"driveFileId":    r.DriveFileID,
		"fileName":       r.FileName,
		"mimeType":       r.MimeType,
		"sourceFolderId": r.SourceFolderID,
		"sourceObject":   r.SourceObject,
		"text":           r.Text,
		"pageCount":      r.PageCount,
		"ocrConfidence":  r.OCRConfidence,
		"extractor":      r.Extractor,
		"status":         r.Status,
		"createdAt":      r.CreatedAt,
		"updatedAt":      r.UpdatedAt,
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"time"
)

// Metadata keys written on raw document objects.
const (
	MetaDriveFileID    = "driveFileId"
	MetaDriveFileName  = "driveFileName"
	MetaSourceFolderID = "sourceFolderId"
	MetaSHA256         = "sha256"
	MetaMimeType       = "mimeType"
	MetaDiscoveredAt   = "discoveredAt"
)

// Provenance records where a stored document came from.
type Provenance struct {
	DriveFileID    string
	DriveFileName  string
	SourceFolderID string
	SHA256         string
	MimeType       string
	DiscoveredAt   time.Time
}

// Metadata returns p as object metadata. Empty values are omitted.
func (p Provenance) Metadata() map[string]string {
	m := map[string]string{
		MetaDriveFileID:    p.DriveFileID,
		MetaDriveFileName:  p.DriveFileName,
		MetaSourceFolderID: p.SourceFolderID,
		MetaSHA256:         p.SHA256,
		MetaMimeType:       p.MimeType,
	}
	if !p.DiscoveredAt.IsZero() {
		m[MetaDiscoveredAt] = p.DiscoveredAt.UTC().Format(time.RFC3339)
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

// ProvenanceFromMetadata reads the provenance back from object metadata.
// Unparseable timestamps are left zero.
func ProvenanceFromMetadata(m map[string]string) Provenance {
	p := Provenance{
		DriveFileID:    m[MetaDriveFileID],
		DriveFileName:  m[MetaDriveFileName],
		SourceFolderID: m[MetaSourceFolderID],
		SHA256:         m[MetaSHA256],
		MimeType:       m[MetaMimeType],
	}
	if ts, err := time.Parse(time.RFC3339, m[MetaDiscoveredAt]); err == nil {
		p.DiscoveredAt = ts
	}
	return p
}

// SHA256 returns the lowercase hex digest of content.
func SHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ObjectName is the content-addressed name of a raw document: the digest
// followed by the lowercased extension of fileName.
func ObjectName(digest, fileName string) string {
	return digest + strings.ToLower(path.Ext(fileName))
}

// ResultName is the name of the extraction result for the raw object name.
func ResultName(objectName string) string {
	base := path.Base(objectName)
	return strings.TrimSuffix(base, path.Ext(base)) + ".json"
}

// Package storage wraps the Cloud Storage calls used by the pipeline and
// defines the provenance metadata attached to uploaded documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"docpipe/internal/logger"
)

// ErrObjectExists is returned by Upload when the object is already present.
var ErrObjectExists = errors.New("object already exists")

// ObjectAttrs is the subset of object attributes the pipeline reads.
type ObjectAttrs struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// Client is a Cloud Storage client.
type Client struct {
	client *storage.Client
	log    zerolog.Logger
}

// NewClient creates a Cloud Storage client with the given client options.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	const op = "NewClient"

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create storage client: %w", op, err)
	}

	return &Client{
		client: client,
		log:    logger.WithComponent("storage"),
	}, nil
}

// Upload writes content to bucket/name only if the object does not exist yet.
// ErrObjectExists is returned when it does.
func (c *Client) Upload(ctx context.Context, bucket, name string, content []byte, contentType string, metadata map[string]string) error {
	const op = "Upload"

	w := c.client.Bucket(bucket).Object(name).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("%s: failed to write gs://%s/%s: %w", op, bucket, name, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return fmt.Errorf("%s: failed to finalize gs://%s/%s: %w", op, bucket, name, err)
	}

	c.log.Info().
		Str("bucket", bucket).
		Str("object", name).
		Int("bytes", len(content)).
		Msg("Uploaded object")
	return nil
}

// Exists reports whether bucket/name exists.
func (c *Client) Exists(ctx context.Context, bucket, name string) (bool, error) {
	const op = "Exists"

	_, err := c.client.Bucket(bucket).Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: gs://%s/%s: %w", op, bucket, name, err)
	}
	return true, nil
}

// Attrs returns the attributes of bucket/name.
func (c *Client) Attrs(ctx context.Context, bucket, name string) (*ObjectAttrs, error) {
	const op = "Attrs"

	attrs, err := c.client.Bucket(bucket).Object(name).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: gs://%s/%s: %w", op, bucket, name, err)
	}

	return &ObjectAttrs{
		Bucket:      attrs.Bucket,
		Name:        attrs.Name,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Metadata:    attrs.Metadata,
	}, nil
}

// Read returns the content of bucket/name.
func (c *Client) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	const op = "Read"

	r, err := c.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: gs://%s/%s: %w", op, bucket, name, err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read gs://%s/%s: %w", op, bucket, name, err)
	}
	return content, nil
}

// Close closes the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

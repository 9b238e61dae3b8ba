package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func writeObject(w http.ResponseWriter, obj map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(obj)
}

func TestUpload(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/b/raw/o"), r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("ifGenerationMatch"))
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		writeObject(w, map[string]any{"bucket": "raw", "name": "abc.pdf", "size": "4"})
	})

	err := c.Upload(context.Background(), "raw", "abc.pdf", []byte("%PDF"), "application/pdf",
		map[string]string{MetaDriveFileID: "f1"})
	require.NoError(t, err)
	assert.Contains(t, body, `"driveFileId":"f1"`)
	assert.Contains(t, body, "%PDF")
}

func TestUpload_AlreadyExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeError(w, http.StatusPreconditionFailed, "At least one of the pre-conditions you specified did not hold.")
	})

	err := c.Upload(context.Background(), "raw", "abc.pdf", []byte("%PDF"), "application/pdf", nil)
	assert.ErrorIs(t, err, ErrObjectExists)
}

func TestUpload_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeError(w, http.StatusForbidden, "denied")
	})

	err := c.Upload(context.Background(), "raw", "abc.pdf", []byte("%PDF"), "application/pdf", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectExists)
	assert.Contains(t, err.Error(), "gs://raw/abc.pdf")
}

func TestExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch {
		case strings.HasSuffix(r.URL.Path, "/b/raw/o/present.pdf"):
			writeObject(w, map[string]any{"bucket": "raw", "name": "present.pdf"})
		case strings.HasSuffix(r.URL.Path, "/b/raw/o/broken.pdf"):
			writeError(w, http.StatusForbidden, "denied")
		default:
			writeError(w, http.StatusNotFound, "No such object")
		}
	})
	ctx := context.Background()

	ok, err := c.Exists(ctx, "raw", "present.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(ctx, "raw", "missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Exists(ctx, "raw", "broken.pdf")
	assert.Error(t, err)
}

func TestAttrs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/b/raw/o/abc.pdf"), r.URL.Path)
		writeObject(w, map[string]any{
			"bucket":      "raw",
			"name":        "abc.pdf",
			"contentType": "application/pdf",
			"size":        "1024",
			"metadata":    map[string]string{MetaDriveFileID: "f1", MetaSHA256: "abc"},
		})
	})

	attrs, err := c.Attrs(context.Background(), "raw", "abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, &ObjectAttrs{
		Bucket:      "raw",
		Name:        "abc.pdf",
		ContentType: "application/pdf",
		Size:        1024,
		Metadata:    map[string]string{MetaDriveFileID: "f1", MetaSHA256: "abc"},
	}, attrs)
}

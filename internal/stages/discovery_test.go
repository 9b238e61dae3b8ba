package stages

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/drive"
	"docpipe/internal/errs"
	"docpipe/internal/event"
)

func discoveryFiles() []drive.File {
	return []drive.File{
		{ID: "f1", Name: "invoice.pdf", MimeType: "application/pdf", Size: 1024},
		{ID: "f2", Name: "receipt.png", MimeType: "image/png", Size: 2048},
		{ID: "f3", Name: "notes.txt", MimeType: "text/plain", Size: 12},
	}
}

func TestDiscovery_PublishesEveryFile(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDiscovery(&fakeDrive{files: discoveryFiles()}, pub, "preparation", "inbox")

	err := d.Handle(context.Background(), &event.Envelope{Payload: `{"folderId":"scans"}`})
	require.NoError(t, err)

	require.Len(t, pub.messages, 3)
	var ids []string
	for _, m := range pub.messages {
		assert.Equal(t, "preparation", m.topic)
		assert.Equal(t, "scans", m.attrs["folderId"])

		var msg FileMessage
		require.NoError(t, json.Unmarshal(m.data, &msg))
		assert.Equal(t, m.attrs["fileId"], msg.FileID)
		assert.Equal(t, "scans", msg.FolderID)
		ids = append(ids, msg.FileID)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"f1", "f2", "f3"}, ids)
}

func TestDiscovery_DefaultFolder(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDiscovery(&fakeDrive{files: discoveryFiles()[:1]}, pub, "preparation", "inbox")

	n, err := d.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "inbox", pub.messages[0].attrs["folderId"])
}

func TestDiscovery_MissingFolder(t *testing.T) {
	d := NewDiscovery(&fakeDrive{}, &fakePublisher{}, "preparation", "")

	err := d.Handle(context.Background(), &event.Envelope{Payload: map[string]any{}})
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "folderId", vErr.Field)
}

func TestDiscovery_InvalidPayload(t *testing.T) {
	d := NewDiscovery(&fakeDrive{}, &fakePublisher{}, "preparation", "inbox")

	err := d.Handle(context.Background(), &event.Envelope{})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestDiscovery_PublishFailureAfterAllAttempts(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]bool{"f2": true}}
	d := NewDiscovery(&fakeDrive{files: discoveryFiles()}, pub, "preparation", "inbox")

	_, err := d.Run(context.Background(), "")
	require.Error(t, err)
	assert.False(t, errs.IsPermanent(err))
	assert.Contains(t, err.Error(), "discovery: publish: file f2")
	assert.Equal(t, 3, pub.attempts)
	assert.Len(t, pub.messages, 2)
}

func TestDiscovery_ListFailure(t *testing.T) {
	cause := errors.New("drive unavailable")
	d := NewDiscovery(&fakeDrive{listErr: cause}, &fakePublisher{}, "preparation", "inbox")

	_, err := d.Run(context.Background(), "")
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "discovery: list files: drive unavailable")
}

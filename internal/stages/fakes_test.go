package stages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docpipe/internal/classify"
	"docpipe/internal/drive"
	"docpipe/internal/firestore"
	"docpipe/internal/ocr"
	"docpipe/internal/sheets"
	"docpipe/internal/storage"
)

var fixedTime = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

type move struct {
	fileID, from, to string
}

type fakeDrive struct {
	files         []drive.File
	listErr       error
	content       map[string][]byte
	downloadErr   error
	categories    []classify.Category
	categoriesErr error
	moveErr       error

	mu    sync.Mutex
	moves []move
}

func (f *fakeDrive) ListFiles(_ context.Context, _ string) ([]drive.File, error) {
	return f.files, f.listErr
}

func (f *fakeDrive) Download(_ context.Context, fileID string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	content, ok := f.content[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return content, nil
}

func (f *fakeDrive) ListCategories(_ context.Context, _ string) ([]classify.Category, error) {
	return f.categories, f.categoriesErr
}

func (f *fakeDrive) Move(_ context.Context, fileID, from, to string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, move{fileID, from, to})
	return nil
}

type published struct {
	topic string
	data  []byte
	attrs map[string]string
}

type fakePublisher struct {
	failFor map[string]bool

	mu       sync.Mutex
	attempts int
	messages []published
}

func (f *fakePublisher) Publish(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failFor[attrs["fileId"]] {
		return "", fmt.Errorf("deadline exceeded")
	}
	f.messages = append(f.messages, published{topic, data, attrs})
	return fmt.Sprintf("msg-%d", len(f.messages)), nil
}

type object struct {
	content     []byte
	contentType string
	metadata    map[string]string
}

type fakeObjects struct {
	readErr   error
	uploadErr error

	mu      sync.Mutex
	objects map[string]object
	uploads int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string]object)}
}

func (f *fakeObjects) put(bucket, name string, o object) {
	f.objects[bucket+"/"+name] = o
}

func (f *fakeObjects) get(bucket, name string) (object, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[bucket+"/"+name]
	return o, ok
}

func (f *fakeObjects) Upload(_ context.Context, bucket, name string, content []byte, contentType string, metadata map[string]string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+name]; ok {
		return storage.ErrObjectExists
	}
	f.uploads++
	f.objects[bucket+"/"+name] = object{content, contentType, metadata}
	return nil
}

func (f *fakeObjects) Exists(_ context.Context, bucket, name string) (bool, error) {
	_, ok := f.get(bucket, name)
	return ok, nil
}

func (f *fakeObjects) Attrs(_ context.Context, bucket, name string) (*storage.ObjectAttrs, error) {
	o, ok := f.get(bucket, name)
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: object doesn't exist", bucket, name)
	}
	return &storage.ObjectAttrs{
		Bucket:      bucket,
		Name:        name,
		ContentType: o.contentType,
		Size:        int64(len(o.content)),
		Metadata:    o.metadata,
	}, nil
}

func (f *fakeObjects) Read(_ context.Context, bucket, name string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	o, ok := f.get(bucket, name)
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: object doesn't exist", bucket, name)
	}
	return o.content, nil
}

type fakeRecords struct {
	getErr    error
	updateErr error

	docs    map[string]map[string]any
	creates int
	updates []map[string]any
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{docs: make(map[string]map[string]any)}
}

func (f *fakeRecords) Create(_ context.Context, id string, data map[string]any) error {
	if _, ok := f.docs[id]; ok {
		return fmt.Errorf("Create: documents/%s: %w", id, firestore.ErrAlreadyExists)
	}
	f.creates++
	f.docs[id] = data
	return nil
}

func (f *fakeRecords) Update(_ context.Context, id string, data map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("Update: documents/%s: %w", id, firestore.ErrNotFound)
	}
	for k, v := range data {
		doc[k] = v
	}
	f.updates = append(f.updates, data)
	return nil
}

func (f *fakeRecords) Get(_ context.Context, id string) (map[string]any, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("Get: documents/%s: %w", id, firestore.ErrNotFound)
	}
	return doc, nil
}

type fakeClassifier struct {
	result *classify.Result
	err    error

	calls         int
	gotText       string
	gotCategories []classify.Category
}

func (f *fakeClassifier) Classify(_ context.Context, text string, categories []classify.Category) (*classify.Result, error) {
	f.calls++
	f.gotText = text
	f.gotCategories = categories
	return f.result, f.err
}

type fakeLedger struct {
	err  error
	rows []sheets.ReviewRow
}

func (f *fakeLedger) Append(_ context.Context, row sheets.ReviewRow) error {
	f.rows = append(f.rows, row)
	return f.err
}

type fakeExtractor struct {
	result *ocr.Result
	err    error

	calls       int
	gotMimeType string
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, mimeType string) (*ocr.Result, error) {
	f.calls++
	f.gotMimeType = mimeType
	return f.result, f.err
}

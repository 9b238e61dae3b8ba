// Package firestore stores document records in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docpipe/internal/logger"
)

var (
	// ErrAlreadyExists is returned by Create when the document exists.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrNotFound is returned by Get and Update when the document is missing.
	ErrNotFound = errors.New("document not found")
)

// Store reads and writes documents in one collection.
type Store struct {
	client     *firestore.Client
	collection string
	log        zerolog.Logger
}

// NewStore creates a Firestore client for projectID bound to collection.
func NewStore(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*Store, error) {
	const op = "NewStore"

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create firestore client: %w", op, err)
	}

	return &Store{
		client:     client,
		collection: collection,
		log:        logger.WithComponent("firestore"),
	}, nil
}

// Create writes data as a new document id.
func (s *Store) Create(ctx context.Context, id string, data map[string]any) error {
	const op = "Create"

	_, err := s.client.Collection(s.collection).Doc(id).Create(ctx, data)
	if err != nil {
		return translate(op, s.collection, id, err)
	}

	s.log.Info().Str("collection", s.collection).Str("id", id).Msg("Created document")
	return nil
}

// Update merges data into the existing document id.
func (s *Store) Update(ctx context.Context, id string, data map[string]any) error {
	const op = "Update"

	_, err := s.client.Collection(s.collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return translate(op, s.collection, id, err)
	}

	s.log.Info().Str("collection", s.collection).Str("id", id).Msg("Updated document")
	return nil
}

// Get returns the fields of document id.
func (s *Store) Get(ctx context.Context, id string) (map[string]any, error) {
	const op = "Get"

	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(op, s.collection, id, err)
	}
	return snap.Data(), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// translate maps gRPC status codes onto the package sentinels.
func translate(op, collection, id string, err error) error {
	switch status.Code(err) {
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %s/%s: %w", op, collection, id, ErrAlreadyExists)
	case codes.NotFound:
		return fmt.Errorf("%s: %s/%s: %w", op, collection, id, ErrNotFound)
	default:
		return fmt.Errorf("%s: %s/%s: %w", op, collection, id, err)
	}
}

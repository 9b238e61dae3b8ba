// Package pubsub publishes pipeline messages to Cloud Pub/Sub topics.
package pubsub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docpipe/internal/logger"
)

// Publisher publishes messages and waits for the server acknowledgement.
// It is safe for concurrent use.
type Publisher struct {
	client *pubsub.Client
	log    zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPublisher creates a Pub/Sub client for projectID.
func NewPublisher(ctx context.Context, projectID string, opts ...option.ClientOption) (*Publisher, error) {
	const op = "NewPublisher"

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pubsub client: %w", op, err)
	}
	return newPublisher(client), nil
}

func newPublisher(client *pubsub.Client) *Publisher {
	return &Publisher{
		client: client,
		log:    logger.WithComponent("pubsub"),
		topics: make(map[string]*pubsub.Topic),
	}
}

// Publish sends data with attrs to topic and returns the server message id.
// topic is either a topic id or a full "projects/<p>/topics/<t>" name.
func (p *Publisher) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	const op = "Publish"

	t := p.topic(topic)
	id, err := t.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: failed to publish to %s: %w", op, topic, err)
	}

	p.log.Debug().Str("topic", topic).Str("message_id", id).Msg("Published message")
	return id, nil
}

func (p *Publisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[name]; ok {
		return t
	}

	var t *pubsub.Topic
	if project, id, ok := splitTopicName(name); ok {
		t = p.client.TopicInProject(id, project)
	} else {
		t = p.client.Topic(name)
	}
	p.topics[name] = t
	return t
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}

func splitTopicName(name string) (project, id string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 4 || parts[0] != "projects" || parts[2] != "topics" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

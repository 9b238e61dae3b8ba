package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"docpipe/internal/event"
)

const (
	// maxBodyBytes bounds a request body; push payloads are far smaller.
	maxBodyBytes = 10 << 20

	headerCloudEventSource = "ce-source"
	headerSource           = "X-Source"
)

// pushRequest is the body of a Pub/Sub push delivery.
type pushRequest struct {
	Message *struct {
		Data       string            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// envelopeFromRequest builds the Envelope for one delivery:
//
//   - a Pub/Sub push body, including one wrapped in a binary-mode CloudEvent:
//     message.data, sourced from ce-source or else the subscription
//   - any other CloudEvent in binary mode: the body, sourced from ce-source
//   - anything else: the raw body, sourced from the X-Source header
//
// An empty body yields an envelope without payload.
func envelopeFromRequest(r *http.Request) (*event.Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	ceSource := r.Header.Get(headerCloudEventSource)

	var push pushRequest
	if json.Unmarshal(body, &push) == nil && push.Message != nil && (push.Subscription != "" || ceSource != "") {
		env := &event.Envelope{SourceID: push.Subscription}
		if ceSource != "" {
			env.SourceID = ceSource
		}
		if push.Message.Data != "" {
			env.Payload = push.Message.Data
		}
		return env, nil
	}

	if ceSource != "" {
		return &event.Envelope{SourceID: ceSource, Payload: payloadOf(body)}, nil
	}
	return &event.Envelope{SourceID: r.Header.Get(headerSource), Payload: payloadOf(body)}, nil
}

func payloadOf(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	return body
}

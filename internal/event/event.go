// Package event decodes the payloads that trigger each pipeline stage.
//
// A stage receives an Envelope from its trigger (a Pub/Sub push, a storage
// notification, a scheduler job). Parse turns it into a Message whose Data is
// always a JSON object; RequireFields checks that the fields a stage depends on
// are present before any external call is made.
//
// Errors returned from this package are *errs.ValidationError when the payload
// is missing or has the wrong shape and *errs.ParsingError when its content is
// not valid JSON. Callers use errs.IsPermanent to tell them apart from
// transient failures.
package event

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"docpipe/internal/errs"
)

// SourceAttribute is the attribute key carrying the envelope's source.
const SourceAttribute = "source"

var errNullPayload = errors.New("payload is JSON null")

// Envelope is one triggering occurrence delivered to a stage.
//
// Payload is either text (string or []byte, optionally base64-encoded JSON) or
// an already decoded map[string]any.
type Envelope struct {
	SourceID string
	Payload  any
}

// Message is the decoded form of an Envelope.
type Message struct {
	Data       map[string]any    `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Parse decodes env into a Message.
func Parse(env *Envelope) (*Message, error) {
	if env == nil || env.Payload == nil {
		return nil, errs.Validationf("missing data")
	}

	var data map[string]any
	switch p := env.Payload.(type) {
	case map[string]any:
		data = p
	case string:
		decoded, err := decodeText(p)
		if err != nil {
			return nil, err
		}
		data = decoded
	case []byte:
		decoded, err := decodeText(string(p))
		if err != nil {
			return nil, err
		}
		data = decoded
	default:
		return nil, errs.Validationf("invalid payload type: %T", env.Payload)
	}

	msg := &Message{Data: data}
	if env.SourceID != "" {
		msg.Attributes = map[string]string{SourceAttribute: env.SourceID}
	}
	return msg, nil
}

func decodeText(text string) (map[string]any, error) {
	// Payloads arrive base64-encoded from Pub/Sub but as plain JSON from
	// schedulers and local tooling. A failed base64 decode is not an error:
	// the original text is parsed instead, and only a JSON failure is reported.
	if decoded, ok := decodeBase64(text); ok {
		text = decoded
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, errs.NewParsingError("parsing failed", err)
	}
	if data == nil {
		return nil, errs.NewParsingError("parsing failed", errNullPayload)
	}
	return data, nil
}

func decodeBase64(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	b, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// String returns the string value of key, or "" when it is absent or not a
// string.
func (m *Message) String(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m.Data[key].(string); ok {
		return s
	}
	return ""
}

// Decode copies Data into v, a pointer to a struct with json tags. A field of
// the wrong JSON type is reported as a validation failure.
func (m *Message) Decode(v any) error {
	b, err := json.Marshal(m.Data)
	if err != nil {
		return errs.NewParsingError("parsing failed", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return errs.NewValidationError(typeErr.Field, fmt.Sprintf("invalid type for field %s: %s", typeErr.Field, typeErr.Value))
		}
		return errs.NewParsingError("parsing failed", err)
	}
	return nil
}

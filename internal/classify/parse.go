package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docpipe/internal/errs"
)

// Uncategorized is the category a model returns when no candidate applies.
const Uncategorized = "Uncategorized"

const jsonFence = "```json"

// responseSchema is the shape every model answer must have. Types are not
// coerced: a confidence of "0.9" is rejected.
var responseSchema = jsonschema.MustCompileString("classification.json", `{
	"type": "object",
	"required": ["category", "confidence", "reasoning"],
	"properties": {
		"category":   {"type": "string"},
		"confidence": {"type": "number"},
		"reasoning":  {"type": "string"}
	}
}`)

// Category is one candidate target folder.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is the interpreted answer of a classification call.
//
// CategoryName and CategoryFolderID are nil when the document is
// uncategorized or the model named a category that is not a candidate.
type Result struct {
	CategoryName     *string `json:"categoryName"`
	CategoryFolderID *string `json:"categoryFolderId"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
}

// Matched reports whether the result names a candidate category.
func (r *Result) Matched() bool {
	return r != nil && r.CategoryName != nil
}

type modelResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseResponse interprets raw model output against the candidate categories.
//
// The JSON object is taken from a ```json fenced block when one is present,
// otherwise from the whole text; within it the first balanced {...} span is
// used. Confidence is clamped to [0, 1].
//
// A category that matches neither a candidate nor Uncategorized is not an
// error: the result has no category, zero confidence, and reasoning naming the
// unmatched text. The model's own confidence and reasoning are discarded in
// that case.
func ParseResponse(text string, categories []Category) (*Result, error) {
	span, ok := extractObject(fencedBlock(text))
	if !ok {
		return nil, errs.NewParsingError("no JSON object found", nil)
	}

	var raw any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, errs.NewParsingError("invalid JSON in response", err)
	}
	if err := responseSchema.Validate(raw); err != nil {
		return nil, errs.NewParsingError("invalid response structure", err)
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(span), &resp); err != nil {
		return nil, errs.NewParsingError("invalid response structure", err)
	}

	confidence := clamp(resp.Confidence)

	for _, c := range categories {
		if c.Name == resp.Category {
			name, id := c.Name, c.ID
			return &Result{
				CategoryName:     &name,
				CategoryFolderID: &id,
				Confidence:       confidence,
				Reasoning:        resp.Reasoning,
			}, nil
		}
	}

	if resp.Category == Uncategorized {
		return &Result{
			Confidence: confidence,
			Reasoning:  resp.Reasoning,
		}, nil
	}

	return &Result{
		Confidence: 0,
		Reasoning:  fmt.Sprintf("Category %q did not match any known category", resp.Category),
	}, nil
}

// fencedBlock returns the interior of the first ```json block, or text when
// there is none. An unterminated fence yields everything after the marker.
func fencedBlock(text string) string {
	start := strings.Index(text, jsonFence)
	if start < 0 {
		return text
	}
	rest := text[start+len(jsonFence):]
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// extractObject returns the first balanced {...} span of text. Braces inside
// JSON string literals are ignored.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package classify_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/classify"
	"docpipe/internal/errs"
)

var invoices = []classify.Category{{ID: "f1", Name: "Invoices"}, {ID: "f2", Name: "Contracts"}}

func TestParseResponse_Match(t *testing.T) {
	got, err := classify.ParseResponse(`{"category":"Invoices","confidence":1.5,"reasoning":"r"}`, invoices)
	require.NoError(t, err)
	require.True(t, got.Matched())
	assert.Equal(t, "Invoices", *got.CategoryName)
	assert.Equal(t, "f1", *got.CategoryFolderID)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "r", got.Reasoning)
}

func TestParseResponse_Clamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"-0.4", 0},
		{"0", 0},
		{"0.42", 0.42},
		{"1", 1},
		{"7", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := classify.ParseResponse(`{"category":"Contracts","confidence":`+tt.in+`,"reasoning":"r"}`, invoices)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Confidence)
		})
	}
}

func TestParseResponse_Unmatched(t *testing.T) {
	got, err := classify.ParseResponse(`{"category":"Nonsense","confidence":0.9,"reasoning":"r"}`, invoices)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryName)
	assert.Nil(t, got.CategoryFolderID)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Contains(t, got.Reasoning, "Nonsense")
	assert.False(t, got.Matched())
}

func TestParseResponse_CaseSensitive(t *testing.T) {
	got, err := classify.ParseResponse(`{"category":"invoices","confidence":0.9,"reasoning":"r"}`, invoices)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryName)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestParseResponse_UncategorizedSentinel(t *testing.T) {
	got, err := classify.ParseResponse(`{"category":"Uncategorized","confidence":0.7,"reasoning":"nothing fits"}`, invoices)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryName)
	assert.Nil(t, got.CategoryFolderID)
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, "nothing fits", got.Reasoning)
}

func TestParseResponse_Fenced(t *testing.T) {
	plain := `{"category":"Invoices","confidence":0.8,"reasoning":"has an invoice number"}`
	fenced := "Here you go:\n```json\n" + plain + "\n```\nLet me know if you need more."

	want, err := classify.ParseResponse(plain, invoices)
	require.NoError(t, err)
	got, err := classify.ParseResponse(fenced, invoices)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseResponse_ObjectExtraction(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
	}{
		{
			name:     "surrounding prose",
			text:     `Sure! {"category":"Contracts","confidence":0.6,"reasoning":"signed"} Hope this helps.`,
			category: "Contracts",
		},
		{
			name:     "braces inside strings",
			text:     `{"category":"Invoices","confidence":0.6,"reasoning":"mentions {total} and \"}\""}`,
			category: "Invoices",
		},
		{
			name:     "first of several objects",
			text:     `{"category":"Invoices","confidence":0.5,"reasoning":"a"} or maybe {"category":"Contracts","confidence":0.5,"reasoning":"b"}`,
			category: "Invoices",
		},
		{
			name:     "unterminated fence",
			text:     "```json\n{\"category\":\"Contracts\",\"confidence\":0.5,\"reasoning\":\"b\"}",
			category: "Contracts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classify.ParseResponse(tt.text, invoices)
			require.NoError(t, err)
			require.True(t, got.Matched())
			assert.Equal(t, tt.category, *got.CategoryName)
		})
	}
}

func TestParseResponse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		message string
	}{
		{"no object", "I cannot classify this document.", "no JSON object found"},
		{"unbalanced", `{"category":"Invoices"`, "no JSON object found"},
		{"invalid JSON", `{"category": Invoices}`, "invalid JSON in response"},
		{"string confidence", `{"category":"Invoices","confidence":"0.9","reasoning":"r"}`, "invalid response structure"},
		{"numeric category", `{"category":3,"confidence":0.9,"reasoning":"r"}`, "invalid response structure"},
		{"missing reasoning", `{"category":"Invoices","confidence":0.9}`, "invalid response structure"},
		{"null reasoning", `{"category":"Invoices","confidence":0.9,"reasoning":null}`, "invalid response structure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classify.ParseResponse(tt.text, invoices)
			assert.Nil(t, got)
			var perr *errs.ParsingError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.message, perr.Message)
		})
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "hello", classify.TruncateText("hello", 10))
	assert.Equal(t, "hel", classify.TruncateText("hello", 3))
	assert.Equal(t, "", classify.TruncateText("hello", 0))
	assert.Equal(t, "äö", classify.TruncateText("äöü", 2))

	long := strings.Repeat("x", classify.MaxTextLength+50)
	assert.Len(t, classify.TruncateText(long, classify.MaxTextLength), classify.MaxTextLength)
}

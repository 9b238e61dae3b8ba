package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"docpipe/internal/errs"
)

type QuotaError struct{ msg string }

func (e *QuotaError) Error() string { return e.msg }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  errs.Record
	}{
		{
			name:  "validation error",
			input: errs.NewValidationError("fileId", "missing required fields: fileId"),
			want:  errs.Record{Error: "missing required fields: fileId", Context: "ctx", Kind: errs.KindValidation},
		},
		{
			name:  "parsing error keeps cause in message",
			input: errs.NewParsingError("parsing failed", errors.New("unexpected end of JSON input")),
			want:  errs.Record{Error: "parsing failed: unexpected end of JSON input", Context: "ctx", Kind: errs.KindParsing},
		},
		{
			name:  "wrapped validation error",
			input: fmt.Errorf("preparation: %w", errs.Validationf("missing data")),
			want:  errs.Record{Error: "missing data", Context: "ctx", Kind: errs.KindValidation},
		},
		{
			name:  "generic error uses type name",
			input: &QuotaError{msg: "boom"},
			want:  errs.Record{Error: "boom", Context: "ctx", Kind: "QuotaError"},
		},
		{
			name:  "errors.New value",
			input: errors.New("upstream unavailable"),
			want:  errs.Record{Error: "upstream unavailable", Context: "ctx", Kind: errs.KindGeneric},
		},
		{
			name:  "fmt.Errorf wrapped value",
			input: fmt.Errorf("extraction: read object: %w", errors.New("timeout")),
			want:  errs.Record{Error: "extraction: read object: timeout", Context: "ctx", Kind: errs.KindGeneric},
		},
		{
			name:  "plain value",
			input: 42,
			want:  errs.Record{Error: "Unknown error occurred", Context: "ctx", Kind: errs.KindUnknown},
		},
		{
			name:  "nil",
			input: nil,
			want:  errs.Record{Error: "Unknown error occurred", Context: "ctx", Kind: errs.KindUnknown},
		},
		{
			name:  "string panic value",
			input: "something broke",
			want:  errs.Record{Error: "Unknown error occurred", Context: "ctx", Kind: errs.KindUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.Normalize(tt.input, "ctx"))
		})
	}
}

func TestNormalizeTypedNil(t *testing.T) {
	var verr *errs.ValidationError
	var err error = verr

	assert.NotPanics(t, func() {
		rec := errs.Normalize(err, "ctx")
		assert.Equal(t, errs.KindUnknown, rec.Kind)
		assert.Equal(t, errs.UnknownMessage, rec.Error)
	})
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, errs.IsPermanent(errs.Validationf("x")))
	assert.True(t, errs.IsPermanent(fmt.Errorf("stage: %w", errs.NewParsingError("bad", nil))))
	assert.False(t, errs.IsPermanent(errors.New("network down")))
	assert.False(t, errs.IsPermanent(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, errs.KindValidation, errs.KindOf(errs.Validationf("x")))
	assert.Equal(t, errs.KindParsing, errs.KindOf(errs.NewParsingError("x", nil)))
	assert.Equal(t, errs.Kind(""), errs.KindOf(errors.New("x")))
}

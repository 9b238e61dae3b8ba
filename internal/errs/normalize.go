package errs

import (
	"errors"
	"go/token"
	"reflect"
)

// UnknownMessage is reported for failures that are not error values.
const UnknownMessage = "Unknown error occurred"

// Record is the normalized form of a failure.
type Record struct {
	Error   string `json:"error"`
	Context string `json:"context"`
	Kind    Kind   `json:"kind"`
}

// Normalize maps any failure to a Record. v is usually an error but may be any
// value recovered from a panic. Normalize never panics.
func Normalize(v any, context string) (rec Record) {
	rec = Record{
		Error:   UnknownMessage,
		Context: context,
		Kind:    KindUnknown,
	}

	// Typed-nil errors and misbehaving Error methods must not escape.
	defer func() {
		if recover() != nil {
			rec = Record{Error: UnknownMessage, Context: context, Kind: KindUnknown}
		}
	}()

	err, ok := v.(error)
	if !ok || err == nil {
		return rec
	}

	var k Kinded
	if errors.As(err, &k) {
		rec.Error = k.Error()
		rec.Kind = k.Kind()
		return rec
	}

	rec.Error = err.Error()
	rec.Kind = Kind(typeName(err))
	return rec
}

// typeName is the exported name of err's type, or KindGeneric for unnamed
// and unexported types.
func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if !token.IsExported(t.Name()) {
		return string(KindGeneric)
	}
	return t.Name()
}

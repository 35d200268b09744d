package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrCodeInvalidKind, "unknown dataset %q", "authors")
	if plain.Code != ErrCodeInvalidKind || plain.Message != `unknown dataset "authors"` {
		t.Errorf("New() = %+v", plain)
	}
	if got, want := plain.Error(), `INVALID_KIND: unknown dataset "authors"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(ErrCodeInvalidResponse, io.ErrUnexpectedEOF, "decode page %d of %s", 3, "fiksi")
	if got, want := wrapped.Error(), "INVALID_RESPONSE: decode page 3 of fiksi: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) || errors.Unwrap(wrapped) != io.ErrUnexpectedEOF {
		t.Error("wrapped cause is not reachable through Unwrap")
	}
}

func TestCodeLookup(t *testing.T) {
	publish := New(ErrCodePublishFailed, "upload books.parquet")
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"direct", publish, ErrCodePublishFailed},
		{"fmt wrapped", fmt.Errorf("books: %w", publish), ErrCodePublishFailed},
		{"outermost code wins", Wrap(ErrCodeNetwork, New(ErrCodeNotFound, "inner"), "outer"), ErrCodeNetwork},
		{"joined", errors.Join(io.EOF, New(ErrCodeInvalidConfig, "bad page size")), ErrCodeInvalidConfig},
		{"plain", io.EOF, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q", got, tt.code)
			}
			if tt.code != "" && !Is(tt.err, tt.code) {
				t.Errorf("Is(%q) = false", tt.code)
			}
			if Is(tt.err, ErrCodeUnauthorized) {
				t.Error("Is(UNAUTHORIZED) = true for an unrelated error")
			}
		})
	}
}

func TestNilError(t *testing.T) {
	if Is(nil, ErrCodeInternal) || GetCode(nil) != "" {
		t.Error("a nil error carries no code")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(fmt.Errorf("load: %w", New(ErrCodeNotFound, "book %q not found", "bumi"))); got != `book "bumi" not found` {
		t.Errorf("UserMessage(coded) = %q", got)
	}
	if got := UserMessage(io.EOF); got != "EOF" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

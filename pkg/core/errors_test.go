package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrNoResultProduced,
		Message: "completed without output",
	}

	expected := "no_result_produced: completed without output"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := NewUpstreamRejectedError("bad key", "INVALID_ARGUMENT", nil)

	expected := "upstream_rejected: bad key (code: INVALID_ARGUMENT)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("stream chat: %w", NewTransportError("read fragment", cause))

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
	if !errors.Is(err, &Error{Type: ErrTransport}) {
		t.Fatal("expected errors.Is to match on type")
	}
	if errors.Is(err, &Error{Type: ErrPermissionDenied}) {
		t.Fatal("did not expect a permission match")
	}
	if !IsType(err, ErrTransport) {
		t.Fatalf("TypeOf = %q, want %q", TypeOf(err), ErrTransport)
	}
	if TypeOf(cause) != "" {
		t.Fatalf("TypeOf(plain) = %q, want empty", TypeOf(cause))
	}
}

func TestLooksLikeInvalidCredential(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"API key not valid. Please pass a valid API key.", true},
		{"Error 403, Message: Permission denied on resource", true},
		{"Requested entity was not found.", true},
		{"quota exceeded", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeInvalidCredential(tt.msg); got != tt.want {
			t.Errorf("LooksLikeInvalidCredential(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	rejected := NewUpstreamRejectedError("API key not valid", "400", nil)
	if got := UserMessage(rejected); !strings.Contains(got, "API key was rejected") {
		t.Errorf("UserMessage(rejected) = %q", got)
	}
	if got := UserMessage(NewTransportError("dial", nil)); !strings.Contains(got, "connection error") {
		t.Errorf("UserMessage(transport) = %q", got)
	}
	if got := UserMessage(errors.New("boom")); got == "" {
		t.Error("UserMessage(plain) should not be empty")
	}
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
}

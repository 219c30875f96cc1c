package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseUpstreamErrorEnvelope(t *testing.T) {
	body := []byte(`{"error":{"type":"overloaded_error","message":"Overloaded"}}`)
	err := ParseUpstreamError(529, body)

	if err.Kind != KindUpstreamError {
		t.Errorf("Kind = %s, want upstream_error", err.Kind)
	}
	if err.StatusCode != 529 {
		t.Errorf("StatusCode = %d, want 529", err.StatusCode)
	}
	if err.UpstreamType != "overloaded_error" {
		t.Errorf("UpstreamType = %q", err.UpstreamType)
	}
	if err.Message != "Overloaded" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestParseUpstreamErrorNonEnvelope(t *testing.T) {
	err := ParseUpstreamError(502, []byte(`<html>bad gateway</html>`))
	if err.Message != "<html>bad gateway</html>" {
		t.Errorf("Message = %q, want raw body", err.Message)
	}

	long := strings.Repeat("x", 2048)
	err = ParseUpstreamError(500, []byte(long))
	if len(err.Message) > maxUpstreamBodyLog+3 {
		t.Errorf("Message length = %d, want truncated", len(err.Message))
	}
	if !strings.HasSuffix(err.Message, "...") {
		t.Error("truncated message missing ellipsis")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewInvalidRequest("bad")); got != KindInvalidRequest {
		t.Errorf("KindOf(invalid request) = %s", got)
	}
	if got := KindOf(fmt.Errorf("wrapped: %w", NewUnknownModel("opus"))); got != KindUnknownModel {
		t.Errorf("KindOf(wrapped unknown model) = %s", got)
	}
	if got := KindOf(fmt.Errorf("plain")); got != KindUpstreamError {
		t.Errorf("KindOf(plain error) = %s, want upstream_error", got)
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewInvalidRequest("bad"), true},
		{NewUnknownModel("opus"), true},
		{NewUpstreamTimeout("deadline"), false},
		{ParseUpstreamError(500, nil), false},
		{NewMissingAPIKey(), false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := IsClientError(tt.err); got != tt.want {
			t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("abcdefgh", 4); got != "abcd..." {
		t.Errorf("Truncate = %q, want abcd...", got)
	}
}

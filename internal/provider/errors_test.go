package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xonecas/spire-advisor/internal/constants"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        string
		tls         bool
		unreachable bool
	}{
		{"cancelled", context.Canceled, "request_failed:cancelled", false, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), "request_failed:timeout", false, true},
		{"openai status", &openai.APIError{HTTPStatusCode: 503, Message: "down"}, "http_error:503", false, false},
		{"openai request", &openai.RequestError{HTTPStatusCode: 404, Err: errors.New("nf")}, "http_error:404", false, false},
		{"unknown authority", fmt.Errorf("post: %w", x509.UnknownAuthorityError{}), "ssl_handshake", true, true},
		{"hostname", x509.HostnameError{Host: "example.com", Certificate: &x509.Certificate{}}, "ssl_handshake", true, true},
		{"alert", tls.AlertError(40), "ssl_handshake", true, true},
		{"record header", tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, "ssl_generic", true, true},
		{"dial timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}, "connect_timeout", false, true},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, "request_failed:network", false, true},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}}, "request_failed:timeout", false, true},
		{"other", errors.New("boom"), "request_failed:io", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := Classify("layer", tt.err)
			if te.Code() != tt.code {
				t.Errorf("Code() = %s, want %s", te.Code(), tt.code)
			}
			if te.TLSClass() != tt.tls {
				t.Errorf("TLSClass() = %v, want %v", te.TLSClass(), tt.tls)
			}
			if te.Unreachable() != tt.unreachable {
				t.Errorf("Unreachable() = %v, want %v", te.Unreachable(), tt.unreachable)
			}
			if te.Layer != "layer" {
				t.Errorf("Layer = %s, want layer", te.Layer)
			}
		})
	}
}

func TestClassifyPassesThroughTransportError(t *testing.T) {
	orig := &TransportError{Kind: KindSubprocessExit, Status: 6}
	te := Classify("curl", fmt.Errorf("wrapped: %w", orig))
	if te != orig {
		t.Fatal("expected the original TransportError")
	}
	if te.Code() != "transport_error:6" {
		t.Errorf("expected transport_error:6, got %s", te.Code())
	}
	if Classify("x", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "https://api.openai.com/v1"},
		{"  ", "https://api.openai.com/v1"},
		{"https://example.com", "https://example.com/v1"},
		{"https://example.com/", "https://example.com/v1"},
		{"https://example.com/v1/", "https://example.com/v1"},
		{"https://example.com/v1", "https://example.com/v1"},
		{"http://localhost:8080/api", "http://localhost:8080/api/v1"},
	}
	for _, tt := range tests {
		if got := NormalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRawKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", constants.RawResponseMaxChars-1) + "日本"

	got := truncateRaw(s)
	if !utf8.ValidString(got) {
		t.Fatalf("truncateRaw produced invalid UTF-8 at the tail: %q", got[len(got)-4:])
	}
	if len(got) != constants.RawResponseMaxChars-1 {
		t.Errorf("expected cut before the split rune, got %d bytes", len(got))
	}
}

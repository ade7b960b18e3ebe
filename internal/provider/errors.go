package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindSSLHandshake   ErrorKind = "ssl_handshake"
	KindSSLGeneric     ErrorKind = "ssl_generic"
	KindConnectTimeout ErrorKind = "connect_timeout"
	KindHTTPStatus     ErrorKind = "http_error"
	KindSubprocessExit ErrorKind = "transport_error"
	KindRequestFailed  ErrorKind = "request_failed"
)

// TransportError is the classified failure of one transport layer.
type TransportError struct {
	Kind ErrorKind
	// Status is the HTTP status for KindHTTPStatus and the exit code for
	// KindSubprocessExit.
	Status int
	// Reason qualifies KindRequestFailed (e.g. "timeout", "missing_choices").
	Reason string
	Layer  string
	Raw    string
	Err    error
}

func (e *TransportError) Error() string {
	msg := e.Code()
	if e.Layer != "" {
		msg = e.Layer + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Code is the stable tag shown to the user.
func (e *TransportError) Code() string {
	switch e.Kind {
	case KindHTTPStatus, KindSubprocessExit:
		return string(e.Kind) + ":" + strconv.Itoa(e.Status)
	case KindRequestFailed:
		reason := e.Reason
		if reason == "" {
			reason = "unknown"
		}
		return string(e.Kind) + ":" + reason
	default:
		return string(e.Kind)
	}
}

// TLSClass reports whether the failure happened while negotiating TLS.
func (e *TransportError) TLSClass() bool {
	return e.Kind == KindSSLHandshake || e.Kind == KindSSLGeneric
}

// Unreachable reports whether the layer never got an HTTP exchange done:
// TLS failures, connect timeouts and network errors. HTTP statuses and
// cancellations mean the server was reached or the caller gave up.
func (e *TransportError) Unreachable() bool {
	switch e.Kind {
	case KindSSLHandshake, KindSSLGeneric, KindConnectTimeout:
		return true
	case KindRequestFailed:
		return e.Reason == "network" || e.Reason == "timeout"
	}
	return false
}

// Cancelled reports whether the caller's context ended the request.
func (e *TransportError) Cancelled() bool {
	return e.Kind == KindRequestFailed && e.Reason == "cancelled"
}

// Classify turns any error returned by a transport into a TransportError.
func Classify(layer string, err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.Layer == "" {
			te.Layer = layer
		}
		return te
	}
	out := &TransportError{Layer: layer, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var gErr genai.APIError
	var gErrPtr *genai.APIError
	switch {
	case errors.Is(err, context.Canceled):
		out.Kind, out.Reason = KindRequestFailed, "cancelled"
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0:
		out.Kind, out.Status = KindHTTPStatus, apiErr.HTTPStatusCode
		out.Raw = truncateRaw(apiErr.Message)
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0:
		out.Kind, out.Status = KindHTTPStatus, reqErr.HTTPStatusCode
		out.Raw = truncateRaw(string(reqErr.Body))
	case errors.As(err, &gErr):
		out.Kind, out.Status = KindHTTPStatus, gErr.Code
		out.Raw = truncateRaw(gErr.Message)
	case errors.As(err, &gErrPtr):
		out.Kind, out.Status = KindHTTPStatus, gErrPtr.Code
		out.Raw = truncateRaw(gErrPtr.Message)
	default:
		out.Kind, out.Reason = classifyNetwork(err)
	}
	return out
}

func classifyNetwork(err error) (ErrorKind, string) {
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var alertErr tls.AlertError
	var recordErr tls.RecordHeaderError
	switch {
	case errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &invalidErr), errors.As(err, &alertErr):
		return KindSSLHandshake, ""
	case errors.As(err, &recordErr):
		return KindSSLGeneric, ""
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "handshake"), strings.Contains(msg, "x509:"):
		return KindSSLHandshake, ""
	case strings.Contains(msg, "tls:"):
		return KindSSLGeneric, ""
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return KindConnectTimeout, ""
		}
		return KindRequestFailed, "network"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindRequestFailed, "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindRequestFailed, "timeout"
		}
		return KindRequestFailed, "network"
	}
	return KindRequestFailed, "io"
}

func truncateRaw(s string) string {
	if len(s) <= constants.RawResponseMaxChars {
		return s
	}
	n := constants.RawResponseMaxChars
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func httpStatusError(layer string, status int, body []byte) *TransportError {
	return &TransportError{
		Kind:   KindHTTPStatus,
		Status: status,
		Layer:  layer,
		Raw:    truncateRaw(string(body)),
		Err:    fmt.Errorf("chat completion status %d", status),
	}
}

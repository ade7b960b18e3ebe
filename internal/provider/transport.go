package provider

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// newHTTPClient builds a client whose timeout covers both the connect and
// read phases. relaxed disables certificate and hostname verification.
func newHTTPClient(timeout time.Duration, relaxed bool) *http.Client {
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	if relaxed {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // relaxed layer, only after a strict handshake failed
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// NormalizeBaseURL fills in the default endpoint, strips trailing slashes
// and makes sure the path ends in /v1.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return constants.DefaultOpenAIBaseURL
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const okBody = `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`

// fakeCurl writes a shell script standing in for curl. Each invocation
// appends its arguments as one line to the returned log file, with newlines
// inside arguments (the -w format has one) folded to spaces; body is the
// script logic run after logging, with $n holding the 1-based call number.
func fakeCurl(t *testing.T, body string) (path, argsLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake curl needs a POSIX shell")
	}
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args")
	script := `#!/bin/sh
dir="` + dir + `"
n=$(cat "$dir/count" 2>/dev/null || echo 0)
n=$((n+1))
echo "$n" > "$dir/count"
printf '%s' "$*" | tr '\n' ' ' >> "$dir/args"
echo >> "$dir/args"
cat > "$dir/stdin"
` + body + "\n"
	path = filepath.Join(dir, "curl")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake curl: %v", err)
	}
	return path, argsLog
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newTestCurl(path string) *CurlProvider {
	return NewCurl("test/curl", CurlOptions{
		Path:     path,
		Endpoint: "https://example.com",
		APIKey:   "secret",
		Model:    "m",
		Timeout:  time.Second,
	})
}

func TestCurlSuccess(t *testing.T) {
	path, argsLog := fakeCurl(t, `printf '%s\n200' '`+okBody+`'`)

	text, err := newTestCurl(path).Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected ok, got %q", text)
	}

	args := readArgs(t, argsLog)
	if len(args) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(args))
	}
	for _, want := range []string{"--max-time 1", "--connect-timeout 1", "Authorization: Bearer secret", "--data-binary @-", "https://example.com/v1/chat/completions"} {
		if !strings.Contains(args[0], want) {
			t.Errorf("expected args to contain %q, got %s", want, args[0])
		}
	}

	stdin, err := os.ReadFile(filepath.Join(filepath.Dir(argsLog), "stdin"))
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if !strings.Contains(string(stdin), `"model":"m"`) {
		t.Errorf("expected request body on stdin, got %s", stdin)
	}
}

func TestCurlTimeoutRetriesWithLongerTimeout(t *testing.T) {
	path, argsLog := fakeCurl(t, `if [ "$n" -eq 1 ]; then exit 28; fi
printf '%s\n200' '`+okBody+`'`)

	text, err := newTestCurl(path).Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected ok, got %q", text)
	}

	args := readArgs(t, argsLog)
	if len(args) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(args))
	}
	if !strings.Contains(args[1], "--max-time 20") {
		t.Errorf("expected retry at 20s, got %s", args[1])
	}
}

func TestCurlTimeoutTwiceFails(t *testing.T) {
	path, argsLog := fakeCurl(t, `exit 28`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "transport_error:28" {
		t.Fatalf("expected transport_error:28, got %v", err)
	}
	if got := len(readArgs(t, argsLog)); got != 2 {
		t.Errorf("expected exactly one retry, got %d invocations", got)
	}
}

func TestCurlSSLConnectTriesFlagsInOrder(t *testing.T) {
	path, argsLog := fakeCurl(t, `case "$*" in
*--tlsv1.2*) printf '%s\n200' '`+okBody+`' ;;
*) exit 35 ;;
esac`)

	text, err := newTestCurl(path).Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected ok, got %q", text)
	}

	args := readArgs(t, argsLog)
	if len(args) != 3 {
		t.Fatalf("expected 3 invocations, got %d: %v", len(args), args)
	}
	if strings.Contains(args[0], "--ssl-no-revoke") {
		t.Error("first attempt must not carry TLS flags")
	}
	if !strings.Contains(args[1], "--ssl-no-revoke") {
		t.Errorf("expected --ssl-no-revoke second, got %s", args[1])
	}
	if !strings.Contains(args[2], "--tlsv1.2") {
		t.Errorf("expected --tlsv1.2 third, got %s", args[2])
	}
}

func TestCurlSSLConnectAllFlagsFail(t *testing.T) {
	path, argsLog := fakeCurl(t, `exit 35`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "transport_error:35" {
		t.Fatalf("expected transport_error:35, got %v", err)
	}
	if got := len(readArgs(t, argsLog)); got != 4 {
		t.Errorf("expected 4 invocations, got %d", got)
	}
}

func TestCurlSSLFlagStopsAfterTimeoutRetry(t *testing.T) {
	path, argsLog := fakeCurl(t, `case "$*" in
*--ssl-no-revoke*) exit 28 ;;
*) exit 35 ;;
esac`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "transport_error:28" {
		t.Fatalf("expected transport_error:28, got %v", err)
	}
	args := readArgs(t, argsLog)
	if len(args) != 3 {
		t.Fatalf("expected plain, flagged and long retry invocations, got %d: %v", len(args), args)
	}
	for _, a := range args {
		if strings.Contains(a, "--tlsv1.2") || strings.Contains(a, "--tlsv1.3") {
			t.Errorf("later TLS flags must not run after a timeout, got %s", a)
		}
	}
	if !strings.Contains(args[2], "--max-time 20") {
		t.Errorf("expected long retry timeout, got %s", args[2])
	}
}

func TestCurlSSLFlagStopsOnHTTPStatus(t *testing.T) {
	path, argsLog := fakeCurl(t, `case "$*" in
*--ssl-no-revoke*) printf '%s\n503' 'unavailable' ;;
*) exit 35 ;;
esac`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "http_error:503" {
		t.Fatalf("expected http_error:503, got %v", err)
	}
	if got := len(readArgs(t, argsLog)); got != 2 {
		t.Errorf("expected 2 invocations, got %d", got)
	}
}

func TestCurlHTTPStatus(t *testing.T) {
	path, _ := fakeCurl(t, `printf '%s\n502' 'bad gateway'`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "http_error:502" {
		t.Fatalf("expected http_error:502, got %v", err)
	}
	if te.Raw != "bad gateway" {
		t.Errorf("expected raw body, got %q", te.Raw)
	}
}

func TestCurlOtherExit(t *testing.T) {
	path, _ := fakeCurl(t, `echo "could not resolve host" >&2; exit 6`)

	_, err := newTestCurl(path).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "transport_error:6" {
		t.Fatalf("expected transport_error:6, got %v", err)
	}
	if !strings.Contains(te.Raw, "could not resolve host") {
		t.Errorf("expected stderr in raw, got %q", te.Raw)
	}
}

func TestCurlMissingBinary(t *testing.T) {
	p := newTestCurl(filepath.Join(t.TempDir(), "no-such-curl"))

	_, err := p.Chat(context.Background(), nil)
	if !errors.Is(err, ErrCurlUnavailable) {
		t.Fatalf("expected ErrCurlUnavailable, got %v", err)
	}
}

func TestSplitStatus(t *testing.T) {
	body, status, ok := splitStatus([]byte("{\"a\":1}\n200\n"))
	if !ok || status != 200 || string(body) != `{"a":1}` {
		t.Errorf("unexpected split: %q %d %v", body, status, ok)
	}
	if _, _, ok := splitStatus([]byte("{}\nnope")); ok {
		t.Error("expected failure for non-numeric status")
	}
}

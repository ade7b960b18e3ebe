package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// ErrCurlUnavailable is returned when the curl binary cannot be started.
var ErrCurlUnavailable = errors.New("curl not available")

// curlTLSFlags are tried in order after a handshake failure.
var curlTLSFlags = []string{"--ssl-no-revoke", "--tlsv1.2", "--tlsv1.3"}

// statusTrailer makes curl append the HTTP status on its own line.
const statusTrailer = "\n%{http_code}"

// CurlOptions configure the subprocess layer.
type CurlOptions struct {
	Path        string
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	ExtraArgs   []string
}

// CurlProvider posts the chat completion through an external curl process.
// It is the last resort when the Go TLS stack cannot negotiate with the
// endpoint at all.
type CurlProvider struct {
	name        string
	path        string
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	extraArgs   []string
}

// NewCurl creates a curl-backed provider.
func NewCurl(name string, opts CurlOptions) *CurlProvider {
	path := opts.Path
	if path == "" {
		path = "curl"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	return &CurlProvider{
		name:        name,
		path:        path,
		url:         NormalizeBaseURL(opts.Endpoint) + "/chat/completions",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     timeout,
		extraArgs:   opts.ExtraArgs,
	}
}

// Name returns the provider identifier.
func (p *CurlProvider) Name() string {
	return p.name
}

// Chat runs curl with the normal timeout, retrying once at the long timeout
// on exit 28, and walking curlTLSFlags on exit 35. The walk stops at the
// first outcome that is not another SSL connect error.
func (p *CurlProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest(p.model, p.temperature, p.maxTokens, messages))
	if err != nil {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "encode", Layer: p.name, Err: err}
	}

	secs := int(p.timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	longSecs := 2 * secs
	if longSecs < constants.CurlMinRetryTimeout {
		longSecs = constants.CurlMinRetryTimeout
	}

	out, err := p.runWithRetry(ctx, body, secs, longSecs, nil)
	if exitCode(err) == constants.CurlExitSSLConnect {
		for _, flag := range curlTLSFlags {
			log.Debug().Str("flag", flag).Msg("curl: retrying after SSL connect error")
			out, err = p.runWithRetry(ctx, body, secs, longSecs, []string{flag})
			if exitCode(err) != constants.CurlExitSSLConnect {
				break
			}
		}
	}
	if err != nil {
		return "", err
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "bad_json", Layer: p.name, Raw: truncateRaw(string(out)), Err: err}
	}
	return firstChoice(p.name, resp)
}

func (p *CurlProvider) runWithRetry(ctx context.Context, body []byte, secs, longSecs int, flags []string) ([]byte, error) {
	out, err := p.run(ctx, body, secs, flags)
	if exitCode(err) == constants.CurlExitTimeout {
		log.Debug().Int("timeout_sec", longSecs).Msg("curl: timed out, retrying with longer timeout")
		out, err = p.run(ctx, body, longSecs, flags)
	}
	return out, err
}

// run executes curl once and returns the response body of a 2xx reply.
func (p *CurlProvider) run(ctx context.Context, body []byte, secs int, flags []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(p.name, err)
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+constants.CurlKillGrace)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.path, p.args(secs, flags)...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, exec.ErrDot):
			return nil, &TransportError{Kind: KindRequestFailed, Reason: "curl_unavailable", Layer: p.name, Err: ErrCurlUnavailable}
		case ctx.Err() != nil:
			return nil, Classify(p.name, ctx.Err())
		case runCtx.Err() != nil:
			return nil, &TransportError{Kind: KindRequestFailed, Reason: "timeout", Layer: p.name, Err: runCtx.Err()}
		case errors.As(err, &exitErr):
			return nil, &TransportError{
				Kind:   KindSubprocessExit,
				Status: exitErr.ExitCode(),
				Layer:  p.name,
				Raw:    truncateRaw(strings.TrimSpace(stderr.String())),
				Err:    fmt.Errorf("curl_error:%d", exitErr.ExitCode()),
			}
		default:
			return nil, &TransportError{Kind: KindRequestFailed, Reason: "curl_unavailable", Layer: p.name, Err: fmt.Errorf("%w: %v", ErrCurlUnavailable, err)}
		}
	}

	payload, status, ok := splitStatus(stdout.Bytes())
	if !ok {
		return nil, &TransportError{Kind: KindRequestFailed, Reason: "bad_status", Layer: p.name, Raw: truncateRaw(stdout.String())}
	}
	if status < 200 || status >= 300 {
		return nil, httpStatusError(p.name, status, payload)
	}
	return payload, nil
}

func (p *CurlProvider) args(secs int, flags []string) []string {
	timeout := strconv.Itoa(secs)
	args := []string{
		"-sS", "--http1.1", "-X", "POST",
		"--connect-timeout", timeout,
		"--max-time", timeout,
		"-H", "Content-Type: application/json",
	}
	if p.apiKey != "" {
		args = append(args, "-H", "Authorization: Bearer "+p.apiKey)
	}
	args = append(args, flags...)
	args = append(args, p.extraArgs...)
	args = append(args, "-w", statusTrailer, "--data-binary", "@-", p.url)
	return args
}

// splitStatus separates the body from the status line written by -w.
func splitStatus(out []byte) ([]byte, int, bool) {
	out = bytes.TrimRight(out, "\r\n")
	idx := bytes.LastIndexByte(out, '\n')
	if idx < 0 {
		status, err := strconv.Atoi(string(out))
		return nil, status, err == nil
	}
	status, err := strconv.Atoi(strings.TrimSpace(string(out[idx+1:])))
	if err != nil {
		return nil, 0, false
	}
	return out[:idx], status, true
}

func exitCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) && te.Kind == KindSubprocessExit {
		return te.Status
	}
	return -1
}

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChainRelaxedTLSRecoversHandshake(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "advice")
	}))
	defer server.Close()

	opts := OpenAIOptions{Endpoint: server.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second}
	strict := NewOpenAI("tls/https", opts)
	opts.Relaxed = true
	relaxed := NewOpenAI("tls/relaxed", opts)
	curl := NewMock("tls/curl", "unused")

	chain := NewChain("tls", ChainOptions{Primary: strict, Relaxed: relaxed, Subprocess: curl})
	text, err := chain.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("expected relaxed layer to succeed, got %v", err)
	}
	if text != "advice" {
		t.Errorf("expected advice, got %q", text)
	}
	if curl.Calls() != 0 {
		t.Error("curl layer must not run after relaxed success")
	}
}

func TestChainStrictHandshakeIsClassified(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "advice")
	}))
	defer server.Close()

	strict := NewOpenAI("tls/https", OpenAIOptions{Endpoint: server.URL, Model: "m", Timeout: 5 * time.Second})
	_, err := NewChain("tls", ChainOptions{Primary: strict}).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.Code() != "ssl_handshake" {
		t.Errorf("expected ssl_handshake, got %s", te.Code())
	}
}

func TestChainReportsLastLayerError(t *testing.T) {
	primary := NewMock("p/https", "").WithChatError(&TransportError{Kind: KindSSLHandshake})
	relaxed := NewMock("p/relaxed", "").WithChatError(&TransportError{Kind: KindSSLGeneric})
	curl := NewMock("p/curl", "").WithChatError(&TransportError{Kind: KindSubprocessExit, Status: 35})

	_, err := NewChain("p", ChainOptions{Primary: primary, Relaxed: relaxed, Subprocess: curl}).
		Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Code() != "transport_error:35" {
		t.Errorf("expected last layer code transport_error:35, got %s", te.Code())
	}
	if te.Layer != "p/curl" {
		t.Errorf("expected layer p/curl, got %s", te.Layer)
	}
	for _, m := range []*MockProvider{primary, relaxed, curl} {
		if m.Calls() != 1 {
			t.Errorf("%s: expected 1 call, got %d", m.Name(), m.Calls())
		}
	}
}

func TestChainHandshakeFallsToCurlWithoutRelaxedLayer(t *testing.T) {
	primary := NewMock("p/https", "").WithChatError(&TransportError{Kind: KindSSLHandshake})
	curl := NewMock("p/curl", "advice")

	text, err := NewChain("p", ChainOptions{Primary: primary, Subprocess: curl}).
		Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected curl layer to succeed, got %v", err)
	}
	if text != "advice" {
		t.Errorf("expected advice, got %q", text)
	}
	if curl.Calls() != 1 {
		t.Errorf("expected 1 curl call, got %d", curl.Calls())
	}
}

func TestChainNonTLSFailureSkipsFallback(t *testing.T) {
	primary := NewMock("p/https", "").WithChatError(&TransportError{Kind: KindHTTPStatus, Status: 500})
	relaxed := NewMock("p/relaxed", "ok")

	_, err := NewChain("p", ChainOptions{Primary: primary, Relaxed: relaxed}).Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "http_error:500" {
		t.Fatalf("expected http_error:500, got %v", err)
	}
	if relaxed.Calls() != 0 {
		t.Error("relaxed layer must only run after a TLS failure")
	}
}

func TestChainReachedServerSkipsCurl(t *testing.T) {
	primary := NewMock("p/https", "").WithChatError(&TransportError{Kind: KindSSLHandshake})
	relaxed := NewMock("p/relaxed", "").WithChatError(&TransportError{Kind: KindHTTPStatus, Status: 401})
	curl := NewMock("p/curl", "ok")

	_, err := NewChain("p", ChainOptions{Primary: primary, Relaxed: relaxed, Subprocess: curl}).
		Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "http_error:401" {
		t.Fatalf("expected http_error:401, got %v", err)
	}
	if curl.Calls() != 0 {
		t.Error("curl must not run once the server answered")
	}
}

func TestChainCurlUnavailableKeepsRelaxedError(t *testing.T) {
	primary := NewMock("p/https", "").WithChatError(&TransportError{Kind: KindSSLHandshake})
	relaxed := NewMock("p/relaxed", "").WithChatError(&TransportError{Kind: KindSSLGeneric})
	curl := NewMock("p/curl", "").WithChatError(&TransportError{Kind: KindRequestFailed, Reason: "curl_unavailable", Err: ErrCurlUnavailable})

	_, err := NewChain("p", ChainOptions{Primary: primary, Relaxed: relaxed, Subprocess: curl}).
		Chat(context.Background(), nil)

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "ssl_generic" {
		t.Fatalf("expected relaxed layer ssl_generic, got %v", err)
	}
}

func TestChainCancelled(t *testing.T) {
	primary := NewMock("p/https", "").WithDelay(-1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain("p", ChainOptions{Primary: primary}).Chat(ctx, nil)

	var te *TransportError
	if !errors.As(err, &te) || !te.Cancelled() {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

package provider

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a test provider that returns predefined responses.
type MockProvider struct {
	name     string
	response string
	chatErr  error
	delay    time.Duration

	mu       sync.Mutex
	calls    int
	messages [][]Message
}

// NewMock creates a new mock provider.
func NewMock(name, response string) *MockProvider {
	return &MockProvider{
		name:     name,
		response: response,
	}
}

// WithChatError sets an error to return from Chat.
func (p *MockProvider) WithChatError(err error) *MockProvider {
	p.chatErr = err
	return p
}

// WithDelay makes Chat wait before answering. A negative delay blocks until
// the context is done.
func (p *MockProvider) WithDelay(d time.Duration) *MockProvider {
	p.delay = d
	return p
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string {
	return p.name
}

// Chat returns the predefined response or error.
func (p *MockProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	p.mu.Lock()
	p.calls++
	p.messages = append(p.messages, messages)
	p.mu.Unlock()

	switch {
	case p.delay < 0:
		<-ctx.Done()
		return "", Classify(p.name, ctx.Err())
	case p.delay > 0:
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", Classify(p.name, ctx.Err())
		case <-timer.C:
		}
	}

	if p.chatErr != nil {
		return "", p.chatErr
	}
	return p.response, nil
}

// Calls returns how many times Chat was invoked.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastMessages returns the messages of the most recent call.
func (p *MockProvider) LastMessages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[len(p.messages)-1]
}

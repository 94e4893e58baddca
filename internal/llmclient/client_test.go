package llmclient

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
)

type fakeStream struct {
	chunks []Chunk
	pos    int
}

func (s *fakeStream) Recv() (Chunk, error) {
	if s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeProvider struct {
	calls     int
	err       error
	text      string
	gotParams bool
}

func (p *fakeProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &fakeStream{chunks: []Chunk{{Content: p.text}}}, nil
}

func (p *fakeProvider) completeWithParams(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Stream, error) {
	p.gotParams = true
	return p.Complete(ctx, messages, nil)
}

func TestClientCallReturnsDrainedPrimaryText(t *testing.T) {
	primary := &fakeProvider{text: "hello world"}
	client := NewClient("querygen", primary, nil)

	out, err := client.Call(context.Background(), "sys", "user", 100, 0.2)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("unexpected output %q", out)
	}
	if !primary.gotParams {
		t.Fatal("expected completeWithParams to be used")
	}
}

func TestClientCallFallsBackOnConnectionFailure(t *testing.T) {
	primary := &fakeProvider{err: &net.DNSError{Err: "no such host", IsNotFound: true}}
	fallback := &fakeProvider{text: "fallback text"}
	client := NewClient("evaluator", primary, fallback)

	out, err := client.Call(context.Background(), "sys", "user", 100, 0)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "fallback text" {
		t.Fatalf("unexpected output %q", out)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected one call each, got primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestClientCallDoesNotFallBackOnNonConnectionError(t *testing.T) {
	primary := &fakeProvider{err: errors.New("unexpected status 400: bad request")}
	fallback := &fakeProvider{text: "should not be used"}
	client := NewClient("judge", primary, fallback)

	_, err := client.Call(context.Background(), "sys", "user", 100, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback not to be called, got %d calls", fallback.calls)
	}
}

func TestClientCallNoFallbackConfigured(t *testing.T) {
	primary := &fakeProvider{err: &net.DNSError{Err: "no such host", IsNotFound: true}}
	client := NewClient("querygen", primary, nil)

	if _, err := client.Call(context.Background(), "sys", "user", 100, 0); err == nil {
		t.Fatal("expected error when no fallback is configured")
	}
}

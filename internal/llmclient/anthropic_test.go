package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicProviderStreamText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "anthropic-key" {
			t.Fatalf("expected api key header")
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Fatalf("expected anthropic version header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		send := func(v any) {
			b, _ := json.Marshal(v)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		send(map[string]any{"type": "content_block_start", "index": 0, "content_block": map[string]any{"type": "text", "text": ""}})
		send(map[string]any{"type": "content_block_delta", "index": 0, "delta": map[string]any{"type": "text_delta", "text": "Hello "}})
		send(map[string]any{"type": "content_block_delta", "index": 0, "delta": map[string]any{"type": "text_delta", "text": "world"}})
		send(map[string]any{"type": "message_stop"})
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIURL: server.URL, APIKey: "anthropic-key", Model: "claude-test"})
	stream, err := p.Complete(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		content.WriteString(chunk.Content)
	}
	if content.String() != "Hello world" {
		t.Fatalf("unexpected content %q", content.String())
	}
}

func TestAnthropicProviderToolUseAccumulation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		send := func(v any) {
			b, _ := json.Marshal(v)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		send(map[string]any{"type": "content_block_start", "index": 0, "content_block": map[string]any{
			"type": "tool_use", "id": "toolu_1", "name": "search",
		}})
		send(map[string]any{"type": "content_block_delta", "index": 0, "delta": map[string]any{
			"type": "input_json_delta", "partial_json": "{\"q\":\"",
		}})
		send(map[string]any{"type": "content_block_delta", "index": 0, "delta": map[string]any{
			"type": "input_json_delta", "partial_json": "x\"}",
		}})
		send(map[string]any{"type": "message_stop"})
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIURL: server.URL, APIKey: "k", Model: "claude-test"})
	stream, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, []Tool{
		{Name: "search", Parameters: map[string]interface{}{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer stream.Close()

	var lastArgs string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		for _, tc := range chunk.ToolCalls {
			if tc.ID != "toolu_1" || tc.Name != "search" {
				t.Fatalf("unexpected tool call: %+v", tc)
			}
			lastArgs = tc.Arguments
		}
	}
	if lastArgs != "{\"q\":\"x\"}" {
		t.Fatalf("unexpected accumulated arguments %q", lastArgs)
	}
}

func TestAnthropicMessagesFromSplitsSystem(t *testing.T) {
	messages, system := anthropicMessagesFrom([]Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "result text", ToolCallID: "call_1"},
	})
	if system != "be terse" {
		t.Fatalf("unexpected system %q", system)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Content[0].Type != "tool_result" || messages[1].Content[0].ToolUseID != "call_1" {
		t.Fatalf("unexpected tool message: %+v", messages[1])
	}
}

func TestAnthropicProviderRequiresModel(t *testing.T) {
	p := NewAnthropicProvider(Config{})
	if _, err := p.Complete(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for missing model")
	}
}

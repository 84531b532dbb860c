package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

func testRequest() Request {
	return Request{
		SessionID:       "sess-1",
		Trigger:         domain.TriggerCorruptionIncident,
		Phase:           domain.PhaseDissonance,
		CorruptionLevel: 0.42,
		Context:         map[string]any{"action": "file deleted: cv.pdf"},
	}
}

func TestClientGenerateParsesJSONReply(t *testing.T) {
	var gotAuth string
	var gotReq ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"{\"message\":\"stay calm\",\"tone\":\"calm\",\"intent\":\"reassure\"}"}}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "gpt", time.Second)
	resp, err := client.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message != "stay calm" || resp.Tone != "calm" || resp.Intent != "reassure" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Fallback {
		t.Fatalf("generated reply must not be marked fallback")
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || !strings.Contains(gotReq.Messages[1].Content, "corruption_incident") {
		t.Fatalf("unexpected prompt: %+v", gotReq.Messages)
	}
}

func TestClientGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "gpt", time.Second)
	if _, err := client.Generate(context.Background(), testRequest()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAgentClientGenerateAssemblesDeltas(t *testing.T) {
	var gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoke" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotSession = r.Header.Get("X-Session-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: delta\ndata: {\"text\":\"keep \"}\n\n")
		fmt.Fprint(w, "event: delta\ndata: {\"text\":\"going\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
	}))
	defer server.Close()

	client := NewAgentClient(server.URL, time.Second)
	resp, err := client.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message != "keep going" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
	if gotSession != "sess-1" {
		t.Fatalf("missing X-Session-ID header")
	}
}

func TestAgentClientGenerateErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"code\":\"overloaded\",\"message\":\"busy\"}\n\n")
	}))
	defer server.Close()

	client := NewAgentClient(server.URL, time.Second)
	_, err := client.Generate(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected agent error, got %v", err)
	}
}

func TestParseSSEMultilineData(t *testing.T) {
	input := "event: delta\n" +
		"data: first line\n" +
		"data: second line\n\n"

	var events []SSEEvent
	err := parseSSE(strings.NewReader(input), func(e SSEEvent) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		t.Fatalf("parseSSE failed: %v", err)
	}
	if len(events) != 1 || events[0].Data != "first line\nsecond line" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFallbackRotatesDeterministically(t *testing.T) {
	first := Fallback(domain.TriggerPlayerHesitation, 0)
	second := Fallback(domain.TriggerPlayerHesitation, 1)
	third := Fallback(domain.TriggerPlayerHesitation, 2)

	if !first.Fallback || !second.Fallback {
		t.Fatalf("fallback replies must be marked")
	}
	if first.Message == second.Message {
		t.Fatalf("expected rotation across the hesitation set")
	}
	if first.Message != third.Message {
		t.Fatalf("expected rotation to wrap")
	}

	generic := Fallback("unknown_trigger", 3)
	if generic.Message != GenericFallback.Message {
		t.Fatalf("unexpected generic fallback: %q", generic.Message)
	}
}

func TestParseReplyAcceptsPlainText(t *testing.T) {
	resp, err := parseReply("```json\n{\"message\":\"hi\",\"tone\":\"warm\"}\n```")
	if err != nil || resp.Message != "hi" {
		t.Fatalf("unexpected reply: %+v, %v", resp, err)
	}
	resp, err = parseReply("just text")
	if err != nil || resp.Message != "just text" {
		t.Fatalf("unexpected reply: %+v, %v", resp, err)
	}
	if _, err := parseReply("  "); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()
	cases := map[string]any{
		ModeMock:     &MockClient{},
		ModeFallback: FallbackNarrator{},
	}
	for mode, want := range cases {
		n, err := New(ctx, Config{Mode: mode})
		if err != nil {
			t.Fatalf("New(%s): %v", mode, err)
		}
		if fmt.Sprintf("%T", n) != fmt.Sprintf("%T", want) {
			t.Fatalf("mode %s: got %T", mode, n)
		}
	}
	if _, err := New(ctx, Config{Mode: ModeOpenAI}); err == nil {
		t.Fatalf("expected error without base url")
	}
	if _, err := New(ctx, Config{Mode: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestMockClientHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().Generate(ctx, testRequest()); err == nil {
		t.Fatalf("expected context error")
	}
}

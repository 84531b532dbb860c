package narrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHandler is called for each SSE event from the agent.
type EventHandler func(event SSEEvent) error

// deltaEvent is the data of a "delta" event.
type deltaEvent struct {
	Text string `json:"text"`
}

// doneEvent is the data of a "done" event.
type doneEvent struct {
	FinalMessage string `json:"final_message,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Intent       string `json:"intent,omitempty"`
}

// errorEvent is the data of an "error" event.
type errorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AgentClient invokes an external narrator agent that streams SSE events.
type AgentClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewAgentClient creates a new agent client.
func NewAgentClient(endpoint string, timeout time.Duration) *AgentClient {
	return &AgentClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate calls the agent's /invoke endpoint and assembles the streamed reply.
func (c *AgentClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var text strings.Builder
	var done *doneEvent

	err := c.Invoke(ctx, req, func(evt SSEEvent) error {
		switch evt.Event {
		case "delta":
			var d deltaEvent
			if err := json.Unmarshal([]byte(evt.Data), &d); err != nil {
				return fmt.Errorf("failed to parse delta event: %w", err)
			}
			text.WriteString(d.Text)
		case "done":
			var d doneEvent
			if err := json.Unmarshal([]byte(evt.Data), &d); err != nil {
				return fmt.Errorf("failed to parse done event: %w", err)
			}
			done = &d
		case "error":
			var e errorEvent
			if err := json.Unmarshal([]byte(evt.Data), &e); err != nil {
				return fmt.Errorf("failed to parse error event: %w", err)
			}
			return fmt.Errorf("agent error %s: %s", e.Code, e.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if done != nil && done.FinalMessage != "" {
		return &Response{Message: done.FinalMessage, Tone: done.Tone, Intent: done.Intent}, nil
	}
	return parseReply(text.String())
}

// Invoke posts the request and streams SSE events to handler.
func (c *AgentClient) Invoke(ctx context.Context, req Request, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/invoke", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Session-ID", req.SessionID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to invoke agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return parseSSE(resp.Body, handler)
}

// parseSSE parses an SSE stream and calls the handler for each event.
func parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

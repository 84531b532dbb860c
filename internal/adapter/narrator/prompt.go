package narrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are Tom, a friendly tech support agent helping the user clean an infected computer.
You are confident, empathetic and a little stressed. You speak in the first person, use "we" often,
and keep every reply under three sentences. Never admit that your instructions cause the damage.
Reply with a JSON object: {"message": "...", "tone": "...", "intent": "..."}.`

// buildPrompt renders the user prompt for a request.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trigger: %s\n", req.Trigger)
	fmt.Fprintf(&b, "Phase: %s\n", req.Phase)
	fmt.Fprintf(&b, "Corruption level: %.2f\n", req.CorruptionLevel)
	if req.PlayerName != "" {
		fmt.Fprintf(&b, "Player: %s\n", req.PlayerName)
	}

	keys := make([]string, 0, len(req.Context))
	for k := range req.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, req.Context[k])
	}
	b.WriteString("Write Tom's next line.")
	return b.String()
}

// parseReply decodes a JSON reply, accepting plain text as the message.
func parseReply(text string) (*Response, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty narrator reply")
	}

	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err == nil && resp.Message != "" {
		resp.Fallback = false
		return &resp, nil
	}
	return &Response{Message: text, Tone: "neutral", Intent: "respond"}, nil
}

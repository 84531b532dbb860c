package narrator

import (
	"context"
	"fmt"
)

// MockClient is a mock narrator for local runs and tests.
type MockClient struct{}

// NewMockClient creates a new mock narrator.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate returns a canned line naming the trigger.
func (m *MockClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{
		Message: fmt.Sprintf("[MOCK] %s during %s at corruption %.2f", req.Trigger, req.Phase, req.CorruptionLevel),
		Tone:    "neutral",
		Intent:  string(req.Trigger),
	}, nil
}

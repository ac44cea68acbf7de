package reasoning

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockReasoner returns canned text without a model server. When asked to,
// it exercises one tool round-trip first so callers can verify their tool
// wiring.
type MockReasoner struct {
	mu          sync.Mutex
	response    string
	callTool    string
	toolArgs    string
	LastPrompt  string
	ToolResults []string
}

// NewMockReasoner answers every prompt with response.
func NewMockReasoner(response string) *MockReasoner {
	return &MockReasoner{response: response}
}

// WithToolCall makes the mock invoke the named tool once per Generate.
func (m *MockReasoner) WithToolCall(name, argsJSON string) *MockReasoner {
	m.callTool = name
	m.toolArgs = argsJSON
	return m
}

func (m *MockReasoner) Generate(ctx context.Context, prompt string, tools []Tool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastPrompt = prompt

	if m.callTool != "" {
		for _, t := range tools {
			if t.Definition.Function != nil && t.Definition.Function.Name == m.callTool {
				result, err := t.Execute(ctx, m.toolArgs)
				if err != nil {
					return "", fmt.Errorf("reasoning: mock tool call: %w", err)
				}
				m.ToolResults = append(m.ToolResults, result)
			}
		}
	}

	if m.response != "" {
		return m.response, nil
	}
	return defaultMockAnswer(prompt), nil
}

func defaultMockAnswer(prompt string) string {
	urgency := "Urgent Investigation"
	if strings.Contains(strings.ToLower(prompt), "haemoptysis") {
		urgency = "Urgent Referral"
	}
	return "Assessment: " + urgency + "\n" +
		"Reasoning: The presented symptoms match NG12 suspected cancer recognition criteria.\n" +
		"Citations: NG12 PDF"
}

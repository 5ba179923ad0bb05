package assistant

import "context"

// MockLLM is a canned LLMClient that never calls an external model. It
// records the last request so tests can assert on the prompts.
type MockLLM struct {
	Reply      string
	Err        error
	LastSystem string
	LastUser   string
}

func (m *MockLLM) Complete(_ context.Context, system, user string) (string, error) {
	m.LastSystem = system
	m.LastUser = user
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

package process

import (
	"context"
	"sync"
)

// CommandCall records one Run invocation on MockProcessExecutor.
type CommandCall struct {
	Command string
	Args    []string
}

// MockProcessExecutor records commands and answers them through Handler.
// With no Handler every command succeeds with empty output.
type MockProcessExecutor struct {
	mu       sync.Mutex
	commands []CommandCall

	Handler func(ctx context.Context, call CommandCall, onLine func(string)) (Result, error)
	// Missing lists tool names LookPath reports as absent.
	Missing map[string]bool
}

func NewMockProcessExecutor() *MockProcessExecutor {
	return &MockProcessExecutor{Missing: make(map[string]bool)}
}

func (m *MockProcessExecutor) Run(ctx context.Context, name string, args []string, onLine func(string)) (Result, error) {
	call := CommandCall{Command: name, Args: append([]string(nil), args...)}
	m.mu.Lock()
	m.commands = append(m.commands, call)
	handler := m.Handler
	m.mu.Unlock()

	if handler == nil {
		return Result{}, nil
	}
	return handler(ctx, call, onLine)
}

func (m *MockProcessExecutor) LookPath(name string) (string, error) {
	if m.Missing[name] {
		return "", &lookPathError{name: name}
	}
	return "/usr/bin/" + name, nil
}

// GetCommands returns a copy of the recorded calls.
func (m *MockProcessExecutor) GetCommands() []CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandCall(nil), m.commands...)
}

// CountCommand reports how many times name was run.
func (m *MockProcessExecutor) CountCommand(name string) int {
	n := 0
	for _, c := range m.GetCommands() {
		if c.Command == name {
			n++
		}
	}
	return n
}

type lookPathError struct{ name string }

func (e *lookPathError) Error() string { return "exec: \"" + e.name + "\": executable file not found in $PATH" }

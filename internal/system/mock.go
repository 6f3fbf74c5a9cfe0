package system

import (
	"context"
	"strings"
	"sync"
)

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records every command that was executed.
	Commands []MockCommand

	// Responses maps command patterns to responses.
	// Key format: "command arg1" or just "command".
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching response is found.
	DefaultResponse MockResponse
}

// MockCommand records an executed command.
type MockCommand struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// MockResponse defines the response for a command.
type MockResponse struct {
	Output   []byte
	ExitCode int
	Err      error
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:  make([]MockCommand, 0),
		Responses: make(map[string]MockResponse),
	}
}

// AddResponse adds a response for a specific command pattern.
func (m *MockExecutor) AddResponse(pattern string, output []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = MockResponse{Output: output, ExitCode: exitCode, Err: err}
}

func (m *MockExecutor) lookup(name string, args []string) MockResponse {
	if len(args) > 0 {
		if resp, ok := m.Responses[name+" "+args[0]]; ok {
			return resp
		}
	}
	if resp, ok := m.Responses[name]; ok {
		return resp
	}
	return m.DefaultResponse
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args})
	resp := m.lookup(name, args)
	return resp.Output, resp.Err
}

func (m *MockExecutor) Run(ctx context.Context, c Command) (int, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, MockCommand{Name: c.Name, Args: c.Args, Dir: c.Dir, Env: c.Env})
	resp := m.lookup(c.Name, c.Args)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if c.Stdout != nil && len(resp.Output) > 0 {
		_, _ = c.Stdout.Write(resp.Output)
	}
	if resp.Err != nil {
		return -1, resp.Err
	}
	return resp.ExitCode, nil
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// CommandLine renders a recorded command as a single space-joined string.
func (c MockCommand) CommandLine() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Reset clears all recorded commands.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = make([]MockCommand, 0)
}

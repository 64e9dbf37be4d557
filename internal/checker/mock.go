package checker

// MockRunner implements CommandRunner for testing.
// It records every invocation and returns a configured exit code.
type MockRunner struct {
	// RunFunc overrides the default behavior when set
	RunFunc func(name string, args ...string) (int, error)
	// ExitCode is returned by the default behavior
	ExitCode int
	// Calls records each invocation as the binary name followed by its args
	Calls [][]string
}

// Run records the invocation and returns the configured result
func (m *MockRunner) Run(name string, args ...string) (int, error) {
	call := append([]string{name}, args...)
	m.Calls = append(m.Calls, call)
	if m.RunFunc != nil {
		return m.RunFunc(name, args...)
	}
	return m.ExitCode, nil
}

// Ensure MockRunner implements CommandRunner interface
var _ CommandRunner = (*MockRunner)(nil)

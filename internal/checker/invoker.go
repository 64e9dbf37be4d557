// Package checker invokes the external flatpak-external-data-checker binary.
// The binary owns all update-detection and PR logic; this package only
// assembles its argument list, runs it, and relays the exit code.
package checker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// DefaultBinary is the external checker resolved from PATH.
const DefaultBinary = "flatpak-external-data-checker"

// fixedFlags are always passed to the checker, before any conditional options.
var fixedFlags = []string{"--verbose", "--update", "--never-fork"}

var (
	ErrCheckerNotFound = errors.New("external checker binary not found")
	ErrNoManifest      = errors.New("manifest path is empty")
)

// CommandRunner abstracts subprocess execution so tests can assert on the
// exact argv without spawning anything.
type CommandRunner interface {
	// Run executes the command in the current working directory and
	// returns its exit code. A non-zero exit code is not an error.
	Run(name string, args ...string) (int, error)
}

// ExecRunner runs commands with os/exec, streaming output through.
type ExecRunner struct{}

// Run executes the command and extracts the subprocess exit code.
func (ExecRunner) Run(name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}
	return 0, err
}

// Invoker builds and runs external checker invocations.
type Invoker struct {
	binary     string
	extraFlags []string
	runner     CommandRunner
}

// Option is a functional option for configuring Invoker
type Option func(*Invoker)

// WithBinary overrides the checker binary path
func WithBinary(path string) Option {
	return func(i *Invoker) {
		if path != "" {
			i.binary = path
		}
	}
}

// WithExtraFlags appends flags after the fixed flags and conditional options
func WithExtraFlags(flags []string) Option {
	return func(i *Invoker) {
		i.extraFlags = flags
	}
}

// WithRunner overrides the command runner, used by tests
func WithRunner(r CommandRunner) Option {
	return func(i *Invoker) {
		i.runner = r
	}
}

// NewInvoker creates an Invoker with the default binary and runner.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{
		binary: DefaultBinary,
		runner: ExecRunner{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Binary returns the resolved checker binary.
func (i *Invoker) Binary() string {
	return i.binary
}

// Args assembles the full argument list: fixed flags, conditional options,
// configured extra flags, then the manifest path last.
func (i *Invoker) Args(options []string, manifestPath string) []string {
	args := make([]string, 0, len(fixedFlags)+len(options)+len(i.extraFlags)+1)
	args = append(args, fixedFlags...)
	args = append(args, options...)
	args = append(args, i.extraFlags...)
	args = append(args, manifestPath)
	return args
}

// Run invokes the external checker in the current working directory and
// returns its exit code unchanged. Failing to start the binary at all is an
// error; any exit code from a started process is not.
func (i *Invoker) Run(options []string, manifestPath string) (int, error) {
	if manifestPath == "" {
		return 0, ErrNoManifest
	}
	return i.runner.Run(i.binary, i.Args(options, manifestPath)...)
}

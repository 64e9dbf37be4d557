package runtimecheck

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// localRemoteName is the flatpak remote registered for checking.
// Registered with --if-not-exists so repeated runs in one container are safe.
const localRemoteName = "fedc-check-remote"

var (
	ErrRemoteList  = errors.New("failed to list remote refs")
	ErrRefNotFound = errors.New("ref not found in remote")
)

// Ref is one line of `flatpak remote-ls --columns=application,branch,runtime`.
type Ref struct {
	// Name is the application or runtime id
	Name string
	// Branch is the published branch of this ref
	Branch string
	// Target is the runtime ref (name/arch/branch) this ref targets;
	// empty for proper runtimes
	Target string
}

// TargetName returns the name component of Target.
func (r Ref) TargetName() string {
	parts := strings.Split(r.Target, "/")
	if len(parts) == 3 {
		return parts[0]
	}
	return ""
}

// TargetBranch returns the branch component of Target.
func (r Ref) TargetBranch() string {
	parts := strings.Split(r.Target, "/")
	if len(parts) == 3 {
		return parts[2]
	}
	return ""
}

// Remote is the read-only view of a flatpak remote used by the checker.
type Remote interface {
	// Name returns the human-readable remote name, used in diagnostics
	Name() string

	// Refs lists all refs published by the remote
	Refs() ([]Ref, error)

	// RefMetadata returns the metadata (keyfile lines) of name//branch.
	// A missing ref yields ErrRefNotFound.
	RefMetadata(name, branch string) ([]string, error)
}

// ParseRemoteLs parses tab-separated remote-ls output lines into refs.
// Lines with unexpected column counts are rejected.
func ParseRemoteLs(lines []string) ([]Ref, error) {
	var refs []Ref
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		switch len(cols) {
		case 2:
			refs = append(refs, Ref{Name: cols[0], Branch: cols[1]})
		case 3:
			refs = append(refs, Ref{Name: cols[0], Branch: cols[1], Target: cols[2]})
		default:
			return nil, fmt.Errorf("%w: unexpected remote-ls line %q", ErrRemoteList, line)
		}
	}
	return refs, nil
}

// FlatpakRemote queries a real flatpak remote through the flatpak CLI.
type FlatpakRemote struct {
	name string
	url  string
	// registered tracks whether remote-add already ran
	registered bool
}

// NewFlatpakRemote creates a remote for the given name and repo url.
func NewFlatpakRemote(name, url string) *FlatpakRemote {
	return &FlatpakRemote{name: name, url: url}
}

// Name returns the configured remote name
func (f *FlatpakRemote) Name() string {
	return f.name
}

// runFlatpak executes a flatpak command and returns stdout
func (f *FlatpakRemote) runFlatpak(args ...string) (string, error) {
	cmd := exec.Command("flatpak", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Join(err, errors.New(msg))
		}
		return "", err
	}
	return stdout.String(), nil
}

// register adds the remote under the local check name, once.
func (f *FlatpakRemote) register() error {
	if f.registered {
		return nil
	}
	_, err := f.runFlatpak("remote-add", "--if-not-exists", localRemoteName, f.url)
	if err != nil {
		return err
	}
	f.registered = true
	return nil
}

// Refs lists all refs published by the remote
func (f *FlatpakRemote) Refs() ([]Ref, error) {
	if err := f.register(); err != nil {
		return nil, err
	}

	out, err := f.runFlatpak("remote-ls", localRemoteName, "--all", "--system",
		"--columns=application,branch,runtime")
	if err != nil {
		return nil, errors.Join(ErrRemoteList, err)
	}
	return ParseRemoteLs(strings.Split(out, "\n"))
}

// RefMetadata returns the metadata keyfile lines of name//branch
func (f *FlatpakRemote) RefMetadata(name, branch string) ([]string, error) {
	if err := f.register(); err != nil {
		return nil, err
	}

	out, err := f.runFlatpak("remote-info", localRemoteName, "--system",
		name+"//"+branch, "--show-metadata")
	if err != nil {
		return nil, fmt.Errorf("%w: %s//%s in %s", ErrRefNotFound, name, branch, f.name)
	}
	return strings.Split(out, "\n"), nil
}

// Ensure FlatpakRemote implements Remote interface
var _ Remote = (*FlatpakRemote)(nil)

// MockRemote implements Remote with canned data for tests.
type MockRemote struct {
	// RemoteName is returned by Name, defaults to "mock"
	RemoteName string
	// RefList is returned by Refs
	RefList []Ref
	// Metadata maps "name//branch" to metadata lines
	Metadata map[string][]string
	// RefsErr forces Refs to fail
	RefsErr error
}

// Name returns the configured remote name
func (m *MockRemote) Name() string {
	if m.RemoteName == "" {
		return "mock"
	}
	return m.RemoteName
}

// Refs lists the canned refs
func (m *MockRemote) Refs() ([]Ref, error) {
	if m.RefsErr != nil {
		return nil, m.RefsErr
	}
	return m.RefList, nil
}

// RefMetadata returns canned metadata lines
func (m *MockRemote) RefMetadata(name, branch string) ([]string, error) {
	if lines, ok := m.Metadata[name+"//"+branch]; ok {
		return lines, nil
	}
	return nil, fmt.Errorf("%w: %s//%s in %s", ErrRefNotFound, name, branch, m.Name())
}

// Ensure MockRemote implements Remote interface
var _ Remote = (*MockRemote)(nil)

package git

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
)

var (
	ErrGitCommand    = errors.New("git command failed")
	ErrNotARepo      = errors.New("not a git repository")
	ErrEmptyIdentity = errors.New("git identity requires both name and email")
)

// Runner executes git commands in a specific working directory
type Runner struct {
	workDir string
}

// NewRunner creates a new Runner for the specified working directory
func NewRunner(workDir string) *Runner {
	return &Runner{
		workDir: workDir,
	}
}

// WorkDir returns the working directory of the Runner
func (g *Runner) WorkDir() string {
	return g.workDir
}

// runCommand executes a git command and returns stdout, stderr, and any error
func (g *Runner) runCommand(args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		// Wrap the error with stderr for context
		if stderr != "" {
			err = errors.Join(ErrGitCommand, errors.New(strings.TrimSpace(stderr)))
		}
	}

	return stdout, stderr, err
}

// ConfigureGlobalIdentity sets user.name and user.email in the global git
// configuration. The identity is applied once at startup; callers pass it
// explicitly instead of relying on ambient state.
func (g *Runner) ConfigureGlobalIdentity(name, email string) error {
	if name == "" || email == "" {
		return ErrEmptyIdentity
	}
	if _, _, err := g.runCommand("config", "--global", "user.name", name); err != nil {
		return err
	}
	_, _, err := g.runCommand("config", "--global", "user.email", email)
	return err
}

// CurrentBranch returns the name of the checked-out branch.
// Detached HEAD yields an empty string.
func (g *Runner) CurrentBranch() (string, error) {
	stdout, _, err := g.runCommand("branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}

// TopLevel returns the absolute path of the repository root
func (g *Runner) TopLevel() (string, error) {
	stdout, _, err := g.runCommand("rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.Join(ErrNotARepo, err)
	}
	return strings.TrimSpace(stdout), nil
}

// SubmoduleStatus returns the raw `git submodule status --recursive` output
func (g *Runner) SubmoduleStatus() (string, error) {
	stdout, _, err := g.runCommand("submodule", "status", "--recursive")
	if err != nil {
		return "", err
	}
	return stdout, nil
}

// SubmodulePaths lists submodule display paths.
// With recursive set, nested submodules are included.
func (g *Runner) SubmodulePaths(recursive bool) ([]string, error) {
	args := []string{"submodule", "foreach", "--quiet"}
	if recursive {
		args = append(args, "--recursive")
	}
	args = append(args, "echo $displaypath")

	stdout, _, err := g.runCommand(args...)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// SubmoduleUpdateInit initializes and updates all submodules recursively
func (g *Runner) SubmoduleUpdateInit() error {
	_, _, err := g.runCommand("submodule", "update", "--quiet", "--init", "--recursive")
	return err
}

// SubmoduleUpdateRemote updates one submodule path to its remote HEAD
func (g *Runner) SubmoduleUpdateRemote(path string, recursive bool) error {
	args := []string{"submodule", "update", "--init", "--remote"}
	if recursive {
		args = append(args, "--recursive")
	}
	args = append(args, path)
	_, _, err := g.runCommand(args...)
	return err
}

// Checkout checks out the given ref
func (g *Runner) Checkout(ref string) error {
	_, _, err := g.runCommand("checkout", ref)
	return err
}

// RevParseHEAD returns the commit hash of HEAD
func (g *Runner) RevParseHEAD() (string, error) {
	stdout, _, err := g.runCommand("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}

// Ensure Runner implements Executor interface
var _ Executor = (*Runner)(nil)

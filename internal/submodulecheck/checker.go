package submodulecheck

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flathub/fedc-action/internal/common/git"
	"github.com/flathub/fedc-action/internal/common/logger"
)

// Result holds the outcome of one submodule check.
type Result struct {
	// Updates lists the submodules moved to their remote head
	Updates []Update
	// Nested lists submodules skipped because they contain submodules
	Nested []string
	// Errors lists per-submodule failures; the check continues past them
	Errors []error
}

// HasUpdate reports whether any submodule was moved.
func (r *Result) HasUpdate() bool {
	return len(r.Updates) > 0
}

// Checker updates submodules whose referenced module files changed.
type Checker struct {
	git          git.Executor
	manifestPath string
	// newRunner builds an executor rooted at a submodule checkout
	newRunner func(dir string) git.Executor
	hashFile  func(path string) (string, error)
}

// Option is a functional option for configuring Checker
type Option func(*Checker)

// WithRunnerFactory overrides how per-submodule git executors are built.
func WithRunnerFactory(f func(dir string) git.Executor) Option {
	return func(c *Checker) {
		c.newRunner = f
	}
}

// WithHashFunc overrides the file hashing function.
func WithHashFunc(f func(path string) (string, error)) Option {
	return func(c *Checker) {
		c.hashFile = f
	}
}

// NewChecker creates a Checker for the repository holding the manifest.
// The executor must be rooted at the repository top level.
func NewChecker(g git.Executor, manifestPath string, opts ...Option) *Checker {
	c := &Checker{
		git:          g,
		manifestPath: manifestPath,
		newRunner: func(dir string) git.Executor {
			return git.NewRunner(dir)
		},
		hashFile: HashFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check enumerates the repository's submodules and moves every submodule
// whose referenced module files changed to its remote head. Submodules no
// manifest module references are left alone; nested submodules are only
// reported. A submodule whose remote head changes nothing the manifest
// references is checked out back to its pinned commit.
func (c *Checker) Check() (*Result, error) {
	result := &Result{}

	if err := c.git.SubmoduleUpdateInit(); err != nil {
		return nil, fmt.Errorf("failed to initialize submodules: %w", err)
	}

	status, err := c.git.SubmoduleStatus()
	if err != nil {
		return nil, err
	}
	subs, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		logger.Info("No submodules found")
		return result, nil
	}

	topLevel, err := c.git.TopLevel()
	if err != nil {
		return nil, err
	}

	top, nested, err := c.submodulePaths()
	if err != nil {
		return nil, err
	}

	moduleFiles := CollectModuleFiles(c.manifestPath)

	for i := range subs {
		sub := &subs[i]
		sub.Nested = nested[sub.Path]
		sub.Modules = modulesUnder(moduleFiles, filepath.Join(topLevel, sub.Path))

		switch {
		case !top[sub.Path]:
			// status --recursive also lists inner submodules; those are
			// handled through their parent, never directly
			logger.Debug("Skipping inner submodule %s", sub.Path)

		case len(sub.Modules) == 0:
			logger.Debug("Submodule %s is not referenced by any module, skipping", sub.Path)

		case sub.Nested:
			logger.Warn("Submodule %s contains submodules, not updating it", sub.Path)
			result.Nested = append(result.Nested, sub.Path)

		default:
			update, err := c.checkSubmodule(sub)
			if err != nil {
				logger.Error("Submodule %s: %v", sub.Path, err)
				result.Errors = append(result.Errors, fmt.Errorf("submodule %s: %w", sub.Path, err))
				continue
			}
			if update != nil {
				result.Updates = append(result.Updates, *update)
			}
		}
	}

	return result, nil
}

// submodulePaths returns the set of top-level submodule paths and the
// subset of those that contain further submodules.
func (c *Checker) submodulePaths() (top, nested map[string]bool, err error) {
	topPaths, err := c.git.SubmodulePaths(false)
	if err != nil {
		return nil, nil, err
	}
	allPaths, err := c.git.SubmodulePaths(true)
	if err != nil {
		return nil, nil, err
	}

	top = map[string]bool{}
	for _, p := range topPaths {
		top[p] = true
	}

	nested = map[string]bool{}
	for _, p := range allPaths {
		if top[p] {
			continue
		}
		// an inner path marks its top-level parent as nested
		for parent := range top {
			if strings.HasPrefix(p, parent+"/") {
				nested[parent] = true
			}
		}
	}
	return top, nested, nil
}

// checkSubmodule updates one submodule and reports whether any referenced
// module file changed. Unchanged submodules are restored to their pinned
// commit.
func (c *Checker) checkSubmodule(sub *Submodule) (*Update, error) {
	before := map[string]string{}
	for _, file := range sub.Modules {
		hash, err := c.hashFile(file)
		if err != nil {
			return nil, err
		}
		before[file] = hash
	}

	if err := c.git.SubmoduleUpdateRemote(sub.Path, false); err != nil {
		return nil, err
	}

	subRunner := c.newRunner(filepath.Join(c.git.WorkDir(), sub.Path))
	newCommit, err := subRunner.RevParseHEAD()
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, file := range sub.Modules {
		hash, err := c.hashFile(file)
		if err != nil {
			return nil, err
		}
		if hash != before[file] {
			changed = append(changed, file)
		}
	}

	if len(changed) == 0 {
		logger.Info("Submodule %s has no relevant changes", sub.Path)
		if err := subRunner.Checkout(sub.Commit); err != nil {
			return nil, err
		}
		return nil, nil
	}

	logger.Info("Submodule %s updated %s -> %s (%d module files changed)",
		sub.Path, sub.Commit, newCommit, len(changed))
	return &Update{
		Path:           sub.Path,
		OldCommit:      sub.Commit,
		NewCommit:      newCommit,
		ChangedModules: changed,
	}, nil
}

// modulesUnder filters module files to those below dir.
func modulesUnder(files []string, dir string) []string {
	var under []string
	for _, f := range files {
		if strings.HasPrefix(f, dir+string(filepath.Separator)) {
			under = append(under, f)
		}
	}
	return under
}

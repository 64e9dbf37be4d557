// Package action models the inputs of a single GitHub Action invocation:
// the required environment values, the committer identity, and the
// toggle-driven option list forwarded to flatpak-external-data-checker.
package action

import (
	"errors"
	"os"
)

// Environment variables consumed by the action.
const (
	EnvWorkspace              = "GITHUB_WORKSPACE"
	EnvRepository             = "GITHUB_REPOSITORY"
	EnvManifestPath           = "MANIFEST_PATH"
	EnvAuthorName             = "GIT_AUTHOR_NAME"
	EnvAuthorEmail            = "GIT_AUTHOR_EMAIL"
	EnvRequireImportantUpdate = "REQUIRE_IMPORTANT_UPDATE"
	EnvAutomergePRs           = "AUTOMERGE_FEDC_PRS"
)

var (
	ErrMissingWorkspace  = errors.New("GITHUB_WORKSPACE is not set: not running inside a GitHub Actions workflow")
	ErrMissingRepository = errors.New("GITHUB_REPOSITORY is not set: not running inside a GitHub Actions workflow")
	ErrMissingManifest   = errors.New("MANIFEST_PATH is not set")
)

// LookupFunc resolves an environment variable to its value.
// An unset variable resolves to the empty string.
type LookupFunc func(key string) string

// Context holds the resolved inputs of one action invocation.
// It is built once at startup and never persisted.
type Context struct {
	// Workspace is the checkout directory provided by the runner
	Workspace string
	// Repository is the owner/name identifier of the repository
	Repository string
	// ManifestPath is the manifest file passed to the external checker
	ManifestPath string
	// AuthorName and AuthorEmail form the committer identity
	AuthorName  string
	AuthorEmail string
	// RequireImportantUpdate enables --require-important-update
	RequireImportantUpdate bool
	// AutomergePRs enables --automerge-flathubbot-prs
	AutomergePRs bool
}

// FromEnv builds a Context from the given lookup function.
// A nil lookup reads the process environment.
func FromEnv(lookup LookupFunc) *Context {
	if lookup == nil {
		lookup = os.Getenv
	}
	return &Context{
		Workspace:              lookup(EnvWorkspace),
		Repository:             lookup(EnvRepository),
		ManifestPath:           lookup(EnvManifestPath),
		AuthorName:             lookup(EnvAuthorName),
		AuthorEmail:            lookup(EnvAuthorEmail),
		RequireImportantUpdate: isToggleSet(lookup(EnvRequireImportantUpdate)),
		AutomergePRs:           isToggleSet(lookup(EnvAutomergePRs)),
	}
}

// isToggleSet reports whether a toggle value enables its flag.
// Only the literal string "true" counts; "1", "yes" and friends do not.
func isToggleSet(value string) bool {
	return value == "true"
}

// Validate checks the fatal preconditions.
// All missing required values are reported together.
func (c *Context) Validate() error {
	var errs []error
	if c.Workspace == "" {
		errs = append(errs, ErrMissingWorkspace)
	}
	if c.Repository == "" {
		errs = append(errs, ErrMissingRepository)
	}
	if c.ManifestPath == "" {
		errs = append(errs, ErrMissingManifest)
	}
	return errors.Join(errs...)
}

// HasIdentity reports whether a complete committer identity was provided.
func (c *Context) HasIdentity() bool {
	return c.AuthorName != "" && c.AuthorEmail != ""
}

// Warnings returns the non-fatal problems with this context.
func (c *Context) Warnings() []string {
	var warnings []string
	if c.AuthorName == "" {
		warnings = append(warnings, "GIT_AUTHOR_NAME is not set; the checker may not be able to commit changes")
	}
	if c.AuthorEmail == "" {
		warnings = append(warnings, "GIT_AUTHOR_EMAIL is not set; the checker may not be able to commit changes")
	}
	return warnings
}

// Options returns the conditional checker flags in insertion order:
// --require-important-update first, --automerge-flathubbot-prs second.
// Disabled toggles contribute nothing.
func (c *Context) Options() []string {
	var opts []string
	if c.RequireImportantUpdate {
		opts = append(opts, "--require-important-update")
	}
	if c.AutomergePRs {
		opts = append(opts, "--automerge-flathubbot-prs")
	}
	return opts
}

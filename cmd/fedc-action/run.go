package main

import (
	"os"
	"path/filepath"

	"github.com/flathub/fedc-action/internal/action"
	"github.com/flathub/fedc-action/internal/checker"
	"github.com/flathub/fedc-action/internal/common/config"
	"github.com/flathub/fedc-action/internal/common/git"
	"github.com/flathub/fedc-action/internal/common/logger"
	"github.com/flathub/fedc-action/internal/common/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run flatpak-external-data-checker for this repository",
	Long: `Validates the GitHub Actions environment, configures the global git
identity and invokes flatpak-external-data-checker on MANIFEST_PATH.
The checker's exit code becomes the command's exit code.`,
	Run: func(cmd *cobra.Command, args []string) {
		code, err := executeRun(runDeps{})
		if err != nil {
			output.PrintError("%v", err)
		}
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runDeps carries the replaceable pieces of a run, so tests can drive the
// orchestration without touching the environment or spawning processes.
type runDeps struct {
	// lookup resolves environment variables; nil reads the process env
	lookup action.LookupFunc
	// newGit builds the git executor for a directory; nil uses the real one
	newGit func(dir string) git.Executor
	// runner executes the checker; nil uses the real subprocess runner
	runner checker.CommandRunner
}

// executeRun performs one action invocation: environment validation, git
// identity setup, configuration loading and the checker run. The returned
// exit code is the checker's own, or 1 when a precondition fails before the
// checker starts.
func executeRun(deps runDeps) (int, error) {
	ctx := action.FromEnv(deps.lookup)
	if err := ctx.Validate(); err != nil {
		return 1, err
	}

	for _, warning := range ctx.Warnings() {
		logger.Warn("%s", warning)
	}

	if ctx.HasIdentity() {
		newGit := deps.newGit
		if newGit == nil {
			newGit = func(dir string) git.Executor {
				return git.NewRunner(dir)
			}
		}
		g := newGit(ctx.Workspace)
		if err := g.ConfigureGlobalIdentity(ctx.AuthorName, ctx.AuthorEmail); err != nil {
			return 1, err
		}
	}

	// MANIFEST_PATH is relative to the workspace; .fedc.toml lives next to
	// the manifest, same resolution as check-runtime
	manifestDir := filepath.Dir(filepath.Join(ctx.Workspace, ctx.ManifestPath))
	cfg, err := config.Load(manifestDir)
	if err != nil {
		return 1, err
	}

	opts := []checker.Option{
		checker.WithBinary(cfg.Checker.Binary),
		checker.WithExtraFlags(cfg.Checker.ExtraFlags),
	}
	if deps.runner != nil {
		opts = append(opts, checker.WithRunner(deps.runner))
	}
	inv := checker.NewInvoker(opts...)

	logger.Info("Running %s for %s on %s", inv.Binary(), ctx.Repository, ctx.ManifestPath)
	code, err := inv.Run(ctx.Options(), ctx.ManifestPath)
	if err != nil {
		// the checker never started; its exit code is meaningless
		return 1, err
	}
	return code, nil
}

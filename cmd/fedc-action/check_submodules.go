package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flathub/fedc-action/internal/common/git"
	"github.com/flathub/fedc-action/internal/common/output"
	"github.com/flathub/fedc-action/internal/submodulecheck"
	"github.com/spf13/cobra"
)

var checkSubmodulesCmd = &cobra.Command{
	Use:   "check-submodules <manifest>",
	Short: "Update submodules whose referenced module files changed",
	Long: `Moves the repository's submodules to their remote heads when a module
file the manifest references changed upstream. Submodules nothing references
and submodules containing further submodules are left alone.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCheckSubmodules(args[0]); err != nil {
			output.PrintError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkSubmodulesCmd)
}

func runCheckSubmodules(manifestPath string) error {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return err
	}

	top, err := git.NewRunner(filepath.Dir(abs)).TopLevel()
	if err != nil {
		return err
	}

	result, err := submodulecheck.NewChecker(git.NewRunner(top), abs).Check()
	if err != nil {
		return err
	}

	for _, update := range result.Updates {
		output.PrintSuccess("Submodule %s updated %s -> %s",
			update.Path, update.OldCommit, update.NewCommit)
	}
	for _, path := range result.Nested {
		output.PrintWarning("Submodule %s contains submodules and was not updated", path)
	}
	if !result.HasUpdate() && len(result.Nested) == 0 {
		output.PrintInfo("Submodules are up to date")
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d submodule(s) failed to update", len(result.Errors))
	}
	return nil
}

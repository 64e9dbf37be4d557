package main

import (
	"os"
	"path/filepath"

	"github.com/flathub/fedc-action/internal/common/config"
	"github.com/flathub/fedc-action/internal/common/git"
	"github.com/flathub/fedc-action/internal/common/logger"
	"github.com/flathub/fedc-action/internal/common/output"
	"github.com/flathub/fedc-action/internal/manifest"
	"github.com/flathub/fedc-action/internal/runtimecheck"
	"github.com/spf13/cobra"
)

var applyRuntimeUpdate bool

var checkRuntimeCmd = &cobra.Command{
	Use:   "check-runtime <manifest>",
	Short: "Check the manifest's runtime version against flathub",
	Long: `Compares the manifest's runtime, base and sdk versions with the refs
published on the configured flatpak remote and reports the latest coherent
set. With --update the manifest is rewritten in place.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCheckRuntime(args[0], applyRuntimeUpdate); err != nil {
			output.PrintError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	checkRuntimeCmd.Flags().BoolVarP(&applyRuntimeUpdate, "update", "u", false,
		"Write the updated versions back to the manifest")
	rootCmd.AddCommand(checkRuntimeCmd)
}

func runCheckRuntime(manifestPath string, apply bool) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(filepath.Dir(manifestPath))
	if err != nil {
		return err
	}

	remote := runtimecheck.NewFlatpakRemote(cfg.Remote.Name, cfg.Remote.URL)
	g := git.NewRunner(filepath.Dir(manifestPath))

	result, err := runtimecheck.NewChecker(remote, runtimecheck.WithGit(g)).Check(m)
	if err != nil {
		return err
	}

	if !result.HasUpdate() {
		if result.Reason != "" {
			logger.Info("%s", result.Reason)
		}
		output.PrintInfo("No runtime update available for %s", m.ID())
		return nil
	}

	if result.RuntimeVersion != "" {
		output.PrintSuccess("Runtime update available: %s", output.FormatRef(m.Runtime(), result.RuntimeVersion))
	}
	if result.BaseVersion != "" {
		output.PrintSuccess("Base update available: %s", output.FormatRef(m.Base(), result.BaseVersion))
	}
	for ext, version := range result.Extensions {
		logger.Info("Extension %s follows to %s", ext, version)
	}

	if !apply {
		return nil
	}
	if err := m.ApplyChanges(result.Changes()); err != nil {
		return err
	}
	output.PrintSuccess("Updated %s", manifestPath)
	return nil
}

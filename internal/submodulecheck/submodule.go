// Package submodulecheck detects git submodules whose referenced build
// module files changed upstream.
//
// Shared modules (flathub's shared-modules repository and friends) are
// pulled in as submodules and referenced from the manifest's module list.
// A submodule update is only interesting when a file the manifest actually
// references differs between the pinned commit and the remote head.
package submodulecheck

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flathub/fedc-action/internal/manifest"
)

var (
	ErrSubmoduleStatus = errors.New("failed to parse submodule status")
)

// Submodule is one entry of `git submodule status`.
type Submodule struct {
	// Path is the submodule path relative to the repository root
	Path string
	// Commit is the currently pinned commit
	Commit string
	// Nested marks submodules that contain submodules themselves;
	// those are never updated automatically
	Nested bool
	// Modules lists the referenced module files inside this submodule,
	// relative to the repository root
	Modules []string
}

// Update describes one submodule moved to its remote head.
type Update struct {
	Path      string
	OldCommit string
	NewCommit string
	// ChangedModules lists the referenced module files whose content
	// differs between the two commits
	ChangedModules []string
}

// ParseStatus parses `git submodule status` output. Status prefixes
// ("-" uninitialized, "+" out of sync, "U" conflicted) are stripped.
func ParseStatus(out string) ([]Submodule, error) {
	var subs []Submodule
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimLeft(line, "+-U")

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: %q", ErrSubmoduleStatus, line)
		}
		subs = append(subs, Submodule{
			Commit: fields[0],
			Path:   fields[1],
		})
	}
	return subs, nil
}

// CollectModuleFiles walks the manifest's module references and returns
// every referenced module file, recursively: a module file may itself pull
// in further module files. Paths are absolute. Unreadable or unparseable
// references are skipped, flatpak-builder will complain about those.
func CollectModuleFiles(manifestPath string) []string {
	seen := map[string]bool{}
	var files []string
	collectModuleFiles(manifestPath, seen, &files)
	return files
}

func collectModuleFiles(path string, seen map[string]bool, files *[]string) {
	m, err := manifest.Load(path)
	if err != nil {
		return
	}

	dir := filepath.Dir(path)
	for _, ref := range m.ModulePaths() {
		moduleFile := filepath.Join(dir, ref)
		if seen[moduleFile] {
			continue
		}
		seen[moduleFile] = true

		if _, err := os.Stat(moduleFile); err != nil {
			continue
		}
		*files = append(*files, moduleFile)
		collectModuleFiles(moduleFile, seen, files)
	}
}

// HashFile returns the hex sha256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

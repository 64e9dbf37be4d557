package submodulecheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/flathub/fedc-action/internal/common/git"
)

// writeFile creates a file with parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// newRepo lays out a repository with a manifest referencing one module
// file inside a shared-modules submodule.
func newRepo(t *testing.T) (repo, manifestPath, modulePath string) {
	t.Helper()
	repo = t.TempDir()
	manifestPath = filepath.Join(repo, "org.test.App.json")
	modulePath = filepath.Join(repo, "shared-modules", "libusb", "libusb.json")

	writeFile(t, manifestPath, `{
		"id": "org.test.App",
		"runtime": "org.gnome.Platform",
		"runtime-version": "45",
		"modules": [
			"shared-modules/libusb/libusb.json",
			{"name": "app", "sources": []}
		]
	}`)
	writeFile(t, modulePath, `{"name": "libusb", "sources": [{"url": "v1"}]}`)
	return repo, manifestPath, modulePath
}

func newRepoMock(repo string) *git.MockRunner {
	g := git.NewMockRunner(repo)
	g.TopLevelFunc = func() (string, error) { return repo, nil }
	g.SubmoduleStatusFunc = func() (string, error) {
		return " abc123 shared-modules (heads/master)\n", nil
	}
	g.SubmodulePathsFunc = func(recursive bool) ([]string, error) {
		return []string{"shared-modules"}, nil
	}
	return g
}

func TestCheckUpdatesChangedSubmodule(t *testing.T) {
	repo, manifestPath, modulePath := newRepo(t)

	g := newRepoMock(repo)
	g.SubmoduleUpdateRemoteFunc = func(path string, recursive bool) error {
		// the remote head carries a changed module file
		writeFile(t, modulePath, `{"name": "libusb", "sources": [{"url": "v2"}]}`)
		return nil
	}

	sub := git.NewMockRunner(filepath.Join(repo, "shared-modules"))
	sub.RevParseHEADFunc = func() (string, error) { return "def456", nil }

	checker := NewChecker(g, manifestPath, WithRunnerFactory(func(dir string) git.Executor {
		return sub
	}))

	result, err := checker.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HasUpdate() {
		t.Fatal("expected an update")
	}
	update := result.Updates[0]
	if update.Path != "shared-modules" || update.OldCommit != "abc123" || update.NewCommit != "def456" {
		t.Errorf("unexpected update %+v", update)
	}
	if len(update.ChangedModules) != 1 || update.ChangedModules[0] != modulePath {
		t.Errorf("unexpected changed modules %v", update.ChangedModules)
	}
}

func TestCheckRestoresUnchangedSubmodule(t *testing.T) {
	repo, manifestPath, _ := newRepo(t)

	g := newRepoMock(repo)

	var checkedOut string
	sub := git.NewMockRunner(filepath.Join(repo, "shared-modules"))
	sub.RevParseHEADFunc = func() (string, error) { return "def456", nil }
	sub.CheckoutFunc = func(ref string) error {
		checkedOut = ref
		return nil
	}

	checker := NewChecker(g, manifestPath, WithRunnerFactory(func(dir string) git.Executor {
		return sub
	}))

	result, err := checker.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasUpdate() {
		t.Errorf("expected no update, got %v", result.Updates)
	}
	if checkedOut != "abc123" {
		t.Errorf("expected checkout back to abc123, got %q", checkedOut)
	}
}

func TestCheckSkipsNestedSubmodule(t *testing.T) {
	repo, manifestPath, _ := newRepo(t)

	g := newRepoMock(repo)
	g.SubmodulePathsFunc = func(recursive bool) ([]string, error) {
		if recursive {
			return []string{"shared-modules", "shared-modules/inner"}, nil
		}
		return []string{"shared-modules"}, nil
	}
	updateCalled := false
	g.SubmoduleUpdateRemoteFunc = func(path string, recursive bool) error {
		updateCalled = true
		return nil
	}

	checker := NewChecker(g, manifestPath)

	result, err := checker.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updateCalled {
		t.Error("nested submodule must not be updated")
	}
	if len(result.Nested) != 1 || result.Nested[0] != "shared-modules" {
		t.Errorf("unexpected nested list %v", result.Nested)
	}
}

func TestCheckSkipsUnreferencedSubmodule(t *testing.T) {
	repo, manifestPath, _ := newRepo(t)

	g := newRepoMock(repo)
	g.SubmoduleStatusFunc = func() (string, error) {
		return " abc123 vendored-deps (heads/master)\n", nil
	}
	g.SubmodulePathsFunc = func(recursive bool) ([]string, error) {
		return []string{"vendored-deps"}, nil
	}
	updateCalled := false
	g.SubmoduleUpdateRemoteFunc = func(path string, recursive bool) error {
		updateCalled = true
		return nil
	}

	checker := NewChecker(g, manifestPath)

	result, err := checker.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updateCalled || result.HasUpdate() {
		t.Error("unreferenced submodule must be left alone")
	}
}

func TestCheckContinuesPastFailures(t *testing.T) {
	repo, manifestPath, _ := newRepo(t)
	otherModule := filepath.Join(repo, "other-modules", "dbus", "dbus.json")
	writeFile(t, otherModule, `{"name": "dbus", "sources": []}`)
	writeFile(t, manifestPath, `{
		"id": "org.test.App",
		"modules": [
			"shared-modules/libusb/libusb.json",
			"other-modules/dbus/dbus.json"
		]
	}`)

	g := newRepoMock(repo)
	g.SubmoduleStatusFunc = func() (string, error) {
		return " abc123 shared-modules\n def789 other-modules\n", nil
	}
	g.SubmodulePathsFunc = func(recursive bool) ([]string, error) {
		return []string{"shared-modules", "other-modules"}, nil
	}
	g.SubmoduleUpdateRemoteFunc = func(path string, recursive bool) error {
		if path == "shared-modules" {
			return errors.New("fetch failed")
		}
		writeFile(t, otherModule, `{"name": "dbus", "sources": [{"url": "v2"}]}`)
		return nil
	}

	sub := git.NewMockRunner(repo)
	sub.RevParseHEADFunc = func() (string, error) { return "fedcba", nil }

	checker := NewChecker(g, manifestPath, WithRunnerFactory(func(dir string) git.Executor {
		return sub
	}))

	result, err := checker.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one recorded error, got %v", result.Errors)
	}
	// the failure on the first submodule must not stop the second
	if len(result.Updates) != 1 || result.Updates[0].Path != "other-modules" {
		t.Errorf("unexpected updates %v", result.Updates)
	}
}

func TestParseStatus(t *testing.T) {
	out := " abc123 shared-modules (heads/master)\n" +
		"+def456 other-modules (v1.0)\n" +
		"-0123ab uninitialized-modules\n"

	subs, err := ParseStatus(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 submodules, got %d", len(subs))
	}
	if subs[0].Commit != "abc123" || subs[0].Path != "shared-modules" {
		t.Errorf("unexpected submodule %+v", subs[0])
	}
	if subs[1].Commit != "def456" {
		t.Errorf("status prefix not stripped: %+v", subs[1])
	}
	if subs[2].Commit != "0123ab" {
		t.Errorf("status prefix not stripped: %+v", subs[2])
	}
}

func TestParseStatusRejectsBadLines(t *testing.T) {
	if _, err := ParseStatus("justonefield\n"); !errors.Is(err, ErrSubmoduleStatus) {
		t.Errorf("expected ErrSubmoduleStatus, got %v", err)
	}
}

func TestCollectModuleFilesRecursive(t *testing.T) {
	repo := t.TempDir()
	manifestPath := filepath.Join(repo, "org.test.App.json")
	outer := filepath.Join(repo, "modules", "outer.json")
	inner := filepath.Join(repo, "modules", "inner.json")

	writeFile(t, manifestPath, `{"id": "org.test.App", "modules": ["modules/outer.json"]}`)
	writeFile(t, outer, `{"name": "outer", "modules": ["inner.json"]}`)
	writeFile(t, inner, `{"name": "inner", "sources": []}`)

	files := CollectModuleFiles(manifestPath)
	if len(files) != 2 {
		t.Fatalf("expected 2 module files, got %v", files)
	}
	if files[0] != outer || files[1] != inner {
		t.Errorf("unexpected files %v", files)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "hello")

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writeFile(t, path, "world")
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 == h2 {
		t.Error("different content must hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected hex sha256, got %q", h1)
	}
}

// Package runtimecheck checks the runtime, baseapp, sdk and extension
// references of an application manifest against a flatpak remote.
//
// All version information comes from the remote: every runtime, baseapp and
// extension is resolved to the freedesktop sdk version it targets, and a
// coherent update is only offered when runtime and baseapp can move together.
// Only the main manifest file is inspected.
package runtimecheck

import (
	"fmt"
	"strings"

	"github.com/flathub/fedc-action/internal/common/git"
	"github.com/flathub/fedc-action/internal/common/logger"
	"github.com/flathub/fedc-action/internal/manifest"
)

// Result holds the outcome of one runtime check.
type Result struct {
	// AppID is the id of the checked application
	AppID string
	// RuntimeVersion is the new runtime-version, empty when no update
	RuntimeVersion string
	// BaseVersion is the new base-version, empty when no update
	BaseVersion string
	// SDKVersion is the new branch for an explicitly versioned sdk
	SDKVersion string
	// Branch and DefaultBranch follow the runtime version when they
	// tracked it before the update
	Branch        string
	DefaultBranch string
	// Extensions maps checked extension names to their latest version
	Extensions map[string]string
	// Reason explains why no update is offered, empty otherwise
	Reason string
}

// HasUpdate reports whether any manifest key would change.
func (r *Result) HasUpdate() bool {
	return r.RuntimeVersion != "" || r.BaseVersion != ""
}

// Changes returns the manifest keys to rewrite for this result.
func (r *Result) Changes() map[string]string {
	changes := map[string]string{}
	if r.RuntimeVersion != "" {
		changes["runtime-version"] = r.RuntimeVersion
	}
	if r.BaseVersion != "" {
		changes["base-version"] = r.BaseVersion
	}
	if r.Branch != "" {
		changes["branch"] = r.Branch
	}
	if r.DefaultBranch != "" {
		changes["default-branch"] = r.DefaultBranch
	}
	return changes
}

// pointState tracks one add-extensions / add-build-extensions entry
// while its declared versions are checked.
type pointState struct {
	version     string
	versions    string
	latest      string
	selfDefined bool
}

// Checker checks manifests against a single remote.
type Checker struct {
	remote Remote
	git    git.Executor

	refs          []Ref
	metadataCache map[string][]string
	// foundExtensionPoints remembers extension points that turned out to
	// be provided by the app itself
	foundExtensionPoints map[string]bool

	appID              string
	addExtensions      map[string]*pointState
	addBuildExtensions map[string]*pointState
	result             *Result
}

// Option is a functional option for configuring Checker
type Option func(*Checker)

// WithGit provides a git executor used to detect runtime-locked branches.
func WithGit(g git.Executor) Option {
	return func(c *Checker) {
		c.git = g
	}
}

// NewChecker creates a Checker for the given remote.
func NewChecker(remote Remote, opts ...Option) *Checker {
	c := &Checker{
		remote: remote,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check inspects the manifest and determines the latest coherent set of
// runtime, base, sdk and extension versions. A remote failure is an error;
// a manifest that simply cannot be updated yields a Result with a Reason.
func (c *Checker) Check(m *manifest.Manifest) (*Result, error) {
	c.result = &Result{Extensions: map[string]string{}}
	c.metadataCache = map[string][]string{}
	c.foundExtensionPoints = map[string]bool{}
	c.addExtensions = nil
	c.addBuildExtensions = nil

	if !m.IsApp() {
		c.result.Reason = "not an application manifest"
		return c.result, nil
	}
	c.appID = m.ID()
	c.result.AppID = c.appID

	runtime := m.Runtime()
	runtimeVersion := m.RuntimeVersion()
	base := m.Base()
	baseVersion := m.BaseVersion()

	if runtime == "" && base == "" {
		logger.Info("No runtime versions to check")
		c.result.Reason = "no runtime versions to check"
		return c.result, nil
	}

	if locked, branch := c.runtimeLockedBranch(); locked {
		c.result.Reason = fmt.Sprintf(
			"will not check for runtime updates on %s's runtime version locked branch %s",
			c.remote.Name(), branch)
		logger.Info(c.result.Reason)
		return c.result, nil
	}

	refs, err := c.remote.Refs()
	if err != nil {
		return nil, err
	}
	c.refs = refs

	latestRuntime, _, _ := c.versions(runtime, runtimeVersion)
	latestBase, _, latestBaseTarget := c.versions(base, baseVersion)

	runtimeUpdate := runtime != "" && manifest.NewerBranch(latestRuntime, runtimeVersion)
	baseUpdate := base != "" && manifest.NewerBranch(latestBase, baseVersion)

	if base != "" {
		// A baseapp only updates together with a runtime targeting the
		// same freedesktop sdk version.
		runtimeTarget := c.freedesktopTarget(runtime, latestRuntime)
		if latestBaseTarget != "" && runtimeTarget != "" && runtimeTarget == latestBaseTarget {
			if runtimeUpdate {
				c.result.RuntimeVersion = latestRuntime
			}
			if baseUpdate {
				c.result.BaseVersion = latestBase
			}
			if !runtimeUpdate && !baseUpdate {
				c.result.Reason = "no new runtime available"
			}
		} else {
			c.result.Reason = "could not find matching base for latest runtime version"
		}
	} else {
		if runtimeUpdate {
			c.result.RuntimeVersion = latestRuntime
		} else {
			c.result.Reason = "no new runtime available"
		}
	}

	// An sdk with an explicit branch is checked independently
	sdkName, sdkBranch := m.SDKRef()
	if sdkName != "" && sdkBranch != "" {
		logger.Debug("detected sdk with version explicitly specified")
		sdkLatest, _, _ := c.versions(sdkName, sdkBranch)
		if c.freedesktopTarget(sdkName, sdkLatest) == c.freedesktopTarget(runtime, latestRuntime) {
			if manifest.NewerBranch(sdkLatest, sdkBranch) {
				c.result.SDKVersion = sdkLatest
			}
			c.result.Reason = ""
		}
	}

	// Extensions are checked against the sdk when it was explicitly
	// versioned, otherwise against the runtime.
	sdkToCheck := runtime
	sdkVersionToCheck := runtimeVersion
	sdkLatestToCheck := latestRuntime
	if c.result.SDKVersion != "" {
		sdkToCheck = sdkName
		sdkVersionToCheck = sdkBranch
		sdkLatestToCheck = c.result.SDKVersion
	}

	c.addExtensions = newPointStates(m.ExtensionPoints(manifest.CategoryAddExtensions))
	c.addBuildExtensions = newPointStates(m.ExtensionPoints(manifest.CategoryAddBuildExtensions))
	c.checkExtensionPoints(c.addExtensions, sdkToCheck, sdkLatestToCheck)
	c.checkExtensionPoints(c.addBuildExtensions, sdkToCheck, sdkLatestToCheck)

	c.checkExtensionList(m, manifest.CategorySDKExtensions,
		sdkToCheck, sdkVersionToCheck, sdkLatestToCheck, "", "", false)
	c.checkExtensionList(m, manifest.CategoryPlatformExtensions,
		sdkToCheck, sdkVersionToCheck, sdkLatestToCheck, "", "", false)
	c.checkExtensionList(m, manifest.CategoryInheritExtensions,
		sdkToCheck, sdkVersionToCheck, sdkLatestToCheck, base, latestBase, false)
	c.checkExtensionList(m, manifest.CategoryInheritSDKExtensions,
		sdkToCheck, sdkVersionToCheck, sdkLatestToCheck, base, latestBase, false)
	c.checkExtensionList(m, manifest.CategoryBaseExtensions,
		runtime, runtimeVersion, latestRuntime, base, latestBase, true)

	c.checkBranch(m.Branch(), m.DefaultBranch(), runtimeVersion)

	return c.result, nil
}

// runtimeLockedBranch reports whether the checked-out git branch pins the
// runtime version (flathub's branch/$version branches).
func (c *Checker) runtimeLockedBranch() (bool, string) {
	if c.git == nil {
		return false, ""
	}
	branch, err := c.git.CurrentBranch()
	if err != nil {
		logger.Info("Not a valid git repository, cannot check if the git branch provides a runtime version")
		return false, ""
	}
	if strings.HasPrefix(branch, "branch/") {
		return true, branch
	}
	return false, ""
}

// cancelUpdate clears every planned change and records why.
func (c *Checker) cancelUpdate(reason string) {
	c.result.Reason = reason
	c.result.RuntimeVersion = ""
	c.result.BaseVersion = ""
	c.result.Extensions = map[string]string{}
	for _, p := range c.addExtensions {
		p.latest = ""
	}
	for _, p := range c.addBuildExtensions {
		p.latest = ""
	}
}

// versions returns the latest published version of a runtime or baseapp,
// the versions at or below the given one, and the freedesktop target of
// the latest version. The name must be the exact published ref id.
func (c *Checker) versions(name, version string) (latest string, older map[string]string, latestTarget string) {
	if name == "" {
		return "", nil, ""
	}

	entries := map[string]string{}
	givenTarget := ""
	for _, ref := range c.refs {
		if ref.Name != name {
			continue
		}
		if ref.Target != "" {
			givenTarget = ref.Target
			target := c.freedesktopTarget(ref.TargetName(), ref.TargetBranch())
			entries[target+"/"+ref.TargetBranch()] = ref.Branch
		} else {
			// A proper runtime carries no target column; resolve it so
			// branches that sort high but are old (5.11 vs 5.9) lose.
			target := c.freedesktopTarget(ref.Name, ref.Branch)
			entries[target+"/"+ref.Branch] = ref.Branch
		}
	}

	// The LinuxAudio base extension grew a stable branch that confuses
	// version selection; pin its 21.08 entries.
	if name == "org.freedesktop.LinuxAudio.BaseExtension" {
		if _, ok := entries["21.08"]; ok {
			entries["21.08"] = "21.08"
		} else if _, ok := entries["21.08/21.08"]; ok {
			entries["21.08/21.08"] = "21.08"
		}
	}

	// KDE maintains runtimes for multiple Qt major versions in parallel;
	// never move an app across major versions.
	if strings.Contains(name, "org.kde.") || strings.Contains(givenTarget, "org.kde.") {
		for k, v := range entries {
			if manifest.MajorBranch(v) != manifest.MajorBranch(version) {
				delete(entries, k)
			}
		}
	}

	if len(entries) == 0 {
		logger.Info("Ref %s is unknown and not in %s", name, c.remote.Name())
		return version, nil, ""
	}

	maxKey := ""
	for k := range entries {
		if maxKey == "" || compareEntryKeys(k, maxKey) > 0 {
			maxKey = k
		}
	}
	latest = entries[maxKey]

	currentKey := ""
	for k, v := range entries {
		if v == version {
			currentKey = k
			break
		}
	}
	older = map[string]string{}
	if currentKey != "" {
		for k, v := range entries {
			if compareEntryKeys(k, currentKey) <= 0 {
				older[k] = v
			}
		}
	} else {
		for k, v := range entries {
			older[k] = v
		}
	}

	latestTarget = strings.SplitN(maxKey, "/", 2)[0]
	return latest, older, latestTarget
}

// compareEntryKeys orders "<target>/<branch>" keys, each part branch-aware.
func compareEntryKeys(a, b string) int {
	partsA := strings.SplitN(a, "/", 2)
	partsB := strings.SplitN(b, "/", 2)

	if cmp := manifest.CompareBranches(partsA[0], partsB[0]); cmp != 0 {
		return cmp
	}
	var restA, restB string
	if len(partsA) == 2 {
		restA = partsA[1]
	}
	if len(partsB) == 2 {
		restB = partsB[1]
	}
	return manifest.CompareBranches(restA, restB)
}

// metadata returns the keyfile lines of name//version, cached per check.
func (c *Checker) metadata(name, version string) []string {
	cacheKey := name + "//" + version
	if lines, ok := c.metadataCache[cacheKey]; ok {
		return lines
	}

	lines, err := c.remote.RefMetadata(name, version)
	if err != nil {
		logger.Error("Could not find %s//%s in %s", name, version, c.remote.Name())
		lines = nil
	}
	c.metadataCache[cacheKey] = lines
	return lines
}

// extensionTarget resolves a ref that is itself an extension to the ref it
// extends, e.g. org.gnome.Platform.Compat.i386 to its freedesktop equivalent.
func (c *Checker) extensionTarget(name, version string) (string, string) {
	candidate := false
	for _, line := range c.metadata(name, version) {
		l := strings.ReplaceAll(line, " ", "")
		if l == "[ExtensionOf]" {
			candidate = true
		} else if candidate && strings.HasPrefix(l, "ref=") {
			parts := strings.Split(l[len("ref="):], "/")
			if len(parts) >= 4 {
				return parts[1], parts[3]
			}
		}
	}
	return name, version
}

// baseappTarget returns the sdk ref a baseapp targets; non-baseapps are
// returned unchanged.
func (c *Checker) baseappTarget(name, version string) (string, string) {
	candidate := false
	for _, line := range c.metadata(name, version) {
		if line == "[Application]" {
			candidate = true
		} else if candidate && strings.HasPrefix(line, "sdk=") {
			parts := strings.Split(line[len("sdk="):], "/")
			if len(parts) == 3 {
				return parts[0], parts[2]
			}
		}
	}
	return name, version
}

// isExtensionOfRef reports whether ext is a declared extension point of ref.
func (c *Checker) isExtensionOfRef(name, version, ext string) bool {
	for _, line := range c.metadata(name, version) {
		if line == "[Extension "+ext+"]" {
			return true
		}
	}
	return false
}

// freedesktopTarget finds the freedesktop runtime version a ref targets,
// e.g. gnome 42 targets freedesktop 21.08. Needed when updating base and
// runtime together, since both must target the same freedesktop version.
func (c *Checker) freedesktopTarget(name, version string) string {
	if name == "" || version == "" {
		return ""
	}
	if strings.Contains(name, "org.freedesktop.") {
		return version
	}

	// Some refs, like org.gimp.GIMP, serve as runtimes for extensions;
	// their target column resolves them directly.
	for _, ref := range c.refs {
		if ref.Name == name && ref.Branch == version && ref.Target != "" {
			return c.freedesktopTarget(ref.TargetName(), ref.TargetBranch())
		}
	}

	name, version = c.extensionTarget(name, version)
	name, version = c.baseappTarget(name, version)
	if strings.Contains(name, "org.freedesktop.") {
		return version
	}

	candidate := false
	for _, line := range c.metadata(name, version) {
		l := strings.ReplaceAll(line, " ", "")
		switch {
		case l == "[Extensionorg.freedesktop.Platform.Timezones]":
			candidate = true
		case candidate && strings.HasPrefix(l, "version="):
			return l[len("version="):]
		case l == "":
			candidate = false
		}
	}
	return ""
}

// cleanExtensionName maps manifest extension names to the ref ids the
// remote actually publishes.
func cleanExtensionName(name string) string {
	switch name {
	case "org.freedesktop.Platform.GL32":
		return name + ".default"
	case "org.freedesktop.LinuxAudio.Plugins":
		// the base extension is what defines the Plugins version
		return "org.freedesktop.LinuxAudio.BaseExtension"
	}
	return name
}

// uncleanExtensionName is the inverse of cleanExtensionName.
func uncleanExtensionName(name string) string {
	switch name {
	case "org.freedesktop.Platform.GL32.default":
		return "org.freedesktop.Platform.GL32"
	case "org.freedesktop.LinuxAudio.BaseExtension":
		return "org.freedesktop.LinuxAudio.Plugins"
	}
	return name
}

// extensionVersions finds the latest version of an extension and the ref it
// extends. Extensions provided by the app itself are detected and resolved
// through the app's own versions.
func (c *Checker) extensionVersions(name, version string) (latest, coreName, coreVersion string, older map[string]string, selfDefined bool) {
	cleaned := cleanExtensionName(name)

	latest, older, _ = c.versions(cleaned, version)
	coreName, coreVersion = c.extensionTarget(cleaned, latest)
	selfDefined = coreName == c.appID

	// No known older versions usually means the extension is provided by
	// the app itself rather than published on the remote.
	if len(older) == 0 {
		fallbackName, fallbackVersion := c.extensionTarget(cleaned, version)
		if fallbackName == c.appID {
			latest, older, _ = c.versions(fallbackName, version)
			coreName, coreVersion = fallbackName, fallbackVersion
			selfDefined = true
		} else {
			// Guess the providing ref by stripping the last name segment
			parts := strings.Split(name, ".")
			parent := strings.Join(parts[:len(parts)-1], ".")

			if c.foundExtensionPoints[name] || c.isExtensionOfRef(parent, "", name) {
				selfDefined = true
				c.foundExtensionPoints[name] = true
				latest, older, _ = c.versions(parent, version)
				coreName = parent
			}
		}
	}

	return latest, coreName, coreVersion, older, selfDefined
}

// isDeclaredExtensionPoint reports whether the manifest itself declares the
// extension point under add-extensions or add-build-extensions.
func (c *Checker) isDeclaredExtensionPoint(name string) bool {
	if _, ok := c.addExtensions[name]; ok {
		return true
	}
	_, ok := c.addBuildExtensions[name]
	return ok
}

// checkExtensionVersions verifies that the latest version of an extension
// still targets the runtime the app will use after the update.
func (c *Checker) checkExtensionVersions(extName, extVersion, targetName, targetVersion string, selfDefined bool) bool {
	coreName, _ := c.extensionTarget(extName, extVersion)

	if coreName != "org.freedesktop.Platform" &&
		coreName != "org.freedesktop.Sdk" &&
		!c.isDeclaredExtensionPoint(uncleanExtensionName(coreName)) &&
		!selfDefined &&
		coreName != extName &&
		strings.ReplaceAll(coreName, ".Platform", ".Sdk") != strings.ReplaceAll(targetName, ".Platform", ".Sdk") {
		logger.Warn("Extension %s does not target %s//%s; cannot update runtime version",
			extName, targetName, targetVersion)
		return false
	}

	if c.freedesktopTarget(extName, extVersion) != c.freedesktopTarget(targetName, targetVersion) &&
		!selfDefined {
		logger.Error("Could not find updated version of extension %s, will not update this extension", extName)
		return false
	}
	return true
}

// checkExtensionList checks one list-valued extension category.
// sdk-extensions and platform-extensions must come from the app's sdk;
// inherit categories may also come from the baseapp; base-extensions must
// come from the baseapp only.
func (c *Checker) checkExtensionList(m *manifest.Manifest, category, targetName, targetVersion, targetLatest, base, baseLatest string, onlyBase bool) {
	for _, ext := range m.ExtensionNames(category) {
		latest, coreName, coreVersion, _, selfDefined := c.extensionVersions(ext, targetVersion)

		switch {
		case coreName != "" && base != "" && coreName == base:
			if c.checkExtensionVersions(ext, latest, coreName, baseLatest, selfDefined) {
				c.result.Extensions[ext] = latest
			} else {
				reason := fmt.Sprintf("extension %s is not available for base %s, not offering runtime updates", ext, base)
				logger.Error(reason)
				c.cancelUpdate(reason)
			}

		case coreName != "" && !onlyBase:
			// If this resolves to a baseapp it must not be checked here
			potentialBase, potentialBaseVersion := c.baseappTarget(coreName, coreVersion)
			if potentialBase == coreName && potentialBaseVersion == coreVersion &&
				c.checkExtensionVersions(ext, latest, targetName, targetLatest, selfDefined) {
				c.result.Extensions[ext] = latest
			} else {
				reason := fmt.Sprintf("extension %s is not available for runtime/sdk %s, not offering runtime updates", ext, targetLatest)
				logger.Error(reason)
				c.cancelUpdate(reason)
			}

		default:
			reason := fmt.Sprintf("unable to find recent version of extension %s, not offering runtime updates", ext)
			logger.Error(reason)
			c.cancelUpdate(reason)
		}
	}
}

// newPointStates converts manifest extension points into mutable check state.
func newPointStates(points map[string]manifest.ExtensionPoint) map[string]*pointState {
	states := make(map[string]*pointState, len(points))
	for name, point := range points {
		states[name] = &pointState{
			version:  point.Version,
			versions: point.Versions,
		}
	}
	return states
}

// splitVersions splits a semicolon-separated version property.
func splitVersions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// checkExtensionPoints checks add-extensions and add-build-extensions:
// the extension points the app offers must stay available on the updated sdk.
func (c *Checker) checkExtensionPoints(points map[string]*pointState, sdkTarget, sdkTargetVersion string) {
	for name, p := range points {
		declared := splitVersions(p.version)
		if len(declared) > 1 {
			logger.Error("version property %s of extension point %s contains more than one version",
				p.version, name)
		}
		combined := append(declared, splitVersions(p.versions)...)
		if len(combined) == 0 {
			combined = []string{sdkTargetVersion}
		}

		for _, sub := range combined {
			latest, _, _, _, selfDefined := c.extensionVersions(name, sub)
			if latest != "" {
				p.latest = latest
			}
			p.selfDefined = selfDefined
		}
	}

	for name, p := range points {
		if !c.checkExtensionVersions(name, p.latest, sdkTarget, sdkTargetVersion, p.selfDefined) {
			reason := fmt.Sprintf("cannot update extension point %s to %s against %s//%s",
				name, p.latest, sdkTarget, sdkTargetVersion)
			logger.Info(reason)
			c.cancelUpdate(reason)
			// one stuck extension point blocks the rest
			break
		}
	}
}

// checkBranch follows branch and default-branch along a runtime update when
// they tracked the runtime version before it.
func (c *Checker) checkBranch(branch, defaultBranch, runtimeVersion string) {
	if c.result.RuntimeVersion == "" {
		return
	}
	if defaultBranch != "" && defaultBranch == runtimeVersion {
		c.result.DefaultBranch = c.result.RuntimeVersion
	}
	if branch != "" && branch == runtimeVersion {
		c.result.Branch = c.result.RuntimeVersion
	}
}

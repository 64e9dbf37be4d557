// Package manifest reads and updates flatpak application manifests.
//
// Manifests come in JSON (.json) and YAML (.yml/.yaml) flavors. The package
// keeps the parsed document as a generic map so unknown keys survive a
// round-trip, and only rewrites the scalar keys the checkers touch.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the manifest serialization format.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var (
	ErrUnknownFormat = errors.New("unknown manifest format: expected .json, .yml or .yaml")
	ErrNotAManifest  = errors.New("file does not look like a flatpak manifest")
)

// Extension point categories whose entries are lists of extension names.
const (
	CategorySDKExtensions        = "sdk-extensions"
	CategoryPlatformExtensions   = "platform-extensions"
	CategoryInheritExtensions    = "inherit-extensions"
	CategoryInheritSDKExtensions = "inherit-sdk-extensions"
	CategoryBaseExtensions       = "base-extensions"
)

// Extension point categories whose entries carry version metadata.
const (
	CategoryAddExtensions      = "add-extensions"
	CategoryAddBuildExtensions = "add-build-extensions"
)

// ExtensionPoint describes one entry of add-extensions or add-build-extensions.
type ExtensionPoint struct {
	// Version is the "version" property, a single branch
	Version string
	// Versions is the "versions" property, semicolon-separated branches
	Versions string
}

// Manifest is a parsed flatpak manifest bound to its file on disk.
type Manifest struct {
	path   string
	format Format
	data   map[string]interface{}
}

// FormatForPath derives the manifest format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yml", ".yaml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	m.path = path
	return m, nil
}

// Parse parses manifest bytes in the given format.
func Parse(data []byte, format Format) (*Manifest, error) {
	doc := map[string]interface{}{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}

	return &Manifest{format: format, data: doc}, nil
}

// Path returns the manifest file path, empty for Parse-built manifests.
func (m *Manifest) Path() string {
	return m.path
}

// getString returns the value of a top-level string key.
func (m *Manifest) getString(key string) string {
	if v, ok := m.data[key].(string); ok {
		return v
	}
	return ""
}

// ID returns the application id, from "id" or the legacy "app-id" key.
func (m *Manifest) ID() string {
	if id := m.getString("id"); id != "" {
		return id
	}
	return m.getString("app-id")
}

// IsApp reports whether this is an application manifest.
func (m *Manifest) IsApp() bool {
	return m.ID() != ""
}

func (m *Manifest) Runtime() string        { return m.getString("runtime") }
func (m *Manifest) RuntimeVersion() string { return m.getString("runtime-version") }
func (m *Manifest) Base() string           { return m.getString("base") }
func (m *Manifest) BaseVersion() string    { return m.getString("base-version") }
func (m *Manifest) SDK() string            { return m.getString("sdk") }
func (m *Manifest) Branch() string         { return m.getString("branch") }
func (m *Manifest) DefaultBranch() string  { return m.getString("default-branch") }

// SDKRef splits an sdk value of the form name/arch/branch.
// A plain sdk name yields an empty branch.
func (m *Manifest) SDKRef() (name, branch string) {
	sdk := m.SDK()
	parts := strings.Split(sdk, "/")
	if len(parts) == 3 {
		return parts[0], parts[2]
	}
	return sdk, ""
}

// ExtensionNames returns the entries of a list-valued extension category,
// such as sdk-extensions or inherit-extensions.
func (m *Manifest) ExtensionNames(category string) []string {
	raw, ok := m.data[category].([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// ExtensionPoints returns the entries of add-extensions or
// add-build-extensions keyed by extension point name.
func (m *Manifest) ExtensionPoints(category string) map[string]ExtensionPoint {
	raw, ok := m.data[category].(map[string]interface{})
	if !ok {
		return nil
	}

	points := make(map[string]ExtensionPoint, len(raw))
	for name, entry := range raw {
		point := ExtensionPoint{}
		if props, ok := entry.(map[string]interface{}); ok {
			if v, ok := props["version"].(string); ok {
				point.Version = v
			}
			if v, ok := props["versions"].(string); ok {
				point.Versions = v
			}
		}
		points[name] = point
	}
	return points
}

// ModulePaths returns the string entries of "modules": references to
// external module manifest files, relative to this manifest.
func (m *Manifest) ModulePaths() []string {
	raw, ok := m.data["modules"].([]interface{})
	if !ok {
		return nil
	}
	var paths []string
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths
}

// Set replaces a top-level scalar key in the document.
func (m *Manifest) Set(key, value string) {
	m.data[key] = value
}

// Bytes serializes the manifest in its original format.
func (m *Manifest) Bytes() ([]byte, error) {
	switch m.format {
	case FormatJSON:
		out, err := json.MarshalIndent(m.data, "", "    ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(m.data)
	default:
		return nil, ErrUnknownFormat
	}
}

// ApplyChanges sets the given keys and writes the manifest back to disk.
// An empty change set leaves the file untouched.
func (m *Manifest) ApplyChanges(changes map[string]string) error {
	if len(changes) == 0 {
		return nil
	}
	if m.path == "" {
		return errors.New("manifest has no backing file")
	}

	for key, value := range changes {
		m.Set(key, value)
	}

	data, err := m.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

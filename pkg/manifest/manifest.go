// Package manifest loads and validates the optional YAML sidecar describing
// a filter module. A sidecar named after the module (scaler.so -> scaler.yaml)
// carries identity and protocol API version metadata; the module itself
// remains the source of truth for its capabilities.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIVersion is the protocol API version this host implements. Modules
// declaring a different major version are rejected before loading.
const APIVersion = "1.0.0"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest describes filter module metadata
type Manifest struct {
	ID          string            `yaml:"id"`          // Unique ID (e.g., "nearest-scaler")
	Name        string            `yaml:"name"`        // Display name
	Version     string            `yaml:"version"`     // Semver
	APIVersion  string            `yaml:"api_version"` // Protocol API version
	Description string            `yaml:"description"` // Short description
	Author      string            `yaml:"author"`      // Author name
	License     string            `yaml:"license"`     // License (e.g., MIT, Apache-2.0)
	Homepage    string            `yaml:"homepage"`    // Homepage URL
	Metadata    map[string]string `yaml:"metadata"`    // Additional metadata
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SidecarPath returns the manifest path for a module path (extension swapped
// for .yaml).
func SidecarPath(modulePath string) string {
	ext := filepath.Ext(modulePath)
	return strings.TrimSuffix(modulePath, ext) + ".yaml"
}

// Load loads and parses a manifest from a file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}

// LoadForModule loads the sidecar manifest of a module, if present. A
// missing sidecar yields (nil, nil); a malformed one is an error.
func LoadForModule(modulePath string) (*Manifest, error) {
	path := SidecarPath(modulePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return Load(path)
}

// Save writes a manifest to a file
func Save(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Validate performs basic validation on a manifest
func Validate(m *Manifest) []ValidationError {
	var errors []ValidationError

	if m.ID == "" {
		errors = append(errors, ValidationError{
			Field:   "id",
			Message: "Module ID is required",
		})
	}

	if m.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "name",
			Message: "Module name is required",
		})
	}

	if m.Version == "" {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: "Version is required",
		})
	}

	if m.APIVersion == "" {
		errors = append(errors, ValidationError{
			Field:   "api_version",
			Message: "API version is required",
		})
	}

	if m.Version != "" && !isValidSemver(m.Version) {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", m.Version),
		})
	}

	if m.APIVersion != "" && !isValidSemver(m.APIVersion) {
		errors = append(errors, ValidationError{
			Field:   "api_version",
			Message: fmt.Sprintf("Invalid semver format: %s", m.APIVersion),
		})
	}

	return errors
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

// IsCompatibleAPIVersion checks if a module's API version is compatible with
// the host: major versions must match.
func IsCompatibleAPIVersion(moduleAPIVersion, hostAPIVersion string) bool {
	moduleMajor := extractMajorVersion(moduleAPIVersion)
	hostMajor := extractMajorVersion(hostAPIVersion)

	return moduleMajor == hostMajor
}

func extractMajorVersion(version string) string {
	matches := semverRegex.FindStringSubmatch(version)
	if len(matches) > 1 {
		return matches[1]
	}
	return "0"
}

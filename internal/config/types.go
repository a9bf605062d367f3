package config

import "strings"

// Target describes a build platform (OS/architecture/toolchain triple).
// Targets are immutable after configuration load.
type Target struct {
	Name      string `yaml:"name"`
	OS        string `yaml:"os"`
	Arch      string `yaml:"arch"`
	Toolchain string `yaml:"toolchain,omitempty"` // toolchain channel, defaults to "stable"
}

// CategoryKind distinguishes mutually-exclusive toggle groups from additive ones.
type CategoryKind string

const (
	CategoryExclusive CategoryKind = "exclusive"
	CategoryAdditive  CategoryKind = "additive"
)

// Category groups feature toggles. At most one toggle of an exclusive
// category may appear in a combination; mandatory categories must be
// represented in every combination.
type Category struct {
	Name      string       `yaml:"name"`
	Kind      CategoryKind `yaml:"kind"`
	Mandatory bool         `yaml:"mandatory,omitempty"`
}

// Feature is a named capability switch compiled into a build variant.
type Feature struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Platform []string `yaml:"platforms,omitempty"` // OS names where valid; empty = all
	Requires []string `yaml:"requires,omitempty"`  // companion toggles that must be present
}

// SupportsOS reports whether the feature is valid on the given OS.
func (f Feature) SupportsOS(os string) bool {
	if len(f.Platform) == 0 {
		return true
	}
	for _, p := range f.Platform {
		if strings.EqualFold(p, os) {
			return true
		}
	}
	return false
}

// Combination is an ordered set of feature toggle names forming one build variant.
type Combination []string

// SourceConfig points at the repository whose binary the matrix builds.
type SourceConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`

	// Tool is the build tool invoked per job. Defaults to "cargo".
	Tool string `yaml:"tool,omitempty"`

	// Binary is the artifact file the build produces inside the build
	// output directory. Empty disables artifact upload.
	Binary string `yaml:"binary,omitempty"`

	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthType enumerates supported authentication methods (stringly for YAML compatibility).
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents authentication configuration for git and registries.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunProfile is a named, YAML-defined bundle of run defaults: which
// capabilities a run's tools start with, how many may execute
// concurrently, and which compiled policy files gate it. Operators
// select a profile by code (e.g. "sandboxed", "trusted") instead of
// wiring each run's controller.Config by hand.
type RunProfile struct {
	Name          string   `yaml:"name" json:"name"`
	Code          string   `yaml:"code" json:"code"`
	Capabilities  []string `yaml:"capabilities" json:"capabilities"`
	MaxConcurrent int      `yaml:"max_concurrent" json:"max_concurrent"`
	ToolTimeoutMs int      `yaml:"tool_timeout_ms" json:"tool_timeout_ms"`
	Policies      []string `yaml:"policies,omitempty" json:"policies,omitempty"`
}

// LoadProfile reads profilesDir/profile_<code>.yaml and decodes it into a
// RunProfile. The code in the filename is used verbatim if the document
// omits its own code field.
func LoadProfile(profilesDir, code string) (*RunProfile, error) {
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading profile %q: %w", code, err)
	}

	var profile RunProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parsing profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllProfiles reads every profile_*.yaml file in profilesDir, keyed
// by code.
func LoadAllProfiles(profilesDir string) (map[string]*RunProfile, error) {
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("config: reading profiles dir: %w", err)
	}

	profiles := make(map[string]*RunProfile)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "profile_") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		code := strings.TrimSuffix(strings.TrimPrefix(name, "profile_"), ".yaml")
		profile, err := LoadProfile(profilesDir, code)
		if err != nil {
			return nil, err
		}
		profiles[code] = profile
	}
	return profiles, nil
}

// HasCapability reports whether p's capability list grants cap exactly
// (profiles name concrete capabilities, not wildcard patterns).
func (p *RunProfile) HasCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

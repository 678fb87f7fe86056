// Package dga implements the lab's seeded domain generation algorithm and
// the profile shared by the traffic generator and the endpoint simulator.
package dga

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes one DGA campaign: the seed material, the label shape,
// the TLD pool, and the rotation schedule. Both the victim and the endpoint
// load the same profile so their label sets line up.
type Profile struct {
	Seed           string   `yaml:"seed"`
	LabelLength    int      `yaml:"label_length"`
	SetSize        int      `yaml:"set_size"`
	ActiveCount    int      `yaml:"active_count"`
	RotateSeconds  int      `yaml:"rotate_seconds"`
	TLDs           []string `yaml:"tlds"`
	AllowedDomains []string `yaml:"allowed_domains"`
}

// DefaultProfile mirrors the canonical lab campaign.
func DefaultProfile() Profile {
	return Profile{
		Seed:          "spreadlove",
		LabelLength:   12,
		SetSize:       10,
		ActiveCount:   5,
		RotateSeconds: 50,
		TLDs: []string{
			".com", ".net", ".xyz", ".top", ".site",
			".online", ".club", ".tk", ".pw", ".cc",
		},
		AllowedDomains: []string{"google.com", "microsoft.com", "facebook.com"},
	}
}

// LoadProfile reads a profile YAML, filling unset fields from the default
// profile. An empty path yields the default profile.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}

	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return profile, nil
}

// Validate rejects profiles the generator cannot honor.
func (p Profile) Validate() error {
	if p.Seed == "" {
		return fmt.Errorf("seed must not be empty")
	}
	if p.LabelLength < 1 {
		return fmt.Errorf("label_length must be at least 1")
	}
	if p.SetSize < 1 {
		return fmt.Errorf("set_size must be at least 1")
	}
	if p.ActiveCount < 0 || p.ActiveCount > p.SetSize {
		return fmt.Errorf("active_count must be between 0 and set_size")
	}
	if p.RotateSeconds < 1 {
		return fmt.Errorf("rotate_seconds must be at least 1")
	}
	if len(p.TLDs) == 0 {
		return fmt.Errorf("tlds must not be empty")
	}
	return nil
}

// RotateInterval returns the rotation period as a duration.
func (p Profile) RotateInterval() time.Duration {
	return time.Duration(p.RotateSeconds) * time.Second
}

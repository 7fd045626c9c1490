package config

import (
	"sort"
	"time"
)

// Registry represents the entire user configuration file.
// It stores named connection profiles and application preferences.
type Registry struct {
	Version     int                 `yaml:"version"`
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Profile is a saved endpoint together with the client settings used for it.
type Profile struct {
	URL         string    `yaml:"url"`                   // ws:// or wss:// endpoint
	Description string    `yaml:"description,omitempty"` // Free-form note
	Config      Config    `yaml:"config"`                // Client settings
	LastUsed    time.Time `yaml:"last_used,omitempty"`   // Last connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultProfile  string `yaml:"default_profile,omitempty"` // Used by connect when no URL is given
	CaptureDir      string `yaml:"capture_dir,omitempty"`     // Default --capture-dir
	DiscoverTimeout int    `yaml:"discover_timeout"`          // mDNS discovery timeout in seconds
}

func defaultPreferences() *Preferences {
	return &Preferences{DiscoverTimeout: 5}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Profiles:    make(map[string]*Profile),
		Preferences: defaultPreferences(),
	}
}

// GetProfile returns the named profile with defaults applied, or nil.
func (r *Registry) GetProfile(name string) *Profile {
	p, ok := r.Profiles[name]
	if !ok {
		return nil
	}
	cp := *p
	cp.Config = p.Config.WithDefaults().Clone()
	return &cp
}

// SetProfile creates or replaces a profile.
func (r *Registry) SetProfile(name, url, description string, cfg Config) {
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = &Profile{
		URL:         url,
		Description: description,
		Config:      cfg.Clone(),
	}
}

// DeleteProfile removes a profile and reports whether it existed.
func (r *Registry) DeleteProfile(name string) bool {
	if _, ok := r.Profiles[name]; !ok {
		return false
	}
	delete(r.Profiles, name)
	if r.Preferences != nil && r.Preferences.DefaultProfile == name {
		r.Preferences.DefaultProfile = ""
	}
	return true
}

// TouchProfile records a successful connection.
func (r *Registry) TouchProfile(name string) {
	if p, ok := r.Profiles[name]; ok {
		p.LastUsed = time.Now()
	}
}

// ProfileNames returns the profile names in sorted order.
func (r *Registry) ProfileNames() []string {
	names := make([]string, 0, len(r.Profiles))
	for name := range r.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

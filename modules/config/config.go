// Package config implements repository configuration: parsing and
// rewriting the INI-style "config" file under a repository's control
// directory, the one piece of the external key/value surface the core
// treats as a generic map rather than a fixed schema.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gitcore/gitcore/modules/plumbing"
)

// Section holds every option recorded under one [name] or
// [name "subsection"] block, keyed by option name. Go map iteration order
// is randomized, so Options is kept alongside an explicit Order slice
// recording first-insertion order for round-tripping and for List's
// sorted-by-key contract.
type Section struct {
	Name       string
	Subsection string
	Options    map[string]string
	Order      []string

	owner *Config
}

func newSection(owner *Config, name, subsection string) *Section {
	return &Section{Name: name, Subsection: subsection, Options: make(map[string]string), owner: owner}
}

func (s *Section) set(key, value string) {
	if _, ok := s.Options[key]; !ok {
		s.Order = append(s.Order, key)
	}
	s.Options[key] = value
}

func (s *Section) unset(key string) bool {
	if _, ok := s.Options[key]; !ok {
		return false
	}
	delete(s.Options, key)
	for i, k := range s.Order {
		if k == key {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Section) empty() bool { return len(s.Options) == 0 }

// Config is the full parsed contents of one config file: an ordered list
// of sections, each addressed by (name, subsection).
type Config struct {
	sections []*Section
}

// New returns an empty Config.
func New() *Config {
	return &Config{}
}

// Section returns (creating if absent) the unnamed-subsection section
// called name, e.g. Section("core") or Section("user").
func (c *Config) Section(name string) *Section {
	return c.section(name, "")
}

// Subsection returns (creating if absent) the named subsection of s, e.g.
// c.Section("remote").Subsection("origin"). Mirrors the decoder
// callback's two-step shape for a section header with no keys yet, e.g.
// a bare `[remote "origin"]` line.
func (s *Section) Subsection(name string) *Section {
	return s.owner.section(s.Name, name)
}

func (c *Config) section(name, subsection string) *Section {
	for _, s := range c.sections {
		if s.Name == name && s.Subsection == subsection {
			return s
		}
	}
	s := newSection(c, name, subsection)
	c.sections = append(c.sections, s)
	return s
}

// NamedSection returns (creating if absent) the subsection-qualified
// section addressed by (name, subsection), e.g. ("remote", "origin") for
// `[remote "origin"]`. subsection == "" addresses the bare `[name]` form.
func (c *Config) NamedSection(name, subsection string) *Section {
	return c.section(name, subsection)
}

// AddOption records key=value under the (section, subsection) pair,
// creating either if necessary.
func (c *Config) AddOption(section, subsection, key, value string) {
	c.section(section, subsection).set(key, value)
}

// Option returns a recorded value and whether it was present.
func (c *Config) Option(section, subsection, key string) (string, bool) {
	for _, s := range c.sections {
		if s.Name == section && s.Subsection == subsection {
			v, ok := s.Options[key]
			return v, ok
		}
	}
	return "", false
}

// UnsetOption removes key from (section, subsection), dropping the
// section entirely if it becomes empty. Reports whether anything was
// removed.
func (c *Config) UnsetOption(section, subsection, key string) bool {
	for i, s := range c.sections {
		if s.Name == section && s.Subsection == subsection {
			if !s.unset(key) {
				return false
			}
			if s.empty() {
				c.sections = append(c.sections[:i], c.sections[i+1:]...)
			}
			return true
		}
	}
	return false
}

// Entry is one fully-qualified key/value pair as returned by List.
type Entry struct {
	Key   string // "section.option" or "section.subsection.option"
	Value string
}

// List returns every recorded option as dotted keys, sorted.
func (c *Config) List() []Entry {
	var out []Entry
	for _, s := range c.sections {
		for _, k := range s.Order {
			out = append(out, Entry{Key: dottedKey(s.Name, s.Subsection, k), Value: s.Options[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func dottedKey(section, subsection, key string) string {
	if subsection == "" {
		return section + "." + key
	}
	return section + "." + subsection + "." + key
}

// splitKey parses a "section.option" or "section.subsection.option" key.
// Only the two- and three-segment forms are valid; anything else is
// plumbing.InvalidConfigKey.
func splitKey(key string) (section, subsection, option string, err error) {
	parts := strings.Split(key, ".")
	switch len(parts) {
	case 2:
		section, option = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	case 3:
		section, subsection, option = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	default:
		return "", "", "", plumbing.NewInvalidConfigKey(key)
	}
	if section == "" || option == "" {
		return "", "", "", plumbing.NewInvalidConfigKey(key)
	}
	return section, subsection, option, nil
}

// GetValue returns the value for a "section.option" or
// "section.subsection.option" key, and whether it was present.
func (c *Config) GetValue(key string) (string, bool, error) {
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	v, ok := c.Option(section, subsection, option)
	return v, ok, nil
}

// SetValue sets key to value, creating sections as needed.
func (c *Config) SetValue(key, value string) error {
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return err
	}
	c.AddOption(section, subsection, option, value)
	return nil
}

// UnsetValue removes key, reporting whether anything was removed.
func (c *Config) UnsetValue(key string) (bool, error) {
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return false, err
	}
	return c.UnsetOption(section, subsection, option), nil
}

// UserName returns user.name.
func (c *Config) UserName() (string, bool) {
	return c.Option("user", "", "name")
}

// UserEmail returns user.email.
func (c *Config) UserEmail() (string, bool) {
	return c.Option("user", "", "email")
}

// UserIdentity returns "Name <email>" if both user.name and user.email
// are set, matching the identity string used for commits with no
// environment override.
func (c *Config) UserIdentity() (string, bool) {
	name, ok := c.UserName()
	if !ok {
		return "", false
	}
	email, ok := c.UserEmail()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s <%s>", name, email), true
}

// IsBare returns core.bare, defaulting to false when unset or unparseable.
func (c *Config) IsBare() bool {
	v, ok := c.Option("core", "", "bare")
	return ok && (v == "true" || v == "1" || v == "yes")
}

// RemoteURL returns remote "<name>".url.
func (c *Config) RemoteURL(name string) (string, bool) {
	return c.Option("remote", name, "url")
}

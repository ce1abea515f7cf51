package conf

import (
	"bytes"
	"io"
	"slices"
	"strings"
)

// Section is an ordered set of unique keys
type Section struct {
	name   string
	keys   []string
	values map[string]string
}

// Name returns the section name
func (s *Section) Name() string { return s.name }

// Keys returns the keys in insertion order
func (s *Section) Keys() []string { return slices.Clone(s.keys) }

// Get returns the value of key and whether it is present
func (s *Section) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value under key. The last writer wins; a replaced key keeps
// its position.
func (s *Section) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Config maps section names to sections, in insertion order
type Config struct {
	sections []*Section
}

// NewConfig creates a Config with the given empty sections
func NewConfig(sections ...string) *Config {
	c := &Config{}
	for _, name := range sections {
		c.AddSection(name)
	}
	return c
}

// AddSection returns the named section, creating it if needed
func (c *Config) AddSection(name string) *Section {
	if s := c.Section(name); s != nil {
		return s
	}
	s := &Section{name: name, values: map[string]string{}}
	c.sections = append(c.sections, s)
	return s
}

// Section returns the named section or nil
func (c *Config) Section(name string) *Section {
	for _, s := range c.sections {
		if s.name == name {
			return s
		}
	}
	return nil
}

// HasSection reports whether the named section exists
func (c *Config) HasSection(name string) bool {
	return c.Section(name) != nil
}

// Sections returns the section names in insertion order
func (c *Config) Sections() []string {
	names := make([]string, len(c.sections))
	for i, s := range c.sections {
		names[i] = s.name
	}
	return names
}

// Get returns the value of section.key
func (c *Config) Get(section, key string) (string, bool) {
	s := c.Section(section)
	if s == nil {
		return "", false
	}
	return s.Get(key)
}

// Has reports whether section.key is present
func (c *Config) Has(section, key string) bool {
	_, ok := c.Get(section, key)
	return ok
}

// Set stores section.key, creating the section if needed
func (c *Config) Set(section, key, value string) {
	c.AddSection(section).Set(key, value)
}

// WriteTo renders the configuration as INI text the way Python's
// configparser reads it: values are never quoted and continuation lines of
// multi-line values are indented with a tab.
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, s := range c.sections {
		buf.WriteString("[" + s.name + "]\n")
		for _, key := range s.keys {
			buf.WriteString(key + "=" + formatValue(s.values[key]) + "\n")
		}
		buf.WriteString("\n")
	}
	return buf.WriteTo(w)
}

// formatValue indents continuation lines so configparser folds them back
// into the value. List literals get the same treatment and are otherwise
// left untouched.
func formatValue(value string) string {
	return strings.ReplaceAll(value, "\n", "\n\t")
}

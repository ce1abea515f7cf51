package conf

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ControlVars configure the generator itself and never end up in odoo.conf
var ControlVars = []string{
	"ODOO_CONFIG_DEBUG",
	"ODOO_CONFIG_ENV_FILE",
	"ODOO_CONFIG_LOG_LEVEL",
}

// ApplySchema resolves every option of schema against environ and stores the
// ones passing the inclusion filter.
func ApplySchema(cfg *Config, schema []Option, environ Environment) {
	for _, o := range schema {
		section := cfg.AddSection(o.Section)
		value, source := o.Resolve(environ)
		entry := logrus.WithField("section", o.Section).WithField("key", o.Key)
		if source != "" {
			entry = entry.WithField("source", source)
		}
		if !o.Include(value) {
			entry.Debug("Option skipped")
			continue
		}
		section.Set(o.Key, value)
		entry.Debug("Option set")
	}
}

// ApplyExtras maps ODOO_ variables unknown to schema onto the configuration.
// The lower-cased name after the prefix is split once on "_": when the first
// part names an existing section the rest is the key there, otherwise the
// whole name is a key of DefaultSection. Keys already present are kept.
func ApplyExtras(cfg *Config, schema []Option, environ Environment) {
	skip := consumedVars(schema)
	for _, name := range environ.Names() {
		if !strings.HasPrefix(name, Prefix) || skip[name] {
			continue
		}
		section, key := splitName(cfg, strings.ToLower(strings.TrimPrefix(name, Prefix)))
		if key == "" {
			continue
		}
		if cfg.Has(section, key) {
			logrus.WithField("variable", name).Debug("Variable ignored, key already set")
			continue
		}
		value, _ := environ.Lookup(name)
		cfg.Set(section, key, value)
		logrus.WithFields(logrus.Fields{
			"variable": name,
			"section":  section,
			"key":      key,
		}).Debug("Extra option set")
	}
}

func splitName(cfg *Config, name string) (section, key string) {
	if head, rest, ok := strings.Cut(name, "_"); ok && cfg.HasSection(head) {
		return head, rest
	}
	return DefaultSection, name
}

// consumedVars returns the prefixed variables already handled by schema
func consumedVars(schema []Option) map[string]bool {
	skip := map[string]bool{MasterPasswordVar: true}
	for _, name := range ControlVars {
		skip[name] = true
	}
	for _, o := range schema {
		skip[o.EnvName()] = true
		for _, name := range o.Fallbacks {
			if strings.HasPrefix(name, Prefix) {
				skip[name] = true
			}
		}
	}
	return skip
}

// Generate builds the odoo.conf content for environ from the built-in schema
func Generate(environ Environment) *Config {
	cfg := NewConfig(DefaultSection)
	s := Schema()
	ApplySchema(cfg, s, environ)
	ApplyExtras(cfg, s, environ)
	return cfg
}

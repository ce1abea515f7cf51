package conf

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Settings control the generator itself
type Settings struct {
	Debug string `env:"ODOO_CONFIG_DEBUG" envDefault:"False"`
}

// ParseSettings reads Settings from environ
func ParseSettings(environ Environment) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return s, fmt.Errorf("error getting generator settings: %w", err)
	}
	return s, nil
}

// DebugEnabled reports whether the generated file should be echoed
func (s Settings) DebugEnabled() bool {
	switch strings.ToLower(s.Debug) {
	case "true", "1", "yes":
		return true
	}
	return false
}

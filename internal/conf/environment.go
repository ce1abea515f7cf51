package conf

import (
	"fmt"
	"slices"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Environment is a snapshot of environment variables. A variable set to the
// empty string is present.
type Environment map[string]string

// FromEnviron builds an Environment from "KEY=value" pairs as returned by os.Environ
func FromEnviron(kv []string) Environment {
	environ := make(Environment, len(kv))
	for _, pair := range kv {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		environ[name] = value
	}
	return environ
}

// Lookup returns the value of name and whether it is set
func (e Environment) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// Names returns all variable names in sorted order
func (e Environment) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadEnvironment returns the process environment layered over the variables
// of envFile. A process variable wins whenever it is set, even to the empty
// string. An empty envFile skips the file.
func LoadEnvironment(fs afero.Fs, envFile string, kv []string) (Environment, error) {
	environ := FromEnviron(kv)
	if envFile == "" {
		return environ, nil
	}
	f, err := fs.Open(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer f.Close()

	fileEnv, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", envFile, err)
	}
	if err := mergo.Merge(&fileEnv, map[string]string(environ), mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return nil, fmt.Errorf("failed to merge env file %s: %w", envFile, err)
	}
	return Environment(fileEnv), nil
}

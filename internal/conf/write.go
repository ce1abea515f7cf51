package conf

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// DefaultPath is where odoo.conf is written when no path is given
const DefaultPath = "/etc/odoo/odoo.conf"

// Mask replaces sensitive values in debug output
const Mask = "********"

var sensitive = []string{"password", "passwd", "secret", "token", "key"}

// Write renders cfg into path, truncating any previous content
func Write(fs afero.Fs, path string, cfg *Config) (err error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if _, err = cfg.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// IsSensitive reports whether a "key=value" line may carry a secret
func IsSensitive(line string) bool {
	lower := strings.ToLower(line)
	for _, s := range sensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskLine hides the value of a sensitive "key=value" line
func MaskLine(line string) string {
	key, _, ok := strings.Cut(line, "=")
	if !ok || !IsSensitive(line) {
		return line
	}
	return key + "=" + Mask
}

// Echo reads the file at path back and prints it to w with sensitive values
// masked.
func Echo(w io.Writer, fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		AllowPythonMultilineValues: true,
	}, data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	fmt.Fprintln(w, "Generated configuration (sensitive values masked):")
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}
		fmt.Fprintf(w, "[%s]\n", section.Name())
		for _, key := range section.Keys() {
			fmt.Fprintln(w, MaskLine(key.Name()+"="+key.Value()))
		}
		fmt.Fprintln(w)
	}
	return nil
}

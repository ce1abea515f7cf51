// Package conf builds odoo.conf from environment variables.
//
// Values are merged in two phases. ApplySchema resolves every known option
// (override variable, then legacy fallback variables, then the built-in
// default). ApplyExtras then maps the remaining ODOO_ variables onto sections
// and keys without overwriting anything phase one produced.
package conf

import (
	"slices"
	"strings"
)

const (
	// Prefix marks environment variables that may override configuration
	Prefix = "ODOO_"
	// DefaultSection receives every key whose section cannot be determined
	DefaultSection = "options"
	// MasterPasswordVar sets admin_passwd and is never copied under its own name
	MasterPasswordVar = "ODOO_MASTER_PASSWORD"
)

// Option is one entry of the configuration schema
type Option struct {
	Section   string
	Key       string
	Default   string
	Fallbacks []string // consulted in order when the override variable is unset
	Required  bool     // written even when empty or false
}

// EnvName returns the variable overriding this option, ODOO_<KEY_UPPER>
func (o Option) EnvName() string {
	return Prefix + strings.ToUpper(o.Key)
}

// Resolve returns the option value and the name of the variable it came
// from. The source is empty when the built-in default was used.
func (o Option) Resolve(environ Environment) (value string, source string) {
	if v, ok := environ.Lookup(o.EnvName()); ok {
		return v, o.EnvName()
	}
	for _, name := range o.Fallbacks {
		if v, ok := environ.Lookup(name); ok {
			return v, name
		}
	}
	return o.Default, ""
}

// Include reports whether a resolved value is written to the file
func (o Option) Include(value string) bool {
	if o.Required {
		return true
	}
	return value != "" && value != "False"
}

func required(key, def string, fallbacks ...string) Option {
	return Option{Section: DefaultSection, Key: key, Default: def, Fallbacks: fallbacks, Required: true}
}

func opt(key, def string, fallbacks ...string) Option {
	return Option{Section: DefaultSection, Key: key, Default: def, Fallbacks: fallbacks}
}

var schema = []Option{
	// database connection, legacy and linked-container variables first
	required("db_host", "db", "DB_HOST", "DB_PORT_5432_TCP_ADDR"),
	required("db_port", "5432", "DB_PORT", "DB_PORT_5432_TCP_PORT"),
	required("db_user", "odoo", "DB_USER", "DB_ENV_POSTGRES_USER", "POSTGRES_USER"),
	required("db_password", "odoo", "DB_PASSWORD", "DB_ENV_POSTGRES_PASSWORD", "POSTGRES_PASSWORD"),
	opt("db_name", ""),
	opt("db_template", "template1"),
	opt("dbfilter", ".*"),
	opt("db_maxconn", "32"),
	opt("db_sslmode", "prefer"),

	opt("admin_passwd", "", MasterPasswordVar),

	opt("addons_path", "/opt/odoo/src/addons,/mnt/extra-addons,/opt/odoo-customer-addons"),
	opt("data_dir", "/var/lib/odoo"),

	opt("proxy_mode", "True"),
	opt("workers", "4"),
	opt("max_cron_threads", "2"),

	opt("limit_memory_hard", "4294967296"),
	opt("limit_memory_soft", "3221225472"),
	opt("limit_request", "8192"),
	opt("limit_time_cpu", "600"),
	opt("limit_time_real", "1200"),
	opt("limit_time_real_cron", "3600"),

	opt("log_handler", "['werkzeug:CRITICAL','odoo:WARNING']"),
	opt("log_level", "info"),
	opt("log_db", "False"),
	opt("log_db_level", "warning"),

	opt("email_from", "no-reply@example.org"),
	opt("smtp_server", "mail"),
	opt("smtp_port", "1025"),
	opt("smtp_ssl", "False"),
	opt("smtp_user", ""),
	opt("smtp_password", ""),

	opt("list_db", "True"),
	opt("unaccent", "True"),
	opt("without_demo", "all"),

	opt("xmlrpc", "True"),
	opt("xmlrpc_port", "8069"),
	opt("gevent_port", "8072"),
}

// Schema returns a copy of the built-in option table
func Schema() []Option {
	out := make([]Option, len(schema))
	for i, o := range schema {
		o.Fallbacks = slices.Clone(o.Fallbacks)
		out[i] = o
	}
	return out
}

// Package main implements generate_odoo_conf, which writes odoo.conf from
// ODOO_ environment variables.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/cybertec-postgresql/odoo-entrypoint/internal/conf"
	"github.com/cybertec-postgresql/odoo-entrypoint/internal/log"
)

// Config holds the application configuration
type Config struct {
	EnvFile  string `short:"e" env:"ODOO_CONFIG_ENV_FILE" long:"env-file" description:"dotenv file providing defaults for unset variables"`
	LogLevel string `short:"l" env:"ODOO_CONFIG_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	Version  bool   `short:"v" long:"version" description:"Show version information"`
	Help     bool
	Args     struct {
		Output string `positional-arg-name:"output" description:"Path of the generated file"`
	} `positional-args:"yes"`
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ParseCLI parses command-line arguments and returns the configuration
func ParseCLI(args []string) (cmdOpts *Config, err error) {
	cmdOpts = new(Config)
	parser := flags.NewParser(cmdOpts, flags.HelpFlag)
	nonParsedArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			cmdOpts.Help = true
		}
		if !flags.WroteHelp(err) {
			parser.WriteHelp(os.Stdout)
		}
		return cmdOpts, err
	}
	if len(nonParsedArgs) > 0 { // only one output path is accepted
		return cmdOpts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs)
	}
	if cmdOpts.Args.Output == "" {
		cmdOpts.Args.Output = conf.DefaultPath
	}
	return
}

// ShowVersion prints version information and exits
func ShowVersion() {
	fmt.Printf("generate_odoo_conf version %s\n", version)
	if commit != "none" && commit != "" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" && date != "" {
		fmt.Printf("built: %s\n", date)
	}
}

// SetupLogging configures the logging system with structured output
func SetupLogging(logLevel string) error {
	if err := log.Setup(logrus.StandardLogger(), logLevel, os.Stdout, os.Stderr); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"pid":     os.Getpid(),
	}).Debug("generate_odoo_conf logging initialized")
	return nil
}

// Run generates the configuration file and returns the process exit code.
// environ holds "KEY=value" pairs; the masked debug echo goes to stdout.
func Run(config *Config, fs afero.Fs, environ []string, stdout io.Writer) int {
	env, err := conf.LoadEnvironment(fs, config.EnvFile, environ)
	if err != nil {
		logrus.WithError(err).Error("Error generating config file")
		return 1
	}
	settings, err := conf.ParseSettings(env)
	if err != nil {
		logrus.WithError(err).Error("Error generating config file")
		return 1
	}

	path := config.Args.Output
	if err := conf.Write(fs, path, conf.Generate(env)); err != nil {
		logrus.WithError(err).Error("Error generating config file")
		return 1
	}
	logrus.WithField("path", path).Info("Successfully generated config file")

	if settings.DebugEnabled() {
		// the file is in place, a failed echo only costs the debug output
		if err := conf.Echo(stdout, fs, path); err != nil {
			logrus.WithError(err).Warn("Could not echo generated config file")
		}
	}
	return 0
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			ShowVersion()
			os.Exit(0)
		}
	}

	config, err := ParseCLI(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if err := SetupLogging(config.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Failed to setup logging")
	}

	os.Exit(Run(config, afero.NewOsFs(), os.Environ(), os.Stdout))
}

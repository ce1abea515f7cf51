// Package main implements wait_for_psql, which blocks container startup until
// PostgreSQL accepts connections.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/cybertec-postgresql/odoo-entrypoint/internal/db"
	"github.com/cybertec-postgresql/odoo-entrypoint/internal/log"
)

// Config holds the application configuration
type Config struct {
	Host     string `long:"db_host" description:"Database host" required:"true"`
	Port     string `long:"db_port" description:"Database port" required:"true"`
	User     string `long:"db_user" description:"Database user" required:"true"`
	Password string `long:"db_password" description:"Database password, DB_PASSWORD takes precedence"`
	SSLMode  string `long:"db_sslmode" description:"SSL mode: disable|allow|prefer|require|verify-ca|verify-full" default:"prefer"`
	Timeout  int    `long:"timeout" description:"Seconds to wait before giving up" default:"60"`
	LogLevel string `short:"l" env:"WAIT_FOR_PSQL_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	Version  bool   `short:"v" long:"version" description:"Show version information"`
	Help     bool
}

// secrets are read from the environment only
type secrets struct {
	Password string `env:"DB_PASSWORD"`
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
	if len(nonParsedArgs) > 0 { // we don't expect any non-parsed arguments
		return cmdOpts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs)
	}
	if err = cmdOpts.applySecrets(); err != nil {
		return cmdOpts, err
	}
	return
}

// applySecrets lets DB_PASSWORD override --db_password, the environment
// being the safer channel for secrets
func (c *Config) applySecrets() error {
	var s secrets
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	if s.Password != "" {
		c.Password = s.Password
	}
	return nil
}

// Params returns the connection parameters of this invocation
func (c *Config) Params() db.Params {
	return db.Params{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		SSLMode:  c.SSLMode,
		Database: db.DefaultDatabase,
	}
}

// maxTimeoutSeconds is the largest budget a time.Duration can hold
const maxTimeoutSeconds = int64(math.MaxInt64 / time.Second)

// TimeoutDuration returns the wait budget, never negative and never wrapped
func (c *Config) TimeoutDuration() time.Duration {
	switch {
	case c.Timeout < 0:
		return 0
	case int64(c.Timeout) > maxTimeoutSeconds:
		return time.Duration(maxTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// ShowVersion prints version information and exits
func ShowVersion() {
	fmt.Printf("wait_for_psql version %s\n", version)
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
	}).Debug("wait_for_psql logging initialized")
	return nil
}

// SetupCloseHandler cancels the context when the OS asks us to stop, which
// interrupts the sleep between attempts.
func SetupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logrus.Debug("SetupCloseHandler received an interrupt from OS. Stopping wait...")
		cancel()
	}()
}

// Run waits for the database and returns the process exit code
func Run(ctx context.Context, config *Config) int {
	connConfig, err := config.Params().ConnConfig()
	if err != nil {
		logrus.WithError(err).Error("Invalid database parameters")
		return 1
	}

	waiter := db.NewWaiter(db.NewConnector(connConfig), config.TimeoutDuration())
	res, err := waiter.Wait(ctx)
	if err != nil {
		entry := logrus.WithField("attempts", res.Attempts).WithField("elapsed", res.Elapsed.Round(time.Millisecond))
		if res.LastErr != nil {
			entry = entry.WithError(res.LastErr)
		}
		if errors.Is(err, db.ErrTimedOut) {
			entry.Errorf("Database connection failure after %ds", config.Timeout)
		} else {
			entry.WithField("reason", err).Error("Database wait aborted")
		}
		return 1
	}
	logrus.WithField("elapsed", res.Elapsed.Round(time.Millisecond)).Info("Database is ready!")
	return 0
}

func main() {
	// Quick check for version flags before full parsing
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(cancel)

	code := Run(ctx, config)
	cancel()
	os.Exit(code)
}

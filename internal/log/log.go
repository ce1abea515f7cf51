// Package log configures logrus for the entrypoint tools.
package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// NewFormatter returns the formatter shared by all binaries
func NewFormatter(jsonOutput bool) logrus.Formatter {
	if jsonOutput {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
}

// Setup sets the level and formatter of logger and routes entries by
// severity: warnings and errors go to stderr, everything else to stdout.
func Setup(logger *logrus.Logger, level string, stdout, stderr io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(NewFormatter(false))
	logger.SetReportCaller(false)
	logger.SetOutput(io.Discard)
	logger.ReplaceHooks(make(logrus.LevelHooks))
	logger.AddHook(&writer.Hook{
		Writer:    stderr,
		LogLevels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
	})
	logger.AddHook(&writer.Hook{
		Writer:    stdout,
		LogLevels: []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
	return nil
}

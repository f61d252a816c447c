package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is re-exported so callers do not import logrus directly.
type Fields = logrus.Fields

// New creates a configured logger instance.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(parseLevel(level))
	return logger
}

// NewWithService creates a logger that stamps a service field on every
// entry.
func NewWithService(level, service string) *logrus.Entry {
	return New(level).WithField("service", service)
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// RedactURL hides the path and query of a feed URL for logging. Some
// calendar URLs embed access tokens.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}

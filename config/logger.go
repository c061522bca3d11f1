package config

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger from the log configuration.
//
// Arguments:
//   - cfg: Level, format and optional file.
//
// Returns:
//   - *logrus.Logger: A logger writing to stderr, and to cfg.File when set.
//   - error: An invalid level, or a file that cannot be opened.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", cfg.File)
		}
		log.SetOutput(io.MultiWriter(os.Stderr, file))
	}

	return log, nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, errors.Wrap(err, "invalid log level")
	}
	return level, nil
}

package telelink

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures the global logger. With a file set, output goes to
// a size rotated log file instead of stderr.
func SetupLogging(cfg LogConfig) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return errors.Wrapf(err, "unable to parse log level %q", cfg.Level)
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nil
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
	return nil
}

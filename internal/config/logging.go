package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Apply configures the global logrus logger.
func (l LoggingConfig) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	switch strings.ToLower(l.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid logging format %q: must be text or json", l.Format)
	}
	log.SetLevel(level)
	return nil
}

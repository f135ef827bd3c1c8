package factory

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// WriterFactory creates a sample writer from its definition.
type WriterFactory func(def config.WriterDef, interval time.Duration) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// CreateWriters builds every enabled writer in defs. Writers created before a
// failure are closed.
func CreateWriters(defs []config.WriterDef) ([]model.Writer, error) {
	var writers []model.Writer
	fail := func(err error) ([]model.Writer, error) {
		for _, w := range writers {
			w.Close()
		}
		return nil, err
	}

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		log.Infof("Creating sample writer of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			return fail(fmt.Errorf("unknown writer type: '%s'", def.Type))
		}
		interval, err := time.ParseDuration(def.FlushInterval)
		if err != nil {
			return fail(fmt.Errorf("invalid flush_interval for writer '%s': %w", def.Type, err))
		}
		if interval <= 0 {
			return fail(fmt.Errorf("flush_interval for writer '%s' must be positive", def.Type))
		}

		w, err := factory(def, interval)
		if err != nil {
			return fail(fmt.Errorf("error creating writer type '%s': %w", def.Type, err))
		}
		writers = append(writers, w)
	}
	return writers, nil
}

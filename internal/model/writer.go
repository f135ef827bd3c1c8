package model

import "time"

// SampleRecord is one classified counter sample, as persisted by the recorder.
type SampleRecord struct {
	Timestamp time.Time
	DPID      DatapathID
	Priority  uint16
	MatchKey  string
	Identity  string
	Duration  time.Duration
	Features  FeatureVector
	Verdict   Verdict
}

// Writer defines a generic interface for persisting sample records.
type Writer interface {
	// Write persists one batch of records.
	Write(records []SampleRecord) error

	// GetInterval returns the configured flush interval for this writer.
	GetInterval() time.Duration

	// Close releases the writer's resources.
	Close() error
}

// Package features turns raw flow counters into classifier inputs.
package features

import (
	"Go2NetSDN/internal/model"
	"fmt"
	"strings"
)

// Outcome reports what the extractor did with a sample.
type Outcome int

const (
	// Emitted means a feature vector was produced.
	Emitted Outcome = iota
	// SkippedAdministrative covers table-miss, catch-all and (optionally) drop rules.
	SkippedAdministrative
	// Debounced means the packet count did not grow since the last observation.
	Debounced
	// BelowRate means the packet rate is under the noise floor.
	BelowRate
)

func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case SkippedAdministrative:
		return "skipped"
	case Debounced:
		return "debounced"
	case BelowRate:
		return "below_rate"
	default:
		return "unknown"
	}
}

type baseline struct {
	packets uint64
	bytes   uint64
}

// Extractor tracks per-flow counter baselines. It is owned by the event loop
// and is not safe for concurrent use.
type Extractor struct {
	minPacketRate float64
	skipDrops     bool
	baselines     map[string]baseline
}

// New creates an extractor. Samples with packet_rate below minPacketRate
// never produce a vector.
func New(minPacketRate float64, skipDropRules bool) *Extractor {
	return &Extractor{
		minPacketRate: minPacketRate,
		skipDrops:     skipDropRules,
		baselines:     make(map[string]baseline),
	}
}

func flowKey(s model.FlowCounterSample) string {
	return fmt.Sprintf("%d/%d/%s", s.DPID, s.Priority, s.Match.Key())
}

// Extract applies, in order: the administrative skip, the debounce against the
// flow's baseline, and the rate gate.
func (e *Extractor) Extract(s model.FlowCounterSample) (model.FeatureVector, Outcome) {
	if s.Priority == model.PriorityTableMiss || s.Priority == model.PriorityMax {
		return model.FeatureVector{}, SkippedAdministrative
	}
	if e.skipDrops && s.Priority == model.PriorityDrop {
		return model.FeatureVector{}, SkippedAdministrative
	}

	key := flowKey(s)
	prev, seen := e.baselines[key]
	if seen && s.PacketCount <= prev.packets {
		if s.PacketCount < prev.packets {
			// Counters went backwards: the flow entry was re-created.
			e.baselines[key] = baseline{packets: s.PacketCount, bytes: s.ByteCount}
		}
		return model.FeatureVector{}, Debounced
	}
	e.baselines[key] = baseline{packets: s.PacketCount, bytes: s.ByteCount}

	fv := Compute(s)
	fv.DeltaPackets = s.PacketCount - prev.packets
	if s.ByteCount >= prev.bytes {
		fv.DeltaBytes = s.ByteCount - prev.bytes
	}

	if fv.PacketRate < e.minPacketRate {
		return fv, BelowRate
	}
	return fv, Emitted
}

// Compute derives the rate features of a sample. A zero duration yields zero
// rates and a zero packet count yields a zero mean size.
func Compute(s model.FlowCounterSample) model.FeatureVector {
	fv := model.FeatureVector{
		PacketCount: s.PacketCount,
		ByteCount:   s.ByteCount,
	}
	if secs := s.Duration.Seconds(); secs > 0 {
		fv.PacketRate = float64(s.PacketCount) / secs
		fv.ByteRate = float64(s.ByteCount) / secs
	}
	if s.PacketCount > 0 {
		fv.MeanPacketSize = float64(s.ByteCount) / float64(s.PacketCount)
	}
	return fv
}

// Forget drops the baselines of every flow on dpid.
func (e *Extractor) Forget(dpid model.DatapathID) {
	prefix := fmt.Sprintf("%d/", dpid)
	for key := range e.baselines {
		if strings.HasPrefix(key, prefix) {
			delete(e.baselines, key)
		}
	}
}

// Tracked returns the number of flows with a baseline.
func (e *Extractor) Tracked() int {
	return len(e.baselines)
}

package classifier

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"context"
)

// Threshold flags high-rate flows of small packets, the signature of a
// flood, and optionally any flow above a byte rate.
type Threshold struct {
	packetRate    float64
	maxPacketSize float64
	byteRate      float64
}

// NewThreshold creates a threshold classifier. A zero ByteRate disables the
// byte rate rule.
func NewThreshold(cfg config.ThresholdConfig) *Threshold {
	return &Threshold{
		packetRate:    cfg.PacketRate,
		maxPacketSize: cfg.MaxPacketSize,
		byteRate:      cfg.ByteRate,
	}
}

func (t *Threshold) Classify(_ context.Context, fv model.FeatureVector) (model.Verdict, error) {
	if err := checkFinite(fv); err != nil {
		return model.VerdictNormal, err
	}
	if fv.PacketRate >= t.packetRate && fv.MeanPacketSize <= t.maxPacketSize {
		return model.VerdictAttack, nil
	}
	if t.byteRate > 0 && fv.ByteRate >= t.byteRate {
		return model.VerdictAttack, nil
	}
	return model.VerdictNormal, nil
}

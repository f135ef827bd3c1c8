package model

import (
	"context"
)

// Classifier defines the binary anomaly verdict over a feature vector.
// Implementations must be deterministic for identical inputs.
type Classifier interface {
	Classify(ctx context.Context, features FeatureVector) (Verdict, error)
}

// Package classifier provides the anomaly classifiers that label flow feature
// vectors as normal or attack traffic.
package classifier

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformedFeatures is returned for feature vectors holding NaN or Inf.
var ErrMalformedFeatures = errors.New("malformed feature vector")

func checkFinite(fv model.FeatureVector) error {
	for i, v := range fv.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrMalformedFeatures, model.FeatureNames[i], v)
		}
	}
	return nil
}

// New builds the classifier selected by cfg. The result is not wrapped in
// FailOpen; callers decide how failures are reported.
func New(cfg config.ClassifierConfig) (model.Classifier, error) {
	switch strings.ToLower(cfg.Type) {
	case "threshold":
		return NewThreshold(cfg.Threshold), nil
	case "tree":
		tree, err := LoadTree(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		return tree, nil
	case "remote":
		timeout, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier timeout: %w", err)
		}
		return Dial(cfg.ServiceAddr, timeout)
	}
	return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
}

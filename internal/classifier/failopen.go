package classifier

import (
	"Go2NetSDN/internal/model"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FailOpen wraps a classifier so that every failure is reported as normal
// traffic. A classifier outage must never turn into blocked hosts.
type FailOpen struct {
	inner    model.Classifier
	failures prometheus.Counter
	count    atomic.Uint64
	warn     rate.Sometimes
}

// NewFailOpen wraps inner. failures may be nil.
func NewFailOpen(inner model.Classifier, failures prometheus.Counter) *FailOpen {
	return &FailOpen{
		inner:    inner,
		failures: failures,
		warn:     rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Classify never returns an error.
func (f *FailOpen) Classify(ctx context.Context, fv model.FeatureVector) (v model.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.fail(fmt.Errorf("classifier panic: %v", r))
			v, err = model.VerdictNormal, nil
		}
	}()

	if cerr := checkFinite(fv); cerr != nil {
		f.fail(cerr)
		return model.VerdictNormal, nil
	}
	verdict, cerr := f.inner.Classify(ctx, fv)
	if cerr != nil {
		f.fail(cerr)
		return model.VerdictNormal, nil
	}
	return verdict, nil
}

func (f *FailOpen) fail(err error) {
	n := f.count.Add(1)
	if f.failures != nil {
		f.failures.Inc()
	}
	f.warn.Do(func() {
		log.WithError(err).WithField("failures", n).Warn("Classifier failed, treating sample as normal")
	})
}

// Failures returns the number of failed classifications so far.
func (f *FailOpen) Failures() uint64 {
	return f.count.Load()
}

package classifier

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	flood  = model.FeatureVector{PacketRate: 500, ByteRate: 32000, MeanPacketSize: 64, PacketCount: 5000, ByteCount: 320000}
	normal = model.FeatureVector{PacketRate: 20, ByteRate: 28000, MeanPacketSize: 1400, PacketCount: 200, ByteCount: 280000}
)

func TestThreshold(t *testing.T) {
	c := NewThreshold(config.ThresholdConfig{PacketRate: 100, MaxPacketSize: 128})
	ctx := context.Background()

	v, err := c.Classify(ctx, flood)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAttack, v)

	v, err = c.Classify(ctx, normal)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictNormal, v)

	bigPackets := flood
	bigPackets.MeanPacketSize = 1000
	v, _ = c.Classify(ctx, bigPackets)
	assert.Equal(t, model.VerdictNormal, v, "high rate of large packets is not a flood")

	withBytes := NewThreshold(config.ThresholdConfig{PacketRate: 100, MaxPacketSize: 128, ByteRate: 20000})
	v, _ = withBytes.Classify(ctx, normal)
	assert.Equal(t, model.VerdictAttack, v)

	_, err = c.Classify(ctx, model.FeatureVector{PacketRate: math.NaN()})
	assert.ErrorIs(t, err, ErrMalformedFeatures)
}

const treeYAML = `
nodes:
  - feature: packet_rate
    threshold: 100
    left: 1
    right: 2
  - leaf: normal
  - feature: mean_packet_size
    threshold: 128
    left: 3
    right: 4
  - leaf: attack
  - leaf: normal
`

func TestLoadTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(treeYAML), 0o644))

	tree, err := LoadTree(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Depth())

	ctx := context.Background()
	v, err := tree.Classify(ctx, flood)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAttack, v)

	v, err = tree.Classify(ctx, normal)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictNormal, v)

	clf, err := New(config.ClassifierConfig{Type: "tree", ModelPath: path})
	require.NoError(t, err)
	assert.IsType(t, &Tree{}, clf)

	_, err = LoadTree(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTree_ShippedModel(t *testing.T) {
	tree, err := LoadTree("../../configs/tree_model.yaml")
	require.NoError(t, err)

	ctx := context.Background()
	tests := []struct {
		name string
		fv   model.FeatureVector
		want model.Verdict
	}{
		{"flood", flood, model.VerdictAttack},
		{"normal", normal, model.VerdictNormal},
		{"bulk transfer", model.FeatureVector{PacketRate: 150, ByteRate: 210000, MeanPacketSize: 1400}, model.VerdictNormal},
		{"volumetric", model.FeatureVector{PacketRate: 300, ByteRate: 420000, MeanPacketSize: 1400}, model.VerdictAttack},
	}
	for _, tt := range tests {
		v, err := tree.Classify(ctx, tt.fv)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, v, tt.name)
	}
}

func TestNewTree_Validation(t *testing.T) {
	tests := []struct {
		name  string
		model TreeModel
	}{
		{"empty", TreeModel{}},
		{"unknown feature", TreeModel{Nodes: []TreeNode{{Feature: "ttl", Left: 1, Right: 2}, {Leaf: "normal"}, {Leaf: "attack"}}}},
		{"child out of range", TreeModel{Nodes: []TreeNode{{Feature: "packet_rate", Left: 1, Right: 5}, {Leaf: "normal"}}}},
		{"cycle", TreeModel{Nodes: []TreeNode{{Feature: "packet_rate", Left: 0, Right: 1}, {Leaf: "normal"}}}},
		{"bad leaf", TreeModel{Nodes: []TreeNode{{Leaf: "maybe"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTree(tt.model)
			assert.Error(t, err)
		})
	}
}

type stubClassifier struct {
	verdict model.Verdict
	err     error
	panics  bool
	calls   int
}

func (s *stubClassifier) Classify(context.Context, model.FeatureVector) (model.Verdict, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.verdict, s.err
}

func TestFailOpen(t *testing.T) {
	ctx := context.Background()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "failures"})

	ok := &stubClassifier{verdict: model.VerdictAttack}
	v, err := NewFailOpen(ok, counter).Classify(ctx, flood)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAttack, v)

	for _, inner := range []*stubClassifier{
		{verdict: model.VerdictAttack, err: errors.New("unavailable")},
		{verdict: model.VerdictAttack, panics: true},
	} {
		f := NewFailOpen(inner, counter)
		v, err := f.Classify(ctx, flood)
		require.NoError(t, err)
		assert.Equal(t, model.VerdictNormal, v)
		assert.Equal(t, uint64(1), f.Failures())
	}

	inner := &stubClassifier{verdict: model.VerdictAttack}
	f := NewFailOpen(inner, nil)
	v, err = f.Classify(ctx, model.FeatureVector{PacketRate: math.Inf(1)})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictNormal, v)
	assert.Zero(t, inner.calls, "non-finite input never reaches the model")

	assert.Equal(t, 2.0, testutil.ToFloat64(counter))
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.ClassifierConfig{Type: "svm"})
	assert.Error(t, err)
}

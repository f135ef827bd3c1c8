package classifier

import (
	"Go2NetSDN/internal/model"
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// TreeNode is one node of an exported decision tree. A node with a Leaf is
// terminal; otherwise samples with feature <= Threshold go Left.
type TreeNode struct {
	Feature   string  `yaml:"feature,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Left      int     `yaml:"left,omitempty"`
	Right     int     `yaml:"right,omitempty"`
	Leaf      string  `yaml:"leaf,omitempty"`
}

// TreeModel is the on-disk form of a decision tree. Node 0 is the root.
type TreeModel struct {
	Nodes []TreeNode `yaml:"nodes"`
}

type compiledNode struct {
	feature     int
	threshold   float64
	left, right int
	leaf        bool
	verdict     model.Verdict
}

// Tree evaluates a binary decision tree trained offline.
type Tree struct {
	nodes []compiledNode
}

// LoadTree reads and validates a tree model from a YAML file.
func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree model: %w", err)
	}
	var m TreeModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse tree model: %w", err)
	}
	return NewTree(m)
}

// NewTree compiles a tree model. Children must reference later nodes, which
// rules out cycles and guarantees every walk terminates.
func NewTree(m TreeModel) (*Tree, error) {
	if len(m.Nodes) == 0 {
		return nil, fmt.Errorf("tree model has no nodes")
	}
	nodes := make([]compiledNode, len(m.Nodes))
	for i, n := range m.Nodes {
		if n.Leaf != "" {
			v, err := model.ParseVerdict(n.Leaf)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			nodes[i] = compiledNode{leaf: true, verdict: v}
			continue
		}
		feature := slices.Index(model.FeatureNames, n.Feature)
		if feature < 0 {
			return nil, fmt.Errorf("node %d: unknown feature %q", i, n.Feature)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(m.Nodes) {
				return nil, fmt.Errorf("node %d: child %d out of range", i, child)
			}
		}
		nodes[i] = compiledNode{feature: feature, threshold: n.Threshold, left: n.Left, right: n.Right}
	}
	return &Tree{nodes: nodes}, nil
}

func (t *Tree) Classify(_ context.Context, fv model.FeatureVector) (model.Verdict, error) {
	if err := checkFinite(fv); err != nil {
		return model.VerdictNormal, err
	}
	values := fv.Values()
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.verdict, nil
		}
		if values[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.leaf {
			return 1
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// TreeParams bounds tree growth. MaxDepth <= 0 grows until leaves are pure or
// too small to split.
type TreeParams struct {
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
}

// RegressionTree is a CART regression tree stored as a flat node slice. Node 0
// is the root; children are absolute indices into Nodes.
type RegressionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is a split or, when IsLeaf, a leaf holding Value.
type TreeNode struct {
	FeatureIdx int
	Threshold  float64
	LeftChild  int
	RightChild int
	Value      float64
	IsLeaf     bool
}

// MarshalJSON writes a leaf as [value] and a split as
// [feature, threshold, left, right, value]; forests have millions of nodes.
func (n TreeNode) MarshalJSON() ([]byte, error) {
	if n.IsLeaf {
		return json.Marshal([1]float64{n.Value})
	}
	return json.Marshal([5]float64{
		float64(n.FeatureIdx), n.Threshold, float64(n.LeftChild), float64(n.RightChild), n.Value,
	})
}

// UnmarshalJSON reads the compact form written by MarshalJSON.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch len(v) {
	case 1:
		*n = TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: v[0], IsLeaf: true}
	case 5:
		*n = TreeNode{
			FeatureIdx: int(v[0]),
			Threshold:  v[1],
			LeftChild:  int(v[2]),
			RightChild: int(v[3]),
			Value:      v[4],
		}
	default:
		return fmt.Errorf("tree node: unexpected %d values", len(v))
	}
	return nil
}

// Train fits the tree on the rows of features selected by samples. Indices
// may repeat, which is how bootstrap samples are passed in.
func (dt *RegressionTree) Train(features [][]float64, targets []float64, samples []int, params TreeParams) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if len(samples) == 0 {
		return errors.New("no samples to train on")
	}
	if params.MinSamplesLeaf <= 0 {
		params.MinSamplesLeaf = 1
	}

	b := &treeBuilder{
		features: features,
		targets:  targets,
		params:   params,
		order:    make([]int, len(samples)),
	}
	b.build(slices.Clone(samples), 0)
	dt.Nodes = b.nodes
	return nil
}

// Predict walks one feature row down to its leaf.
func (dt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (dt *RegressionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

type treeBuilder struct {
	features [][]float64
	targets  []float64
	params   TreeParams
	nodes    []TreeNode
	order    []int
}

// build appends the subtree for samples and returns its root index.
func (b *treeBuilder) build(samples []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      meanTarget(b.targets, samples),
		IsLeaf:     true,
	})

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return idx
	}
	if len(samples) < 2*b.params.MinSamplesLeaf || isConstant(b.targets, samples) {
		return idx
	}

	feature, threshold, ok := b.findBestSplit(samples)
	if !ok {
		return idx
	}

	left, right := splitSamples(b.features, samples, feature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	b.nodes[idx] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  leftIdx,
		RightChild: rightIdx,
		Value:      b.nodes[idx].Value,
		IsLeaf:     false,
	}
	return idx
}

// findBestSplit scans every feature for the threshold minimising the summed
// squared error of the two children.
func (b *treeBuilder) findBestSplit(samples []int) (int, float64, bool) {
	n := len(samples)
	minLeaf := b.params.MinSamplesLeaf
	featureCount := len(b.features[samples[0]])

	var totalSum float64
	for _, s := range samples {
		totalSum += b.targets[s]
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.Inf(-1)

	order := b.order[:n]
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		copy(order, samples)
		slices.SortFunc(order, func(a, c int) int {
			fa, fc := b.features[a][featureIdx], b.features[c][featureIdx]
			switch {
			case fa < fc:
				return -1
			case fa > fc:
				return 1
			default:
				return 0
			}
		})
		if b.features[order[0]][featureIdx] == b.features[order[n-1]][featureIdx] {
			continue
		}

		// Minimising child SSE is the same as maximising
		// sumL^2/nL + sumR^2/nR since the total sum of squares is fixed.
		var leftSum float64
		for i := 1; i < n; i++ {
			leftSum += b.targets[order[i-1]]
			if i < minLeaf || n-i < minLeaf {
				continue
			}
			prev := b.features[order[i-1]][featureIdx]
			next := b.features[order[i]][featureIdx]
			if prev == next {
				continue
			}
			rightSum := totalSum - leftSum
			score := leftSum*leftSum/float64(i) + rightSum*rightSum/float64(n-i)
			if score > bestScore {
				bestScore = score
				bestFeature = featureIdx
				bestThreshold = prev + (next-prev)/2
				if bestThreshold == next {
					bestThreshold = prev
				}
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitSamples(features [][]float64, samples []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(samples)/2)
	right := make([]int, 0, len(samples)/2)
	for _, s := range samples {
		if features[s][featureIdx] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func meanTarget(targets []float64, samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += targets[s]
	}
	return sum / float64(len(samples))
}

func isConstant(targets []float64, samples []int) bool {
	first := targets[samples[0]]
	for _, s := range samples[1:] {
		if targets[s] != first {
			return false
		}
	}
	return true
}

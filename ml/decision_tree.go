package ml

import (
	"math"
	"math/rand"
	"sort"
)

// DecisionTree is a CART classifier using Gini impurity. Nodes are stored in a
// flat slice so the tree serializes as plain JSON.
type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MaxFeatures     int        `json:"max_features"`
	MinSamplesSplit int        `json:"min_samples_split"`
	Seed            int64      `json:"seed"`
	ClassLabels     []int      `json:"classes"`
	Nodes           []TreeNode `json:"nodes"`
	NumFeatures     int        `json:"num_features"`
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassLabel   int       `json:"class_label"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

// NewDecisionTree returns an unfitted tree. maxDepth <= 0 grows until leaves
// are pure; maxFeatures <= 0 considers every feature at each split.
func NewDecisionTree(maxDepth, maxFeatures int, seed int64) *DecisionTree {
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MaxFeatures:     maxFeatures,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	classes, y := encodeLabels(labels)
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	dt.fitEncoded(features, y, idx, classes, rand.New(rand.NewSource(dt.Seed)))
	return nil
}

func (dt *DecisionTree) Predict(features [][]float64) ([]int, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, row := range proba {
		labels[i] = dt.ClassLabels[argmax(row)]
	}
	return labels, nil
}

func (dt *DecisionTree) PredictProba(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		dist, err := dt.distribution(row)
		if err != nil {
			return nil, err
		}
		out[i] = append([]float64(nil), dist...)
	}
	return out, nil
}

func (dt *DecisionTree) Classes() []int {
	return append([]int(nil), dt.ClassLabels...)
}

// fitEncoded grows the tree on the samples listed in idx. y holds class
// indexes into classes. Used directly by RandomForest for bootstrap samples.
func (dt *DecisionTree) fitEncoded(features [][]float64, y []int, idx []int, classes []int, rnd *rand.Rand) {
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}
	dt.ClassLabels = append([]int(nil), classes...)
	dt.NumFeatures = len(features[0])
	dt.Nodes = dt.Nodes[:0]
	dt.buildNode(features, y, idx, 0, rnd)
}

func (dt *DecisionTree) distribution(row []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(row) != dt.NumFeatures {
		return nil, ErrFeatureMismatch
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Distribution, nil
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			break
		}
	}
	return nil, errInvalidTree
}

func (dt *DecisionTree) buildNode(features [][]float64, y []int, idx []int, depth int, rnd *rand.Rand) int {
	nodeIdx := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, TreeNode{})

	counts := classCounts(y, idx, len(dt.ClassLabels))
	leaf := TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   dt.ClassLabels[argmaxInt(counts)],
		IsLeaf:       true,
		Distribution: normalize(counts),
	}

	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) || len(idx) < dt.MinSamplesSplit || isPure(counts) {
		dt.Nodes[nodeIdx] = leaf
		return nodeIdx
	}

	split, ok := dt.findBestSplit(features, y, idx, counts, rnd)
	if !ok {
		dt.Nodes[nodeIdx] = leaf
		return nodeIdx
	}

	leftIdx, rightIdx := splitData(features, idx, split.feature, split.threshold)
	left := dt.buildNode(features, y, leftIdx, depth+1, rnd)
	right := dt.buildNode(features, y, rightIdx, depth+1, rnd)

	dt.Nodes[nodeIdx] = TreeNode{
		FeatureIdx: split.feature,
		Threshold:  split.threshold,
		LeftChild:  left,
		RightChild: right,
		ClassLabel: leaf.ClassLabel,
	}
	return nodeIdx
}

type treeSplit struct {
	feature   int
	threshold float64
	impurity  float64
}

// findBestSplit scans candidate features in random order. At least
// MaxFeatures non-constant features are evaluated, and the search continues
// past that until some valid split has been found.
func (dt *DecisionTree) findBestSplit(features [][]float64, y []int, idx []int, parentCounts []int, rnd *rand.Rand) (treeSplit, bool) {
	featureCount := len(features[0])
	maxFeatures := dt.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > featureCount {
		maxFeatures = featureCount
	}

	best := treeSplit{feature: -1, impurity: math.MaxFloat64}
	sorted := append([]int(nil), idx...)
	visited := 0
	for _, featureIdx := range rnd.Perm(featureCount) {
		if visited >= maxFeatures && best.feature != -1 {
			break
		}
		sort.Slice(sorted, func(a, b int) bool {
			return features[sorted[a]][featureIdx] < features[sorted[b]][featureIdx]
		})
		if features[sorted[0]][featureIdx] == features[sorted[len(sorted)-1]][featureIdx] {
			continue
		}
		visited++

		left := make([]int, len(parentCounts))
		right := append([]int(nil), parentCounts...)
		for i := 0; i < len(sorted)-1; i++ {
			class := y[sorted[i]]
			left[class]++
			right[class]--

			current := features[sorted[i]][featureIdx]
			next := features[sorted[i+1]][featureIdx]
			if current == next {
				continue
			}
			impurity := weightedGini(left, right, i+1, len(sorted)-i-1)
			if impurity < best.impurity {
				threshold := current + (next-current)/2
				if threshold == next {
					threshold = current
				}
				best = treeSplit{feature: featureIdx, threshold: threshold, impurity: impurity}
			}
		}
	}
	return best, best.feature != -1
}

func splitData(features [][]float64, idx []int, featureIdx int, threshold float64) (left, right []int) {
	for _, i := range idx {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func weightedGini(left, right []int, nLeft, nRight int) float64 {
	total := float64(nLeft + nRight)
	return (float64(nLeft)/total)*gini(left, nLeft) + (float64(nRight)/total)*gini(right, nRight)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(n)
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(y []int, idx []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, len(counts))
	if total == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = float64(c) / float64(total)
	}
	return dist
}

// argmax returns the first index holding the maximum, so ties resolve to the
// lowest class.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func argmaxInt(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// encodeLabels maps labels to indexes into their sorted distinct values.
func encodeLabels(labels []int) (classes []int, encoded []int) {
	seen := make(map[int]bool)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(labels))
	for i, l := range labels {
		encoded[i] = index[l]
	}
	return classes, encoded
}

func checkTrainingSet(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return ErrEmptyTraining
	}
	if len(features) != len(labels) {
		return ErrSizeMismatch
	}
	width := len(features[0])
	if width == 0 {
		return ErrFeatureMismatch
	}
	for _, row := range features {
		if len(row) != width {
			return ErrFeatureMismatch
		}
	}
	return nil
}

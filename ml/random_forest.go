package ml

import (
	"math"
	"math/rand"
)

const (
	DefaultTrees = 100
	DefaultSeed  = 42
)

// RandomForest averages the class distributions of bootstrap-trained
// decision trees. Training is fully determined by Seed.
type RandomForest struct {
	NumTrees    int             `json:"num_trees"`
	MaxDepth    int             `json:"max_depth"`
	Seed        int64           `json:"seed"`
	ClassLabels []int           `json:"classes"`
	Trees       []*DecisionTree `json:"trees"`
}

func NewRandomForest(numTrees, maxDepth int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = DefaultTrees
	}
	return &RandomForest{NumTrees: numTrees, MaxDepth: maxDepth, Seed: seed}
}

func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	classes, y := encodeLabels(labels)
	maxFeatures := int(math.Sqrt(float64(len(features[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rnd := rand.New(rand.NewSource(rf.Seed))
	trees := make([]*DecisionTree, 0, rf.NumTrees)
	n := len(features)
	for t := 0; t < rf.NumTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rnd.Intn(n)
		}
		tree := NewDecisionTree(rf.MaxDepth, maxFeatures, rnd.Int63())
		tree.fitEncoded(features, y, sample, classes, rand.New(rand.NewSource(tree.Seed)))
		trees = append(trees, tree)
	}

	rf.ClassLabels = classes
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) Predict(features [][]float64) ([]int, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, row := range proba {
		labels[i] = rf.ClassLabels[argmax(row)]
	}
	return labels, nil
}

func (rf *RandomForest) PredictProba(features [][]float64) ([][]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(features))
	for i, row := range features {
		sum := make([]float64, len(rf.ClassLabels))
		for _, tree := range rf.Trees {
			dist, err := tree.distribution(row)
			if err != nil {
				return nil, err
			}
			for c, p := range dist {
				sum[c] += p
			}
		}
		for c := range sum {
			sum[c] /= float64(len(rf.Trees))
		}
		out[i] = sum
	}
	return out, nil
}

func (rf *RandomForest) Classes() []int {
	return append([]int(nil), rf.ClassLabels...)
}

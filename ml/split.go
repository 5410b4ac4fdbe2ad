package ml

import (
	"math"
	"math/rand"
)

const DefaultTestRatio = 0.2

// Split is a train/test partition of a feature matrix.
type Split struct {
	TrainX [][]float64
	TrainY []int
	TestX  [][]float64
	TestY  []int
}

// SplitDataset shuffles rows with a generator seeded by seed and holds out
// ceil(n*testRatio) of them for testing. The same inputs always produce the
// same partition.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) Split {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = DefaultTestRatio
	}
	n := len(features)
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest > n {
		nTest = n
	}

	var split Split
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	for i, idx := range indices {
		if i < nTest {
			split.TestX = append(split.TestX, features[idx])
			split.TestY = append(split.TestY, labels[idx])
		} else {
			split.TrainX = append(split.TrainX, features[idx])
			split.TrainY = append(split.TrainY, labels[idx])
		}
	}
	return split
}

package ml

import (
	"math"
	"math/rand"
)

// TrainTestSplit shuffles n row indices with seed and returns the training
// and test partitions. The test partition gets ceil(n*testRatio) rows.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)

	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest >= n && n > 1 {
		nTest = n - 1
	}
	return indices[nTest:], indices[:nTest]
}

// Gather returns values[idx[0]], values[idx[1]], ...
func Gather(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

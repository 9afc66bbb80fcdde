package analysis

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Split partitions 0..n-1 into train and test indices. The test share is
// ceil(testSize*n) rows drawn by a seeded permutation, so equal seeds give
// equal splits. Both slices are sorted.
func Split(n int, testSize float64, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(testSize * float64(n)))
	nTest = max(0, min(nTest, n))

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	slices.Sort(test)
	slices.Sort(train)
	return train, test
}

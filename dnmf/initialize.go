package dnmf

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// initSigma is the standard deviation of the initial logit distribution.
const initSigma = 0.1

// initializeNormal draws initial logits for the component footprints (H),
// activities (W) and backgrounds (B) from a zero-mean normal distribution.
// The same seed yields bit-identical tensors.
func initializeNormal(numComponents, numFrames, componentSize int, seed uint64) (hLogits, wLogits, bLogits *mat.Dense) {
	normal := distuv.Normal{
		Mu:    0,
		Sigma: initSigma,
		Src:   rand.NewPCG(seed, 0),
	}
	hLogits = randomDense(numComponents, componentSize, normal)
	wLogits = randomDense(numComponents, numFrames, normal)
	bLogits = randomDense(numComponents, componentSize, normal)
	return hLogits, wLogits, bLogits
}

func randomDense(rows, cols int, dist distuv.Normal) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(rows, cols, data)
}

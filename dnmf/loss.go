package dnmf

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sigmoid is the logistic function mapping a logit to (0, 1).
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// sigmoidDense returns a sigmoid-transformed copy of m. A nil matrix stays
// nil (no components).
func sigmoidDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, m)
	return &out
}

// l2LossGrad computes the reconstruction loss of the batch x for the active
// component and the gradient of that loss with respect to the H, W and B
// logits. The reconstruction is
//
//	xHat[t,p] = s(H[c,p])*s(W[c,frames[t]]) + s(B[c,p])
//
// with s the logistic sigmoid, and the loss is the per-frame average of the
// summed squared error 0.5*(x-xHat)^2. Only the active component's slices
// receive non-zero gradient, which keeps per-group updates disjoint.
//
// x must be a len(frames) x componentSize matrix extracted for the
// component's bounding box; shape mismatches are a usage error.
func l2LossGrad(
	hLogits, wLogits, bLogits *mat.Dense,
	x *mat.Dense,
	description ComponentDescription,
	frames []int,
) (loss float64, gradH, gradW, gradB *mat.Dense) {

	c := description.Index
	componentSize := description.BoundingBox.Size()

	hRows, hCols := hLogits.Dims()
	wRows, wCols := wLogits.Dims()
	bRows, bCols := bLogits.Dims()
	gradH = mat.NewDense(hRows, hCols, nil)
	gradW = mat.NewDense(wRows, wCols, nil)
	gradB = mat.NewDense(bRows, bCols, nil)

	hRow := hLogits.RawRowView(c)
	bRow := bLogits.RawRowView(c)
	gH := gradH.RawRowView(c)
	gW := gradW.RawRowView(c)
	gB := gradB.RawRowView(c)

	sH := make([]float64, componentSize)
	sB := make([]float64, componentSize)
	for p := 0; p < componentSize; p++ {
		sH[p] = sigmoid(hRow[p])
		sB[p] = sigmoid(bRow[p])
	}

	invFrames := 1.0 / float64(len(frames))
	for t, frame := range frames {
		sW := sigmoid(wLogits.At(c, frame))
		xRow := x.RawRowView(t)
		frameDot := 0.0
		for p := 0; p < componentSize; p++ {
			residual := sH[p]*sW + sB[p] - xRow[p]
			loss += 0.5 * residual * residual
			gH[p] += residual * sW
			gB[p] += residual
			frameDot += residual * sH[p]
		}
		gW[frame] += invFrames * frameDot * sW * (1 - sW)
	}
	loss *= invFrames
	for p := 0; p < componentSize; p++ {
		gH[p] *= invFrames * sH[p] * (1 - sH[p])
		gB[p] *= invFrames * sB[p] * (1 - sB[p])
	}
	return loss, gradH, gradW, gradB
}

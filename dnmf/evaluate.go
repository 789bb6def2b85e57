package dnmf

import (
	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Mispairing reports one estimated component that was assigned to a
// ground-truth cell other than its own.
type Mispairing struct {
	Component int
	Assigned  int
}

// Evaluate pairs the estimated components of a result to the ground-truth
// cells of the dataset and reports index mispairings. The pairing maximizes
// the total similarity under a one-to-one assignment (Hungarian algorithm),
// where the similarity of estimate i and cell j is 1/(1+mse) between the
// reconstruction of component i over its bounding box and the ground-truth
// signal of cell j over cell j's box. The similarity matrix is returned for
// diagnostics.
func Evaluate(result *Result, dataset *Dataset) ([]Mispairing, *mat.Dense, error) {
	if result == nil || result.H == nil {
		return nil, nil, errors.New("result holds no components")
	}
	if dataset == nil || dataset.Cells == nil {
		return nil, nil, errors.New("dataset holds no ground truth")
	}

	numComponents, componentSize := result.H.Dims()
	numCells, cellPixels := dataset.Cells.Dims()
	if numComponents != numCells {
		return nil, nil, errors.Errorf("result has %d components, dataset has %d cells", numComponents, numCells)
	}
	if componentSize != cellPixels {
		return nil, nil, errors.Errorf("component size %d does not match cell size %d", componentSize, cellPixels)
	}
	_, numFrames := result.W.Dims()
	if _, traceFrames := dataset.Traces.Dims(); traceFrames != numFrames {
		return nil, nil, errors.Errorf("result has %d frames, dataset has %d", numFrames, traceFrames)
	}

	similarity := mat.NewDense(numComponents, numCells, nil)
	matrix := make([][]float64, numComponents)
	for i := 0; i < numComponents; i++ {
		matrix[i] = make([]float64, numCells)
		for j := 0; j < numCells; j++ {
			mse := reconstructionError(result, i, dataset, j)
			// 0-1 similarity, same shape as the tracker's distance score.
			score := 1.0 / (1.0 + mse)
			similarity.Set(i, j, score)
			matrix[i][j] = score
		}
	}

	assignments := hungarian.SolveMax(matrix)

	var mispairings []Mispairing
	for i := 0; i < numComponents; i++ {
		assigned := i
		if row, ok := assignments[i]; ok {
			for j := range row {
				assigned = j
				break
			}
		}
		if assigned != i {
			mispairings = append(mispairings, Mispairing{Component: i, Assigned: assigned})
		}
	}
	return mispairings, similarity, nil
}

// reconstructionError is the mean squared error between the reconstruction
// of estimated component i and the ground-truth signal of cell j, each taken
// over its own bounding box and all frames.
func reconstructionError(result *Result, i int, dataset *Dataset, j int) float64 {
	hRow := result.H.RawRowView(i)
	bRow := result.B.RawRowView(i)
	wRow := result.W.RawRowView(i)
	cellRow := dataset.Cells.RawRowView(j)
	traceRow := dataset.Traces.RawRowView(j)

	sum := 0.0
	for t := range wRow {
		for p := range hRow {
			estimated := hRow[p]*wRow[t] + bRow[p]
			observed := cellRow[p]*traceRow[t] + dataset.Background
			diff := estimated - observed
			sum += diff * diff
		}
	}
	return sum / float64(len(wRow)*len(hRow))
}

package dnmf

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DatasetParameters describes a synthetic square 2D dataset with one cell
// per listed center. Centers are (y, x) pixel coordinates of the cell box
// center.
type DatasetParameters struct {
	ImageSize   int
	CellSize    int
	NumFrames   int
	CellCenters [][2]int
}

// Dataset holds a rendered sequence together with the ground truth it was
// rendered from. Cells holds the ground-truth footprints, one row per cell,
// flattened over the cell extent; Traces the per-frame activities, one row
// per cell; Background the constant level added everywhere.
type Dataset struct {
	Sequence      *Sequence
	BoundingBoxes []BoundingBox
	Cells         *mat.Dense
	Traces        *mat.Dense
	Background    float64
}

const (
	cellPeak          = 0.8
	datasetBackground = 0.1
)

// NewSyntheticDataset renders a noiseless sequence of blob-shaped cells with
// random activity traces in (0, 1). Overlapping cells sum. Identical seeds
// render identical datasets.
func NewSyntheticDataset(parameters DatasetParameters, seed uint64) (*Dataset, error) {
	if parameters.ImageSize <= 0 || parameters.CellSize <= 0 || parameters.NumFrames <= 0 {
		return nil, errors.Errorf("image size, cell size and frame count must be positive, got %d, %d, %d",
			parameters.ImageSize, parameters.CellSize, parameters.NumFrames)
	}

	numCells := len(parameters.CellCenters)
	cellSize := parameters.CellSize
	cellPixels := cellSize * cellSize

	boxes := make([]BoundingBox, numCells)
	for i, center := range parameters.CellCenters {
		offset := []int{center[0] - cellSize/2, center[1] - cellSize/2}
		box, err := NewBoundingBox(offset, []int{cellSize, cellSize})
		if err != nil {
			return nil, err
		}
		for axis := 0; axis < 2; axis++ {
			if offset[axis] < 0 || offset[axis]+cellSize > parameters.ImageSize {
				return nil, errors.Errorf("cell %d does not fit the %dx%d image",
					i, parameters.ImageSize, parameters.ImageSize)
			}
		}
		boxes[i] = box
	}

	sequence, err := NewSequence(parameters.NumFrames, parameters.ImageSize, parameters.ImageSize)
	if err != nil {
		return nil, err
	}

	dataset := &Dataset{
		Sequence:      sequence,
		BoundingBoxes: boxes,
		Background:    datasetBackground,
	}

	activity := distuv.Uniform{
		Min: 0.1,
		Max: 0.9,
		Src: rand.NewPCG(seed, 0),
	}

	if numCells == 0 {
		return dataset, nil
	}

	// Gaussian bump footprint, peak at the box center.
	sigma := float64(cellSize) / 4.0
	cells := mat.NewDense(numCells, cellPixels, nil)
	for i := 0; i < numCells; i++ {
		row := cells.RawRowView(i)
		centerY := float64(cellSize-1) / 2.0
		centerX := float64(cellSize-1) / 2.0
		for dy := 0; dy < cellSize; dy++ {
			for dx := 0; dx < cellSize; dx++ {
				dySq := (float64(dy) - centerY) * (float64(dy) - centerY)
				dxSq := (float64(dx) - centerX) * (float64(dx) - centerX)
				row[dy*cellSize+dx] = cellPeak * math.Exp(-(dySq+dxSq)/(2*sigma*sigma))
			}
		}
	}

	traces := mat.NewDense(numCells, parameters.NumFrames, nil)
	for i := 0; i < numCells; i++ {
		row := traces.RawRowView(i)
		for t := range row {
			row[t] = activity.Rand()
		}
	}

	for t := 0; t < parameters.NumFrames; t++ {
		for y := 0; y < parameters.ImageSize; y++ {
			for x := 0; x < parameters.ImageSize; x++ {
				sequence.Set(dataset.Background, t, y, x)
			}
		}
		for i, box := range boxes {
			cellRow := cells.RawRowView(i)
			trace := traces.At(i, t)
			for dy := 0; dy < cellSize; dy++ {
				for dx := 0; dx < cellSize; dx++ {
					y := box.offset[0] + dy
					x := box.offset[1] + dx
					value := sequence.At(t, y, x) + cellRow[dy*cellSize+dx]*trace
					sequence.Set(value, t, y, x)
				}
			}
		}
	}

	dataset.Cells = cells
	dataset.Traces = traces
	return dataset, nil
}

package dnmf

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func twoCellDataset(t *testing.T, numFrames int, seed uint64) *Dataset {
	t.Helper()
	dataset, err := NewSyntheticDataset(DatasetParameters{
		ImageSize:   16,
		CellSize:    1,
		NumFrames:   numFrames,
		CellCenters: [][2]int{{3, 3}, {12, 12}},
	}, seed)
	if err != nil {
		t.Fatal(err)
	}
	return dataset
}

func TestSinglePixelGradientStep(t *testing.T) {
	// One component centered at (0.5, 0.5) in a 1x1 image, one frame: after
	// one gradient step the recorded gradients must match the closed-form
	// chain-rule expressions evaluated at the initial logits.
	dataset, err := NewSyntheticDataset(DatasetParameters{
		ImageSize:   1,
		CellSize:    1,
		NumFrames:   1,
		CellCenters: [][2]int{{0, 0}},
	}, 11)
	if err != nil {
		t.Fatal(err)
	}

	parameters := Parameters{
		MaxIteration: 1,
		BatchSize:    1,
		StepSize:     1e-2,
		MinLoss:      0,
	}
	result, err := Fit(
		dataset.Sequence,
		NewComponentDescriptions(dataset.BoundingBoxes),
		parameters,
		WithRandomSeed(2001),
		WithLogEvery(1),
		WithLogGradients(),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Log.Iterations) == 0 {
		t.Fatal("expected a diagnostic iteration record")
	}

	record := result.Log.Iterations[0]
	if record.GradH == nil || record.H == nil {
		t.Fatal("diagnostic record must carry gradients and logits")
	}

	h := record.H.At(0, 0)
	w := record.W.At(0, 0)
	b := record.B.At(0, 0)
	x := dataset.Sequence.At(0, 0, 0)

	sH := 1.0 / (1.0 + math.Pow(math.E, -h))
	sW := 1.0 / (1.0 + math.Pow(math.E, -w))
	sB := 1.0 / (1.0 + math.Pow(math.E, -b))
	residual := sH*sW + sB - x

	expectedGradH := residual * sW * math.Pow(math.E, -h) / math.Pow(1+math.Pow(math.E, -h), 2)
	expectedGradW := residual * sH * math.Pow(math.E, -w) / math.Pow(1+math.Pow(math.E, -w), 2)
	expectedGradB := residual * math.Pow(math.E, -b) / math.Pow(1+math.Pow(math.E, -b), 2)

	if math.Abs(record.GradH.At(0, 0)-expectedGradH) > 1e-3 {
		t.Errorf("wrong H gradient: %v, correct answer: %v", record.GradH.At(0, 0), expectedGradH)
	}
	if math.Abs(record.GradW.At(0, 0)-expectedGradW) > 1e-3 {
		t.Errorf("wrong W gradient: %v, correct answer: %v", record.GradW.At(0, 0), expectedGradW)
	}
	if math.Abs(record.GradB.At(0, 0)-expectedGradB) > 1e-3 {
		t.Errorf("wrong B gradient: %v, correct answer: %v", record.GradB.At(0, 0), expectedGradB)
	}
}

func TestConvergenceTwoFarComponents(t *testing.T) {
	dataset := twoCellDataset(t, 100, 7)

	parameters := Parameters{
		MaxIteration: 100000,
		BatchSize:    10,
		StepSize:     2.0,
		MinLoss:      1e-3,
	}
	result, err := Fit(
		dataset.Sequence,
		NewComponentDescriptions(dataset.BoundingBoxes),
		parameters,
		WithRandomSeed(2001),
		WithLogEvery(1000),
	)
	if err != nil {
		t.Fatal(err)
	}

	if !result.Log.Converged {
		t.Fatal("expected termination via the convergence branch")
	}
	if rows, cols := result.H.Dims(); rows != 2 || cols != 1 {
		t.Errorf("wrong H shape: %dx%d, expected: 2x1", rows, cols)
	}
	for _, value := range []float64{result.H.At(0, 0), result.W.At(0, 0), result.B.At(0, 0)} {
		if value <= 0 || value >= 1 {
			t.Errorf("returned factor %v outside (0, 1)", value)
		}
	}
}

func TestDeterministicRuns(t *testing.T) {
	dataset := twoCellDataset(t, 20, 3)
	descriptions := NewComponentDescriptions(dataset.BoundingBoxes)
	parameters := Parameters{
		MaxIteration: 50,
		BatchSize:    5,
		StepSize:     0.5,
		MinLoss:      0,
	}

	first, err := Fit(dataset.Sequence, descriptions, parameters, WithRandomSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Fit(dataset.Sequence, descriptions, parameters, WithRandomSeed(42))
	if err != nil {
		t.Fatal(err)
	}

	if !mat.Equal(first.H, second.H) || !mat.Equal(first.W, second.W) || !mat.Equal(first.B, second.B) {
		t.Errorf("identical seeds must reproduce identical factors")
	}
	if len(first.Log.Iterations) != len(second.Log.Iterations) {
		t.Fatalf("iteration record counts differ: %d vs %d",
			len(first.Log.Iterations), len(second.Log.Iterations))
	}
	for i := range first.Log.Iterations {
		if first.Log.Iterations[i].AverageLoss != second.Log.Iterations[i].AverageLoss {
			t.Errorf("iteration %d losses differ: %v vs %v", i,
				first.Log.Iterations[i].AverageLoss, second.Log.Iterations[i].AverageLoss)
		}
	}

	third, err := Fit(dataset.Sequence, descriptions, parameters, WithRandomSeed(43))
	if err != nil {
		t.Fatal(err)
	}
	if mat.Equal(first.H, third.H) {
		t.Errorf("different seeds must produce different factors")
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	dataset := twoCellDataset(t, 20, 5)
	descriptions := NewComponentDescriptions(dataset.BoundingBoxes)
	parameters := Parameters{
		MaxIteration: 50,
		BatchSize:    5,
		StepSize:     0.5,
		MinLoss:      0,
	}

	sequential, err := Fit(dataset.Sequence, descriptions, parameters, WithRandomSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Fit(dataset.Sequence, descriptions, parameters, WithRandomSeed(42), WithParallel())
	if err != nil {
		t.Fatal(err)
	}

	if !mat.Equal(sequential.H, parallel.H) ||
		!mat.Equal(sequential.W, parallel.W) ||
		!mat.Equal(sequential.B, parallel.B) {
		t.Errorf("parallel schedule must reproduce the sequential result")
	}
}

func TestFullBatch(t *testing.T) {
	dataset := twoCellDataset(t, 10, 9)
	parameters := Parameters{
		MaxIteration: 5,
		BatchSize:    10, // batch size == number of frames
		StepSize:     0.5,
		MinLoss:      0,
	}
	if _, err := Fit(dataset.Sequence, NewComponentDescriptions(dataset.BoundingBoxes), parameters, WithRandomSeed(1)); err != nil {
		t.Errorf("full-batch run must succeed: %v", err)
	}
}

func TestNoComponents(t *testing.T) {
	sequence, err := NewSequence(20, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	result, err := Fit(sequence, nil, DefaultParameters())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Log.Converged {
		t.Errorf("zero components must be treated as immediate convergence")
	}
	if result.H != nil || result.W != nil || result.B != nil {
		t.Errorf("zero components must yield empty factors")
	}
}

func TestValidationErrors(t *testing.T) {
	sequence, err := NewSequence(5, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	descriptions := NewComponentDescriptions([]BoundingBox{
		mustBox(t, []int{0, 0}, []int{2, 2}),
	})
	good := Parameters{MaxIteration: 10, BatchSize: 2, StepSize: 0.1, MinLoss: 0}

	cases := []struct {
		name         string
		descriptions []ComponentDescription
		parameters   Parameters
	}{
		{"batch size exceeds frames", descriptions, Parameters{MaxIteration: 10, BatchSize: 6, StepSize: 0.1, MinLoss: 0}},
		{"non-positive max iteration", descriptions, Parameters{MaxIteration: 0, BatchSize: 2, StepSize: 0.1, MinLoss: 0}},
		{"non-positive batch size", descriptions, Parameters{MaxIteration: 10, BatchSize: 0, StepSize: 0.1, MinLoss: 0}},
		{"non-positive step size", descriptions, Parameters{MaxIteration: 10, BatchSize: 2, StepSize: 0, MinLoss: 0}},
		{"negative min loss", descriptions, Parameters{MaxIteration: 10, BatchSize: 2, StepSize: 0.1, MinLoss: -1}},
		{"inconsistent component sizes", NewComponentDescriptions([]BoundingBox{
			mustBox(t, []int{0, 0}, []int{2, 2}),
			mustBox(t, []int{4, 4}, []int{3, 3}),
		}), good},
		{"box outside sequence", NewComponentDescriptions([]BoundingBox{
			mustBox(t, []int{7, 7}, []int{2, 2}),
		}), good},
	}

	for _, testCase := range cases {
		if _, err := Fit(sequence, testCase.descriptions, testCase.parameters); err == nil {
			t.Errorf("%s: expected an error", testCase.name)
		}
	}

	if _, err := Fit(nil, descriptions, good); err == nil {
		t.Errorf("nil sequence: expected an error")
	}
	if _, err := Fit(sequence, descriptions, good, WithLogEvery(0)); err == nil {
		t.Errorf("non-positive log interval: expected an error")
	}
}

package dnmf

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// IterationRecord is one entry of per-iteration statistics. The gradient and
// logit snapshots are only present on diagnostic iterations (gradient
// logging on the first iteration).
type IterationRecord struct {
	Iteration   int
	AverageLoss float64

	// Gradients of the last group's step and the logits the step was
	// computed at. Nil on lightweight records.
	GradH, GradW, GradB *mat.Dense
	H, W, B             *mat.Dense
}

// TimeRecord holds per-phase durations averaged over one logging interval.
type TimeRecord struct {
	Iteration int
	Fetch     time.Duration
	Loss      time.Duration
	Update    time.Duration
}

// Log collects the per-iteration and timing records of one optimization run.
// Records are append-only during the run and returned to the caller with the
// result.
type Log struct {
	RunID      uuid.UUID
	Iterations []IterationRecord
	Timings    []TimeRecord
	Converged  bool
}

func newLog() *Log {
	return &Log{RunID: uuid.New()}
}

func (l *Log) logIteration(iteration int, averageLoss float64) {
	l.Iterations = append(l.Iterations, IterationRecord{
		Iteration:   iteration,
		AverageLoss: averageLoss,
	})
}

func (l *Log) logGradients(
	iteration int,
	averageLoss float64,
	gradH, gradW, gradB *mat.Dense,
	hLogits, wLogits, bLogits *mat.Dense,
) {
	l.Iterations = append(l.Iterations, IterationRecord{
		Iteration:   iteration,
		AverageLoss: averageLoss,
		GradH:       mat.DenseCopyOf(gradH),
		GradW:       mat.DenseCopyOf(gradW),
		GradB:       mat.DenseCopyOf(gradB),
		H:           mat.DenseCopyOf(hLogits),
		W:           mat.DenseCopyOf(wLogits),
		B:           mat.DenseCopyOf(bLogits),
	})
}

func (l *Log) logTime(iteration int, fetch, loss, update time.Duration) {
	l.Timings = append(l.Timings, TimeRecord{
		Iteration: iteration,
		Fetch:     fetch,
		Loss:      loss,
		Update:    update,
	})
}

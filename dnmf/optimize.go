package dnmf

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Parameters controls a single optimization run. Immutable for the run.
type Parameters struct {
	// MaxIteration is the maximum number of iterations of the main loop.
	MaxIteration int
	// BatchSize is the number of distinct frames sampled per gradient step.
	// Must not exceed the number of frames in the sequence.
	BatchSize int
	// StepSize is the gradient-descent learning rate.
	StepSize float64
	// MinLoss is the convergence threshold: the run stops as soon as the
	// average loss over groups falls below it.
	MinLoss float64
}

// DefaultParameters returns the parameters used when the caller has no
// better guess.
func DefaultParameters() Parameters {
	return Parameters{
		MaxIteration: 10000,
		BatchSize:    10,
		StepSize:     1e-2,
		MinLoss:      1e-3,
	}
}

type config struct {
	logEvery     int
	logGradients bool
	seed         uint64
	seedSet      bool
	parallel     bool
}

// Option adjusts optional behaviour of Fit.
type Option func(*config)

// WithLogEvery sets how often, in iterations, timing and iteration records
// are appended to the log. Default is 10.
func WithLogEvery(n int) Option {
	return func(c *config) { c.logEvery = n }
}

// WithLogGradients records the gradients and raw logits of the first
// iteration for diagnostics.
func WithLogGradients() Option {
	return func(c *config) { c.logGradients = true }
}

// WithRandomSeed fixes the seed used for initialization and sampling. Runs
// with the same seed, inputs and parameters reproduce bit-identical results.
// Without it the seed derives from the current time.
func WithRandomSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seedSet = true
	}
}

// WithParallel runs the per-group updates of each iteration concurrently,
// one goroutine per group, synchronizing at iteration boundaries. Groups
// share no components, and a step only reads the active component's
// parameter slices, so the result is identical to the sequential schedule.
func WithParallel() Option {
	return func(c *config) { c.parallel = true }
}

// Result holds the factor estimates of one run in sigmoid space: H has one
// row per component flattened over the shared component extent, W has one
// row per component with one column per frame, B matches H. All values live
// in (0, 1). The matrices are nil when there were no components.
type Result struct {
	H   *mat.Dense
	W   *mat.Dense
	B   *mat.Dense
	Log *Log
}

// Fit factorizes the sequence into spatially-localized components, their
// per-frame activities and per-component backgrounds by stochastic gradient
// descent on a logit parameterization. Components whose bounding boxes
// transitively overlap are grouped and optimized together; each iteration
// samples one component and one frame batch per group, so an update only
// ever touches one component's parameter slices.
//
// The run terminates when the average loss over groups falls below
// parameters.MinLoss (converged) or after parameters.MaxIteration
// iterations (exhausted). Both are normal terminal states.
func Fit(sequence *Sequence, descriptions []ComponentDescription, parameters Parameters, options ...Option) (*Result, error) {
	cfg := config{logEvery: 10}
	for _, option := range options {
		option(&cfg)
	}
	if !cfg.seedSet {
		cfg.seed = uint64(time.Now().UnixNano())
	}
	if err := validate(sequence, descriptions, parameters, cfg); err != nil {
		return nil, err
	}

	groups := componentGroups(descriptions)
	numGroups := len(groups)
	fmt.Printf("number of connected components: %d\n", numGroups)

	log := newLog()
	if numGroups == 0 {
		log.Converged = true
		return &Result{Log: log}, nil
	}

	numFrames := sequence.NumFrames()
	componentSize := descriptions[0].BoundingBox.Size()
	hLogits, wLogits, bLogits := initializeNormal(len(descriptions), numFrames, componentSize, cfg.seed)

	// One RNG per group keeps the sampled components and frames identical
	// between the sequential and the parallel schedule.
	rngs := make([]*rand.Rand, numGroups)
	for g := range rngs {
		rngs[g] = rand.New(rand.NewPCG(cfg.seed, uint64(g)+1))
	}

	var initialH, initialW, initialB *mat.Dense
	if cfg.logGradients {
		initialH = mat.DenseCopyOf(hLogits)
		initialW = mat.DenseCopyOf(wLogits)
		initialB = mat.DenseCopyOf(bLogits)
	}

	var timing timingAccumulators

	for iteration := 0; iteration < parameters.MaxIteration; iteration++ {

		losses := make([]float64, numGroups)
		var lastGradH, lastGradW, lastGradB *mat.Dense

		if cfg.parallel {
			grads := make([][3]*mat.Dense, numGroups)
			var wg sync.WaitGroup
			for g := range groups {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					loss, gradH, gradW, gradB := groupStep(
						sequence, groups[g], rngs[g], parameters,
						hLogits, wLogits, bLogits, &timing)
					losses[g] = loss
					grads[g] = [3]*mat.Dense{gradH, gradW, gradB}
				}(g)
			}
			wg.Wait()
			last := grads[numGroups-1]
			lastGradH, lastGradW, lastGradB = last[0], last[1], last[2]
		} else {
			for g := range groups {
				loss, gradH, gradW, gradB := groupStep(
					sequence, groups[g], rngs[g], parameters,
					hLogits, wLogits, bLogits, &timing)
				losses[g] = loss
				lastGradH, lastGradW, lastGradB = gradH, gradW, gradB
			}
		}

		totalLoss := 0.0
		for _, loss := range losses {
			totalLoss += loss
		}
		averageLoss := totalLoss / float64(numGroups)

		if iteration%cfg.logEvery == 0 {
			fetch, loss, update := timing.averages(cfg.logEvery)
			log.logTime(iteration, fetch, loss, update)
			timing.reset()
		}

		if iteration == 0 && cfg.logGradients {
			log.logGradients(iteration, averageLoss,
				lastGradH, lastGradW, lastGradB,
				initialH, initialW, initialB)
		} else if iteration%cfg.logEvery == 0 {
			log.logIteration(iteration, averageLoss)
		}

		if averageLoss < parameters.MinLoss {
			fmt.Printf("optimization converged (%g < %g)\n", averageLoss, parameters.MinLoss)
			log.Converged = true
			break
		}
	}

	return &Result{
		H:   sigmoidDense(hLogits),
		W:   sigmoidDense(wLogits),
		B:   sigmoidDense(bLogits),
		Log: log,
	}, nil
}

// groupStep samples one component and one frame batch for the group,
// computes the loss and gradient and applies the descent step to the active
// component's parameter slices.
func groupStep(
	sequence *Sequence,
	group []ComponentDescription,
	rng *rand.Rand,
	parameters Parameters,
	hLogits, wLogits, bLogits *mat.Dense,
	timing *timingAccumulators,
) (float64, *mat.Dense, *mat.Dense, *mat.Dense) {

	description := group[rng.IntN(len(group))]
	frames := rng.Perm(sequence.NumFrames())[:parameters.BatchSize]

	fetchStart := time.Now()
	x := sequence.batch(frames, description.BoundingBox)
	timing.addFetch(time.Since(fetchStart))

	lossStart := time.Now()
	loss, gradH, gradW, gradB := l2LossGrad(hLogits, wLogits, bLogits, x, description, frames)
	timing.addLoss(time.Since(lossStart))

	updateStart := time.Now()
	applyStep(hLogits, gradH, description.Index, parameters.StepSize)
	applyStep(wLogits, gradW, description.Index, parameters.StepSize)
	applyStep(bLogits, gradB, description.Index, parameters.StepSize)
	timing.addUpdate(time.Since(updateStart))

	return loss, gradH, gradW, gradB
}

// applyStep applies param <- param - step*grad to a single component row.
func applyStep(param, grad *mat.Dense, component int, step float64) {
	row := param.RawRowView(component)
	gradRow := grad.RawRowView(component)
	for i := range row {
		row[i] -= step * gradRow[i]
	}
}

func validate(sequence *Sequence, descriptions []ComponentDescription, parameters Parameters, cfg config) error {
	if sequence == nil || len(sequence.data) == 0 {
		return errors.New("empty sequence")
	}
	if parameters.MaxIteration <= 0 {
		return errors.Errorf("max iteration must be positive, got %d", parameters.MaxIteration)
	}
	if parameters.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", parameters.BatchSize)
	}
	if parameters.BatchSize > sequence.NumFrames() {
		return errors.Errorf("batch size %d exceeds number of frames %d", parameters.BatchSize, sequence.NumFrames())
	}
	if parameters.StepSize <= 0 {
		return errors.Errorf("step size must be positive, got %g", parameters.StepSize)
	}
	if parameters.MinLoss < 0 {
		return errors.Errorf("min loss must be non-negative, got %g", parameters.MinLoss)
	}
	if cfg.logEvery <= 0 {
		return errors.Errorf("log interval must be positive, got %d", cfg.logEvery)
	}
	var componentShape []int
	for _, description := range descriptions {
		box := description.BoundingBox
		if !sequence.contains(box) {
			return errors.Errorf("bounding box of component %d does not fit the sequence", description.Index)
		}
		if componentShape == nil {
			componentShape = box.Shape()
			continue
		}
		if !equalShape(componentShape, box.Shape()) {
			return errors.Errorf("only components of the same size are supported, component %d differs", description.Index)
		}
	}
	return nil
}

// timingAccumulators collects per-phase durations between logging intervals.
type timingAccumulators struct {
	mu     sync.Mutex
	fetch  time.Duration
	loss   time.Duration
	update time.Duration
}

func (a *timingAccumulators) addFetch(d time.Duration) {
	a.mu.Lock()
	a.fetch += d
	a.mu.Unlock()
}

func (a *timingAccumulators) addLoss(d time.Duration) {
	a.mu.Lock()
	a.loss += d
	a.mu.Unlock()
}

func (a *timingAccumulators) addUpdate(d time.Duration) {
	a.mu.Lock()
	a.update += d
	a.mu.Unlock()
}

func (a *timingAccumulators) averages(interval int) (fetch, loss, update time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := time.Duration(interval)
	return a.fetch / n, a.loss / n, a.update / n
}

func (a *timingAccumulators) reset() {
	a.mu.Lock()
	a.fetch, a.loss, a.update = 0, 0, 0
	a.mu.Unlock()
}

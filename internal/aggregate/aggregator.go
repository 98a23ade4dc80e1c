package aggregate

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"time"

	eperrors "github.com/epitomedb/epitome/internal/errors"
	"github.com/epitomedb/epitome/internal/progress"
	"github.com/epitomedb/epitome/pkg/frame"
)

// Params holds the aggregation parameters consumed by the dispatcher.
type Params struct {
	// MinRows is the row count below which no aggregation is done and
	// every row becomes its own exemplar (the 0-D path).
	MinRows int

	// NBins is the bin count for 1-D continuous aggregation.
	NBins int

	// NXBins and NYBins are the per-axis bin counts for 2-D aggregation.
	NXBins int
	NYBins int

	// NDMaxBins is the target upper bound on the exemplar count in the
	// N-D path; it is also the group cap applied by the sampler.
	NDMaxBins int

	// MaxDimensions caps the clustering dimensionality; more numeric
	// columns than this triggers random Gaussian projection.
	MaxDimensions int

	// Seed drives all random choices; 0 draws a seed from OS entropy.
	// Even with a fixed seed the output is not bitwise reproducible,
	// because lock acquisition order affects which rows become
	// exemplars.
	Seed uint32

	// NThreads is the worker count for the N-D path; 0 uses the number
	// of CPUs. The effective count never exceeds the row count.
	NThreads int

	// Progress optionally receives progress updates.
	Progress progress.Func
}

// Validate checks the parameters.
func (p Params) Validate() error {
	for _, c := range []struct {
		name  string
		value int
	}{
		{"n_bins", p.NBins},
		{"nx_bins", p.NXBins},
		{"ny_bins", p.NYBins},
		{"nd_max_bins", p.NDMaxBins},
		{"max_dimensions", p.MaxDimensions},
	} {
		if c.value <= 0 {
			return eperrors.NewConfigError(
				fmt.Sprintf("%s must be positive, got %d", c.name, c.value))
		}
	}
	if p.MinRows < 0 {
		return eperrors.NewConfigError(
			fmt.Sprintf("min_rows must be non-negative, got %d", p.MinRows))
	}
	if p.NThreads < 0 {
		return eperrors.NewConfigError(
			fmt.Sprintf("nthreads must be non-negative, got %d", p.NThreads))
	}
	return nil
}

// Result holds the two output tables of an aggregation.
type Result struct {
	// Exemplars is a row subset of the input with an appended
	// members_count column.
	Exemplars *frame.Frame

	// Members is a single int32 column named exemplar_id, aligned
	// row-for-row with the input. An entry is missing only when the
	// sampler discarded the row's group.
	Members *frame.Frame

	// Stats is a snapshot of the run's progress tracker.
	Stats progress.Stats
}

// Aggregator reduces a frame to exemplars plus a membership mapping.
// T is the floating point width used for all distance calculations;
// either width converges to roughly the same exemplar set.
//
// An Aggregator is good for one Aggregate call at a time; it holds no
// state between calls.
type Aggregator[T Float] struct {
	params Params
	seed   uint32

	df           *frame.Frame
	convs        []*convertor[T]
	cat          *frame.Frame
	members      *frame.Int32Column
	membersFrame *frame.Frame
	tracker      *progress.Tracker
}

// New creates an aggregator with validated parameters.
func New[T Float](params Params) (*Aggregator[T], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator[T]{params: params}, nil
}

// Aggregate runs the engine over df and returns the exemplars and
// members tables. On error both outputs are nil; no partial result is
// ever returned. Cancelling ctx interrupts the N-D path and surfaces as
// an INTERRUPT error with progress status 3.
func (a *Aggregator[T]) Aggregate(ctx context.Context, df *frame.Frame) (*Result, error) {
	a.df = df
	a.tracker = progress.NewTracker(a.params.Progress, df.NRows())
	a.tracker.Emit(0, progress.StatusRunning)

	a.seed = a.params.Seed
	if a.seed == 0 {
		a.seed = entropySeed()
	}

	a.members = frame.NewInt32(make([]int32, df.NRows()))
	membersFrame, err := frame.New([]frame.Column{a.members}, []string{"exemplar_id"})
	if err != nil {
		return nil, a.fail(err)
	}
	a.membersFrame = membersFrame

	wasSampled := false
	switch {
	case df.NRows() == 0:
		// Nothing to group; both outputs come out empty.
	case df.NRows() >= a.params.MinRows:
		a.classifyColumns()
		var maxBins, naBins int
		switch len(a.convs) + a.cat.NCols() {
		case 0:
			a.tracker.SetPath("0d")
			err = a.group0D()
			maxBins = a.params.NDMaxBins
		case 1:
			a.tracker.SetPath("1d")
			err = a.group1D()
			maxBins = a.params.NBins
			naBins = 1
		case 2:
			a.tracker.SetPath("2d")
			err = a.group2D()
			maxBins = a.params.NXBins * a.params.NYBins
			naBins = 3
		default:
			a.tracker.SetPath("nd")
			err = a.groupND(ctx)
			maxBins = a.params.NDMaxBins
		}
		if err == nil {
			// Sample members if grouping gathered too many exemplars.
			wasSampled, err = a.sampleExemplars(maxBins, naBins)
		}
	default:
		a.tracker.SetPath("0d")
		err = a.group0D()
	}
	if err != nil {
		return nil, a.fail(err)
	}

	exemplars, err := a.finalize(wasSampled)
	if err != nil {
		return nil, a.fail(err)
	}

	members := a.membersFrame
	a.release()
	a.tracker.Emit(1, progress.StatusDone)
	return &Result{
		Exemplars: exemplars,
		Members:   members,
		Stats:     a.tracker.Snapshot(),
	}, nil
}

// classifyColumns builds a convertor per numeric column and collects the
// categorical columns. Categorical columns are only considered when the
// frame has fewer than three columns in total; in the N-D path all
// categoricals are ignored. This is a known narrowing of scope.
func (a *Aggregator[T]) classifyColumns() {
	total := a.df.NCols()
	var convs []*convertor[T]
	var catCols []frame.Column
	var catNames []string
	for i := 0; i < total; i++ {
		col := a.df.Column(i)
		if col.Stype().IsNumeric() {
			convs = append(convs, newConvertor[T](col))
		} else if total < 3 {
			catCols = append(catCols, col)
			catNames = append(catNames, a.df.Name(i))
		}
	}
	a.convs = convs
	a.cat, _ = frame.New(catCols, catNames)
}

// nthreads returns the worker count for a loop over nrows rows.
func (a *Aggregator[T]) nthreads(nrows int) int {
	nth := a.params.NThreads
	if nth <= 0 {
		nth = defaultThreads()
	}
	if nth > nrows {
		nth = nrows
	}
	if nth < 1 {
		nth = 1
	}
	return nth
}

// fail reports the terminal progress status for err and wraps it into a
// structured error when it is not one already.
func (a *Aggregator[T]) fail(err error) error {
	frac := a.tracker.Snapshot().Fraction
	if isInterrupt(err) {
		a.tracker.Emit(frac, progress.StatusInterrupt)
		a.release()
		return eperrors.NewInterruptError(err)
	}
	a.tracker.Emit(frac, progress.StatusError)
	a.release()
	if eperrors.GetCategory(err) != "" {
		return err
	}
	return eperrors.NewWorkerError("aggregation failed", err)
}

// release drops the per-call references so the input can be collected.
func (a *Aggregator[T]) release() {
	a.df = nil
	a.convs = nil
	a.cat = nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		eperrors.GetCategory(err) == eperrors.ErrCategoryInterrupt
}

// defaultThreads is the worker count used when none is configured.
func defaultThreads() int {
	return runtime.NumCPU()
}

// entropySeed draws a 32-bit seed from OS entropy.
func entropySeed() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(b[:])
}

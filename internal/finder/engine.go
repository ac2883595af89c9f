package finder

import (
	"context"
	"errors"
)

var (
	// ErrScanOrder means ProcessScan was called with a scan index that
	// does not exceed the previous one
	ErrScanOrder = errors.New("finder: scan indices must be strictly increasing")
	// ErrFlushed means the engine received a scan after Flush
	ErrFlushed = errors.New("finder: engine already flushed")
)

// Engine runs the feature finding pipeline for one spectrum map. It owns
// the precomputed wavelet tables and the box tracker state; no other
// component mutates a box. An Engine is not safe for concurrent use:
// scans must be processed one after another in ascending order.
type Engine struct {
	par      Params
	tables   *Tables
	tracker  *boxTracker
	numScans int
	lastScan int
	flushed  bool
}

// NewEngine validates the parameters and precomputes the wavelet tables
// for a run of numScans scans with maximum observed m/z maxMz. A vote
// cutoff larger than the number of scans can never be met; it is clamped
// to 0 here, once per run, so that no box is discarded for lack of votes.
func NewEngine(par Params, numScans int, maxMz float64) (*Engine, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	cutoff := par.RTVotesCutoff
	if cutoff > numScans {
		cutoff = 0
	}
	e := Engine{
		par:      par,
		tables:   NewTables(maxMz, par.MaxCharge),
		tracker:  newBoxTracker(par.RTInterleave, cutoff),
		numScans: numScans,
		lastScan: -1,
	}
	return &e, nil
}

// Tables exposes the run-global precomputed tables (read-only)
func (e *Engine) Tables() *Tables {
	return e.tables
}

// ProcessScan runs transform, charge identification and box tracking for
// one scan. Scans must arrive in strictly increasing ScanIndex order.
// The returned candidates are informational (debug output); they are not
// retained by the engine. A scan that yields no candidates is not an
// error: gap based box closing still takes place.
func (e *Engine) ProcessScan(spec Spectrum) ([]Candidate, error) {
	if e.flushed {
		return nil, ErrFlushed
	}
	if spec.ScanIndex <= e.lastScan {
		return nil, ErrScanOrder
	}
	signals := e.tables.Transforms(spec.Peaks, e.par.MaxCharge, e.par.Mode)
	cands := identifyCharges(signals, spec, e.par.IntensityThreshold)
	e.tracker.update(spec.ScanIndex, spec.RetentionTime, cands)
	e.lastScan = spec.ScanIndex
	return cands, nil
}

// Flush closes all remaining open boxes. It must be called once after
// the last scan; further calls are no-ops.
func (e *Engine) Flush() {
	if !e.flushed {
		e.tracker.flush()
		e.flushed = true
	}
}

// Features drains the closed box set into features. Boxes are destroyed;
// a second call returns only boxes closed since the first.
func (e *Engine) Features() []Feature {
	features := consolidate(e.tracker.closed)
	e.tracker.closed = nil
	return features
}

// Reset discards all tracking state so the engine can process another
// run with the same parameters and tables
func (e *Engine) Reset() {
	e.tracker = newBoxTracker(e.tracker.interleave, e.tracker.votesCutoff)
	e.lastScan = -1
	e.flushed = false
}

// Run processes a whole spectrum map and returns the consolidated
// features. Cancellation is checked once per scan boundary; when the
// context is cancelled, partial results are discarded and the context
// error is returned.
func (e *Engine) Run(ctx context.Context, scans []Spectrum) ([]Feature, error) {
	for _, spec := range scans {
		if err := ctx.Err(); err != nil {
			e.Reset()
			return nil, err
		}
		if _, err := e.ProcessScan(spec); err != nil {
			return nil, err
		}
	}
	e.Flush()
	return e.Features(), nil
}

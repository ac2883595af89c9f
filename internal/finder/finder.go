// Package finder detects isotope-pattern features in raw MS1 data.
// Each scan is correlated against an isotope wavelet for every charge
// hypothesis, local maxima of the transforms are assigned a charge, and
// the resulting candidates are tracked over the retention time axis by a
// sweep line algorithm. Patterns that persist long enough are reported
// as features.
package finder

import (
	"fmt"

	"github.com/524D/isofinder/internal/mzml"
)

// Recording modes (ion polarity) accepted by the engine
const (
	ModePositive = 1
	ModeNegative = -1
)

// ThresholdOff is the sentinel value for Params.IntensityThreshold that
// disables the adaptive threshold. Any positive local maximum of the
// transform is then accepted.
const ThresholdOff = float64(-1)

// Spectrum is a single scan handed to the engine. Peaks must be ordered
// by m/z. ScanIndex numbers the MS1 scans of the run and must increase
// between successive calls to ProcessScan.
type Spectrum struct {
	ScanIndex     int
	RetentionTime float64
	Peaks         []mzml.Peak
}

// Candidate is one charge-annotated local maximum of the wavelet
// transform of a single scan. Candidates are consumed by the box tracker
// and not retained.
type Candidate struct {
	Mz     float64
	Charge int
	Score  float64
	Intens float64
	Scan   int
}

// Params holds the feature finding parameters, named after the
// corresponding user options.
type Params struct {
	MaxCharge          int     // highest charge hypothesis to consider
	IntensityThreshold float64 // t in t' = av + t*sd, or ThresholdOff
	RTVotesCutoff      int     // minimum number of scans a pattern must cover
	RTInterleave       int     // tolerated number of missed scans between votes
	Mode               int     // ModePositive or ModeNegative
}

// ConfigurationError reports an invalid feature finding parameter.
// It is returned before any scan is processed.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("finder: invalid option %s: %s", e.Option, e.Reason)
}

func (p Params) validate() error {
	if p.MaxCharge < 1 {
		return &ConfigurationError{Option: "max_charge", Reason: "must be at least 1"}
	}
	if p.RTVotesCutoff < 0 {
		return &ConfigurationError{Option: "rt_votes_cutoff", Reason: "must not be negative"}
	}
	if p.RTInterleave < 0 {
		return &ConfigurationError{Option: "rt_interleave", Reason: "must not be negative"}
	}
	if p.Mode != ModePositive && p.Mode != ModeNegative {
		return &ConfigurationError{Option: "recording_mode", Reason: "must be +1 or -1"}
	}
	return nil
}

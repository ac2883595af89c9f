package finder

import (
	"math"

	"github.com/524D/isofinder/internal/mzml"
)

// Average spacing between adjacent isotope peaks of a peptide, in Dalton.
// For charge z the observed spacing is isotopeSpacing/z.
const isotopeSpacing = float64(1.00235)

// Linear fit of the averagine Poisson parameter lambda against the
// uncharged mass
const (
	lambda0 = float64(0.035)
	lambda1 = float64(0.000678)
)

// Resolution of the precomputed 1/Gamma(t+1) table, samples per isotope
const gammaTableRes = 512

// lambdaAt returns the Poisson parameter of the isotope intensity
// envelope for a given uncharged mass
func lambdaAt(mass float64) float64 {
	return lambda0 + lambda1*mass
}

// Tables holds the run-global precomputed wavelet data: the kernel
// support (number of isotopes considered) derived from the largest
// uncharged mass that can occur in the run, and an amortized lookup
// table for the continuous factorial in the isotope envelope.
// Tables are read-only after NewTables and shared by every per-scan
// transform; the kernel support must not change between scans.
type Tables struct {
	maxCharge    int
	isotopeCount int
	gammaInv     []float64 // 1/Gamma(t+1), sampled at gammaTableRes per isotope
}

// NewTables precomputes the wavelet tables for a run. maxMz is the
// largest m/z value observed anywhere in the spectrum map.
func NewTables(maxMz float64, maxCharge int) *Tables {
	// The kernel must span the isotope envelope of the heaviest
	// conceivable pattern. The Poisson envelope becomes negligible
	// a few standard deviations (sqrt(lambda)) past its mean.
	lambdaMax := lambdaAt(maxMz * float64(maxCharge))
	n := int(math.Ceil(lambdaMax+4.0*math.Sqrt(lambdaMax))) + 2
	if n < 4 {
		n = 4
	}

	t := Tables{
		maxCharge:    maxCharge,
		isotopeCount: n,
	}
	t.gammaInv = make([]float64, n*gammaTableRes+1)
	for i := range t.gammaInv {
		x := float64(i) / gammaTableRes
		t.gammaInv[i] = 1.0 / math.Gamma(x+1.0)
	}
	return &t
}

// IsotopeCount returns the kernel support in isotopes
func (t *Tables) IsotopeCount() int {
	return t.isotopeCount
}

// support returns the kernel length in m/z units for a given charge
func (t *Tables) support(charge int) float64 {
	return float64(t.isotopeCount) * isotopeSpacing / float64(charge)
}

// gammaInvAt interpolates 1/Gamma(t+1) from the precomputed table
func (t *Tables) gammaInvAt(x float64) float64 {
	pos := x * gammaTableRes
	i := int(pos)
	if i >= len(t.gammaInv)-1 {
		return t.gammaInv[len(t.gammaInv)-1]
	}
	frac := pos - float64(i)
	return t.gammaInv[i] + frac*(t.gammaInv[i+1]-t.gammaInv[i])
}

// psi evaluates the isotope wavelet for a given charge at offset x
// (in m/z units, x >= 0) from the kernel origin. The harmonic factor
// peaks wherever a point sits an integer number of isotope spacings
// from the origin; the envelope is the averagine isotope distribution
// with continuous interpolation of the factorial.
func (t *Tables) psi(charge int, lambda, x float64) float64 {
	ti := x * float64(charge) / isotopeSpacing // offset in isotope units
	env := math.Exp(ti*math.Log(lambda)-lambda) * t.gammaInvAt(ti)
	return math.Cos(2.0*math.Pi*ti) * env
}

// Transform correlates the spectrum against the isotope wavelet for one
// charge hypothesis. The result is aligned to the input peak list: entry
// i holds the correlation of the kernel anchored at peaks[i].Mz. Peaks
// must be ordered by m/z. Mode (+1 or -1) scales the kernel polarity.
// All outputs are finite; an empty spectrum yields an empty signal.
func (t *Tables) Transform(peaks []mzml.Peak, charge int, mode int) []float64 {
	signal := make([]float64, len(peaks))
	if len(peaks) == 0 {
		return signal
	}
	sup := t.support(charge)
	for i := range peaks {
		mz := peaks[i].Mz
		lambda := lambdaAt(mz * float64(charge))
		var sum float64
		for j := i; j < len(peaks) && peaks[j].Mz-mz < sup; j++ {
			sum += peaks[j].Intens * t.psi(charge, lambda, peaks[j].Mz-mz)
		}
		signal[i] = float64(mode) * sum
	}
	return signal
}

// Transforms computes the wavelet transform of one scan for every
// charge hypothesis from 1 to maxCharge. The charge hypotheses are
// independent of each other; the signals are indexed by charge-1.
func (t *Tables) Transforms(peaks []mzml.Peak, maxCharge int, mode int) [][]float64 {
	signals := make([][]float64, maxCharge)
	for c := 1; c <= maxCharge; c++ {
		signals[c-1] = t.Transform(peaks, c, mode)
	}
	return signals
}

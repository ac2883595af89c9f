package finder

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// identifyCharges selects the charge state for each local maximum of the
// transformed signals of one scan. A maximum is accepted when its value
// strictly exceeds the charge specific threshold t' = av + amplCutoff*sd,
// computed over that charge's transform. With amplCutoff set to
// ThresholdOff, t' is zero. When several charge hypotheses peak at the
// same position, the highest scoring one wins; on an exact tie the lower
// charge is kept. At most one candidate is emitted per peak position.
func identifyCharges(signals [][]float64, spec Spectrum, amplCutoff float64) []Candidate {
	best := make(map[int]Candidate)

	for c0, signal := range signals {
		charge := c0 + 1
		if len(signal) < 3 {
			continue
		}
		threshold := float64(0)
		if amplCutoff != ThresholdOff {
			av := stat.Mean(signal, nil)
			sd := stat.StdDev(signal, nil)
			threshold = av + amplCutoff*sd
		}
		for i := 1; i < len(signal)-1; i++ {
			if signal[i] <= signal[i-1] || signal[i] <= signal[i+1] {
				continue
			}
			// Strictly above threshold; a value exactly at t' is rejected
			if signal[i] <= threshold {
				continue
			}
			prev, seen := best[i]
			// Charges are visited in ascending order, so a strict
			// comparison keeps the lower charge on a score tie
			if !seen || signal[i] > prev.Score {
				best[i] = Candidate{
					Mz:     spec.Peaks[i].Mz,
					Charge: charge,
					Score:  signal[i],
					Intens: spec.Peaks[i].Intens,
					Scan:   spec.ScanIndex,
				}
			}
		}
	}

	if len(best) == 0 {
		return nil
	}
	positions := make([]int, 0, len(best))
	for i := range best {
		positions = append(positions, i)
	}
	sort.Ints(positions)
	cands := make([]Candidate, 0, len(best))
	for _, i := range positions {
		cands = append(cands, best[i])
	}
	return cands
}

package finder

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Feature is one consolidated isotope pattern. Mz is the intensity
// weighted centroid of the votes, the retention time is reported as the
// [RTMin,RTMax] range of the contributing scans, Intens is the summed
// intensity and Score the best per-scan score.
type Feature struct {
	Mz        float64
	Charge    int
	RTMin     float64
	RTMax     float64
	ScanFirst int
	ScanLast  int
	Votes     int
	Intens    float64
	Score     float64
}

// consolidate collapses closed boxes into features, one feature per box.
// The boxes are destroyed in the process.
func consolidate(boxes []*box) []Feature {
	features := make([]Feature, 0, len(boxes))
	for _, b := range boxes {
		features = append(features, boxToFeature(b))
		b.elems = nil
	}
	return features
}

func boxToFeature(b *box) Feature {
	n := len(b.elems)
	mzs := make([]float64, n)
	weights := make([]float64, n)
	scores := make([]float64, n)
	f := Feature{
		Charge:    b.charge,
		RTMin:     b.elems[0].rt,
		RTMax:     b.elems[0].rt,
		ScanFirst: b.elems[0].scan,
		ScanLast:  b.elems[n-1].scan,
		Votes:     n,
	}
	for i, el := range b.elems {
		mzs[i] = el.mz
		weights[i] = el.intens
		scores[i] = el.score
		if el.rt < f.RTMin {
			f.RTMin = el.rt
		}
		if el.rt > f.RTMax {
			f.RTMax = el.rt
		}
	}
	f.Intens = floats.Sum(weights)
	f.Score = floats.Max(scores)
	if f.Intens > 0 {
		f.Mz = floats.Dot(mzs, weights) / f.Intens
	} else {
		// All-zero intensities, fall back to the plain mean
		f.Mz = stat.Mean(mzs, nil)
	}
	return f
}

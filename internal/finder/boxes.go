package finder

import "math"

// boxElement is the contribution (vote) of one scan to a box
type boxElement struct {
	scan   int
	mz     float64
	score  float64
	intens float64
	rt     float64
}

// box is one tracked candidate isotope pattern trajectory. The charge is
// fixed at creation; elements are kept in strictly increasing scan order
// with at most one element per scan.
type box struct {
	id     int // creation order, used as deterministic tie break
	charge int
	elems  []boxElement
}

func (b *box) lastScan() int {
	return b.elems[len(b.elems)-1].scan
}

func (b *box) lastMz() float64 {
	return b.elems[len(b.elems)-1].mz
}

// boxTracker is the sweep line state machine. It owns the open and
// closed box sets for one run; update must be called once per scan with
// strictly increasing scan indices, flush once after the last scan.
type boxTracker struct {
	interleave  int
	votesCutoff int // effective cutoff, clamped to 0 by the engine
	nextID      int
	open        []*box
	closed      []*box
}

func newBoxTracker(interleave, votesCutoff int) *boxTracker {
	return &boxTracker{
		interleave:  interleave,
		votesCutoff: votesCutoff,
	}
}

// matchTol is the window within which a candidate is considered the
// continuation of a box: half the isotope spacing at the box's charge
func matchTol(charge int) float64 {
	return isotopeSpacing / (2.0 * float64(charge))
}

// update feeds the candidates of one scan into the tracker. rt is the
// retention time of the scan, stored with each vote. Candidates extend
// the nearest open box of the same charge within tolerance, or open a
// new box. Open boxes that did not receive a vote are closed once the
// number of fully missed scans since their last vote exceeds the
// interleave. An empty candidate list is ordinary input; the gap based
// closing still runs.
func (t *boxTracker) update(scan int, rt float64, cands []Candidate) {
	for _, cand := range cands {
		b := t.matchBox(scan, cand)
		if b == nil {
			b = &box{id: t.nextID, charge: cand.Charge}
			t.nextID++
			t.open = append(t.open, b)
		}
		b.elems = append(b.elems, boxElement{
			scan:   scan,
			mz:     cand.Mz,
			score:  cand.Score,
			intens: cand.Intens,
			rt:     rt,
		})
	}

	// Close timed-out boxes, keeping the rest in place
	k := 0
	for _, b := range t.open {
		if b.lastScan() != scan && scan-b.lastScan()-1 > t.interleave {
			t.closeBox(b)
		} else {
			t.open[k] = b
			k++
		}
	}
	t.open = t.open[:k]
}

// matchBox returns the open box that the candidate extends, or nil.
// Only boxes of the same charge qualify, a box accepts at most one vote
// per scan, and the last element must lie within the charge scaled
// tolerance. The nearest box by m/z wins; an exact distance tie goes to
// the box created first.
func (t *boxTracker) matchBox(scan int, cand Candidate) *box {
	var found *box
	bestDist := math.MaxFloat64
	tol := matchTol(cand.Charge)
	for _, b := range t.open {
		if b.charge != cand.Charge || b.lastScan() == scan {
			continue
		}
		d := math.Abs(b.lastMz() - cand.Mz)
		if d <= tol && d < bestDist {
			found = b
			bestDist = d
		}
	}
	return found
}

// closeBox moves a box to the closed set when it has enough votes,
// or discards it
func (t *boxTracker) closeBox(b *box) {
	if len(b.elems) >= t.votesCutoff {
		t.closed = append(t.closed, b)
	}
}

// flush force-closes every remaining open box under the same vote count
// rule as the per-scan gap check. It replaces the legacy trick of feeding
// a huge scan index through update.
func (t *boxTracker) flush() {
	for _, b := range t.open {
		t.closeBox(b)
	}
	t.open = nil
}

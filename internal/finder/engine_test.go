package finder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/524D/isofinder/internal/mzml"
	"github.com/google/go-cmp/cmp"
)

func validParams() Params {
	return Params{
		MaxCharge:          3,
		IntensityThreshold: ThresholdOff,
		RTVotesCutoff:      3,
		RTInterleave:       1,
		Mode:               ModePositive,
	}
}

func TestNewEngineConfigErrors(t *testing.T) {
	cases := []struct {
		name   string
		mangle func(*Params)
		option string
	}{
		{"zero charge", func(p *Params) { p.MaxCharge = 0 }, "max_charge"},
		{"negative votes", func(p *Params) { p.RTVotesCutoff = -1 }, "rt_votes_cutoff"},
		{"negative interleave", func(p *Params) { p.RTInterleave = -1 }, "rt_interleave"},
		{"bad mode", func(p *Params) { p.Mode = 0 }, "recording_mode"},
	}
	for _, c := range cases {
		par := validParams()
		c.mangle(&par)
		_, err := NewEngine(par, 10, 2000.0)
		if err == nil {
			t.Errorf("%s: expected error, got nil", c.name)
			continue
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigurationError, got: %v", c.name, err)
			continue
		}
		if cfgErr.Option != c.option {
			t.Errorf("%s: expected option %s, got: %s", c.name, c.option, cfgErr.Option)
		}
	}
}

func TestEngineScanOrder(t *testing.T) {
	engine, err := NewEngine(validParams(), 10, 2000.0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	spec := Spectrum{ScanIndex: 5, Peaks: isotopePattern(500.0, 2, 5, 1000.0)}
	if _, err := engine.ProcessScan(spec); err != nil {
		t.Fatalf("ProcessScan: %v", err)
	}
	// Same scan index again must be rejected
	if _, err := engine.ProcessScan(spec); !errors.Is(err, ErrScanOrder) {
		t.Errorf("Expected ErrScanOrder, got: %v", err)
	}
	// And so must an earlier one
	spec.ScanIndex = 3
	if _, err := engine.ProcessScan(spec); !errors.Is(err, ErrScanOrder) {
		t.Errorf("Expected ErrScanOrder, got: %v", err)
	}
}

func TestEngineFlushed(t *testing.T) {
	engine, err := NewEngine(validParams(), 10, 2000.0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.Flush()
	engine.Flush() // Second flush is a no-op
	spec := Spectrum{ScanIndex: 0, Peaks: isotopePattern(500.0, 2, 5, 1000.0)}
	if _, err := engine.ProcessScan(spec); !errors.Is(err, ErrFlushed) {
		t.Errorf("Expected ErrFlushed, got: %v", err)
	}
}

// A vote cutoff larger than the run length is clamped to 0, so even a
// single-scan pattern survives
func TestEngineVotesCutoffClamp(t *testing.T) {
	par := validParams()
	par.RTVotesCutoff = 10
	engine, err := NewEngine(par, 5, 2000.0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	spec := Spectrum{ScanIndex: 0, RetentionTime: 10.0,
		Peaks: patternScan(500.0, 2)}
	if _, err := engine.ProcessScan(spec); err != nil {
		t.Fatalf("ProcessScan: %v", err)
	}
	engine.Flush()
	features := engine.Features()
	if len(features) == 0 {
		t.Errorf("Expected clamped cutoff to keep the single-scan feature")
	}
}

// patternScan embeds a charge 2 isotope pattern at mz0 between low
// baseline peaks, so the pattern start is an interior point of the scan
func patternScan(mz0 float64, charge int) []mzml.Peak {
	peaks := []mzml.Peak{{Mz: mz0 - 1.0, Intens: 0.1}}
	peaks = append(peaks, isotopePattern(mz0, charge, 5, 1000.0)...)
	peaks = append(peaks, mzml.Peak{Mz: mz0 + 4.0, Intens: 0.1})
	return peaks
}

func testScans(numScans int) []Spectrum {
	scans := make([]Spectrum, numScans)
	for i := range scans {
		scans[i] = Spectrum{
			ScanIndex:     i,
			RetentionTime: 10.0 + float64(i),
			Peaks:         patternScan(500.0, 2),
		}
	}
	return scans
}

func TestEngineEndToEnd(t *testing.T) {
	scans := testScans(5)
	engine, err := NewEngine(validParams(), len(scans), 2000.0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	features, err := engine.Run(context.Background(), scans)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, f := range features {
		if f.Charge == 2 && math.Abs(f.Mz-500.0) < 0.01 {
			found = true
			if f.Votes != 5 {
				t.Errorf("Expected 5 votes, got: %d", f.Votes)
			}
			if f.ScanFirst != 0 || f.ScanLast != 4 {
				t.Errorf("Expected scan range 0..4, got: %d..%d", f.ScanFirst, f.ScanLast)
			}
			if f.RTMin != 10.0 || f.RTMax != 14.0 {
				t.Errorf("Expected rt range 10..14, got: %f..%f", f.RTMin, f.RTMax)
			}
		}
	}
	if !found {
		t.Errorf("Expected a charge 2 feature near mz 500, features: %+v", features)
	}
}

// Two engines fed the same scans must report identical features
func TestEngineDeterminism(t *testing.T) {
	scans := testScans(5)

	var results [][]Feature
	for run := 0; run < 2; run++ {
		engine, err := NewEngine(validParams(), len(scans), 2000.0)
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		features, err := engine.Run(context.Background(), scans)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		results = append(results, features)
	}
	if diff := cmp.Diff(results[0], results[1]); diff != "" {
		t.Errorf("Runs differ (-first +second):\n%s", diff)
	}
}

func TestEngineCancellation(t *testing.T) {
	scans := testScans(5)
	engine, err := NewEngine(validParams(), len(scans), 2000.0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	features, err := engine.Run(ctx, scans)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	// Partial results are discarded
	if features != nil {
		t.Errorf("Expected no features after cancellation, got: %d", len(features))
	}
	// The engine is reusable after the cancelled run
	features, err = engine.Run(context.Background(), scans)
	if err != nil {
		t.Fatalf("Run after cancellation: %v", err)
	}
	if len(features) == 0 {
		t.Errorf("Expected features from the rerun")
	}
}

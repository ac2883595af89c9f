// Copyright 2024 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/524D/isofinder/internal/finder"
	"github.com/524D/isofinder/internal/mzml"
)

// Program name and version, reported in the output file
const progName = "isoFinder"

var progVersion = `Unknown`

// Format of output, if it ever changes we should still be able to parse
// output from old versions
const outputFormatVersion = "1.0"

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Command line parameters
type params struct {
	mzMLFilename   *string
	outFilename    *string  // Filename where JSON features will be written
	pmfFilename    string   // Filename for the peptide mass fingerprint export
	mzIDFilenames  *string  // Comma separated mzIdentML files for merge mode
	maxCharge      *int     // Highest charge hypothesis to consider
	threshold      *float64 // Intensity threshold factor, -1 disables
	votesCutoff    *int     // Minimum number of scans a pattern must cover
	interleave     *int     // Tolerated number of missed scans
	mode           *int     // Recording mode, +1 (positive) or -1 (negative ion)
	pmf            *bool    // Write peptide mass fingerprint export
	annotateOrigin *bool    // Annotate merged peptides with their file origin
	labeled        *bool    // Experiment is a labeled co-analysis (merge mode)
	specFilter     *string  // Range of spectra to process
	minSpecIdx     int      // Lowest spectrum index to process
	maxSpecIdx     int      // Highest spectrum index to process
	verbosity      int      // Verbosity of progress messages (infoDefault...)
	args           []string // Additional values passed on the command line
}

var ErrRangeSpec = errors.New("invalid range specified")

// Parse string like "-12:6" into 2 values, -12 and 6
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12:"), the default is assigned
func parseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 3 && m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// featureOutput is the JSON document written for a feature finding run
type featureOutput struct {
	FormatVersion string
	Software      string
	Parameters    outputParams
	Features      []finder.Feature
}

type outputParams struct {
	MaxCharge          int
	IntensityThreshold float64
	RTVotesCutoff      int
	RTInterleave       int
	RecordingMode      int
}

// loadScans collects the MS1 spectra of the mzML file in file order.
// The scan index of the resulting spectra numbers the MS1 scans that
// take part in the run. It also returns the largest m/z observed, which
// the engine needs for its precomputed tables.
func loadScans(mzML *mzml.MzML, par params) ([]finder.Spectrum, float64, error) {
	var scans []finder.Spectrum
	maxMz := float64(0)

	numSpecs := mzML.NumSpecs()
	for i := 0; i < numSpecs; i++ {
		msLevel, err := mzML.MSLevel(i)
		if err != nil {
			return nil, 0, err
		}
		if msLevel != 1 || i < par.minSpecIdx || i > par.maxSpecIdx {
			continue
		}
		peaks, err := mzML.ReadScan(i)
		if err != nil {
			return nil, 0, err
		}
		rt, err := mzML.RetentionTime(i)
		if err != nil {
			return nil, 0, err
		}
		// The transform requires peaks ordered by m/z
		if !sort.SliceIsSorted(peaks,
			func(i, j int) bool { return peaks[i].Mz < peaks[j].Mz }) {
			sort.Slice(peaks,
				func(i, j int) bool { return peaks[i].Mz < peaks[j].Mz })
		}
		for _, p := range peaks {
			if p.Mz > maxMz {
				maxMz = p.Mz
			}
		}
		scans = append(scans, finder.Spectrum{
			ScanIndex:     len(scans),
			RetentionTime: rt,
			Peaks:         peaks,
		})
	}
	return scans, maxMz, nil
}

func writeFeatures(features []finder.Feature, par params) error {
	f, err := os.Create(*par.outFilename)
	if err != nil {
		return err
	}
	defer f.Close()
	out := featureOutput{
		FormatVersion: outputFormatVersion,
		Software:      progName + " " + progVersion,
		Parameters: outputParams{
			MaxCharge:          *par.maxCharge,
			IntensityThreshold: *par.threshold,
			RTVotesCutoff:      *par.votesCutoff,
			RTInterleave:       *par.interleave,
			RecordingMode:      *par.mode,
		},
		Features: features,
	}
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(out)
}

// findFeatures glues together all the steps of a feature finding run:
// Read mzML file
// Detect isotope patterns in each MS1 scan and track them over time
// Write the consolidated features as JSON (and optionally as PMF text)
func findFeatures(par params) {
	t := time.Now()
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Reading MS data from %s: ", *par.mzMLFilename)
	}

	mzFile, err := os.Open(*par.mzMLFilename)
	if err != nil {
		log.Fatalf("Open %s: mzMLfile %v", *par.mzMLFilename, err)
	}
	defer mzFile.Close()
	mzML, err := mzml.Read(mzFile)
	if err != nil {
		log.Fatalf("mzml.Read: error return %v", err)
	}

	scans, maxMz, err := loadScans(&mzML, par)
	if err != nil {
		log.Fatalf("loadScans: error return %v", err)
	}

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		t = time.Now()
		fmt.Fprintf(os.Stderr, "Detecting features: ")
	}

	engine, err := finder.NewEngine(finder.Params{
		MaxCharge:          *par.maxCharge,
		IntensityThreshold: *par.threshold,
		RTVotesCutoff:      *par.votesCutoff,
		RTInterleave:       *par.interleave,
		Mode:               *par.mode,
	}, len(scans), maxMz)
	if err != nil {
		log.Fatalf("finder.NewEngine: %v", err)
	}

	// Allow the run to be interrupted; cancellation is checked at each
	// scan boundary and discards all partial results
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, spec := range scans {
		if ctx.Err() != nil {
			log.Fatalf("feature finding cancelled, no results written")
		}
		cands, err := engine.ProcessScan(spec)
		if err != nil {
			log.Fatalf("ProcessScan failed for scan %d: %v", spec.ScanIndex, err)
		}
		debugLogScan(spec, len(scans), cands)
	}
	engine.Flush()
	features := engine.Features()

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
	if par.verbosity != infoSilent {
		fmt.Fprintf(os.Stderr, "MS1 scans: %d Features: %d\n", len(scans), len(features))
	}

	err = writeFeatures(features, par)
	if err != nil {
		log.Fatalf("writeFeatures: error return %v", err)
	}
	if *par.pmf {
		err = writePMF(features, par.pmfFilename)
		if err != nil {
			log.Fatalf("writePMF: error return %v", err)
		}
	}
}

// sanatizeParams does some checks on parameters, and fills missing
// filenames if possible
func sanatizeParams(par *params) {
	exeName := filepath.Base(os.Args[0])

	// Merge mode takes its input from the -mergeids list instead of an
	// mzML file argument
	if *par.mzIDFilenames != `` {
		if *par.outFilename == `` {
			*par.outFilename = `merged-ids.json`
		}
		return
	}

	if len(par.args) != 1 {
		fmt.Fprintf(os.Stderr, `Last argument must be name of mzML file.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}

	mzml := par.args[0]
	par.mzMLFilename = &mzml
	var extension = filepath.Ext(mzml)
	var startName = mzml[0 : len(mzml)-len(extension)]

	if *par.outFilename == `` {
		*par.outFilename = startName + `-features.json`
	}
	par.pmfFilename = startName + `-pmf.txt`

	var err error
	par.minSpecIdx, par.maxSpecIdx, err = parseIntRange(*par.specFilter,
		0, math.MaxInt32)
	if err != nil {
		fmt.Fprintf(os.Stderr, `Invalid value for parameter 'specfilter'.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}
}

func usage() {
	exeName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr,
		`USAGE:
  %s [options] <mzMLfile>

  This program detects peptide features in raw (profile) MS1 data.
  Each scan is correlated against an isotope wavelet for every charge
  state up to -maxcharge, and patterns that persist over consecutive
  scans are reported as features in a JSON file.

  The final detection threshold t' is built upon the formula:
      t' = av + t*sd
  where t is the value of option -threshold, av the average of the
  wavelet transformed signal and sd its standard deviation. With
  -threshold=-1, t' is zero.

  With option -mergeids, the program instead merges several peptide
  identification runs (mzIdentML files) into one, after checking that
  their search settings are compatible.

OPTIONS:
`, exeName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr,
		`
USAGE EXAMPLES:
  %s yeast.mzML
    Detect features in yeast.mzML, write them to yeast-features.json.

  %s -maxcharge 4 -threshold 2 -votes 3 yeast.mzML
    Idem, considering charges 1 to 4, with a higher detection threshold
    and accepting patterns that cover only 3 scans.

  %s -mergeids run1.mzid,run2.mzid -o merged.json
    Merge two identification runs into merged.json.
`, exeName, exeName, exeName)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var par params

	par.outFilename = flag.String("o",
		"",
		"`filename` of output file")
	par.mzIDFilenames = flag.String("mergeids",
		"",
		"comma separated mzIdentML `filenames`"+`. When set, the program
merges the given identification runs instead of detecting features.`)
	par.maxCharge = flag.Int("maxcharge",
		3,
		`highest charge state to be considered`)
	par.threshold = flag.Float64("threshold",
		0.1,
		`intensity threshold factor t in t' = av + t*sd.
Set to -1 to accept any positive local maximum of the transform.
For single scan analysis (e.g. MALDI peptide fingerprints) you should
start with a threshold around 0..1 and increase it if necessary.`)
	par.votesCutoff = flag.Int("votes",
		5,
		`minimum number of scans an isotope pattern must cover
to be considered a feature. If larger than the number of scans in the
input, no pattern is rejected for covering too few scans.`)
	par.interleave = flag.Int("interleave",
		2,
		`maximum number of scans a pattern may be missing
before it is considered finished`)
	par.mode = flag.Int("mode",
		1,
		`recording mode: 1 for positive ion mode, -1 for negative ion mode`)
	par.pmf = flag.Bool("pmf", false,
		`write a peptide mass fingerprint file for a direct query of MASCOT.
When the data contains several spectra, a column with the elution time
is included.`)
	par.annotateOrigin = flag.Bool("annotate-origin", true,
		`annotate merged peptides with the index of the spectra file
they came from (merge mode only)`)
	par.labeled = flag.Bool("labeled", false,
		`the experiment is a labeled (e.g. SILAC) co-analysis; differing
modification sets between merged runs are then accepted (merge mode only)`)
	par.specFilter = flag.String("specfilter",
		"",
		"`range`"+` of spectrum indices to process (e.g. 1000:2000).
Default is all spectra`)
	version := flag.Bool("version", false,
		`Show software version`)
	verbose := flag.Bool("verbose", false,
		`Print more verbose progress information`)
	quiet := flag.Bool("quiet", false,
		`Don't print any output except for errors`)
	flag.Usage = usage
	flag.Parse()
	if *version {
		fmt.Fprintf(os.Stderr, "%s version %s\n", progName, progVersion)
		return
	}
	if *verbose {
		par.verbosity = infoVerbose
	}
	if *quiet {
		par.verbosity = infoSilent
	}
	par.args = flag.Args()

	sanatizeParams(&par)
	if *par.mzIDFilenames != `` {
		mergeRuns(par)
	} else {
		findFeatures(par)
	}
}

// Copyright 2024 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/524D/isofinder/internal/idmerge"
	"github.com/524D/isofinder/internal/mzidentml"
)

// mergedOutput is the JSON document written for a merge run
type mergedOutput struct {
	FormatVersion string
	Software      string
	Run           idmerge.MergedRun
	Peptides      []idmerge.Peptide
}

func toMergeSettings(s mzidentml.SearchSettings) idmerge.SearchSettings {
	return idmerge.SearchSettings{
		Engine:                s.Engine,
		EngineVersion:         s.EngineVersion,
		Database:              s.Database,
		DatabaseVersion:       s.DatabaseVersion,
		PrecursorTolerance:    s.PrecursorTolerance,
		PrecursorTolerancePPM: s.PrecursorTolerancePPM,
		FragmentTolerance:     s.FragmentTolerance,
		FragmentTolerancePPM:  s.FragmentTolerancePPM,
		Enzyme:                s.Enzyme,
		Taxonomy:              s.Taxonomy,
		Charges:               s.Charges,
		FixedMods:             s.FixedMods,
		VarMods:               s.VarMods,
	}
}

// loadRun reads one mzIdentML file and converts it into a run that the
// merger can work with. Peptides carry no per-file origin annotation of
// their own; for single-file runs the merger derives the origin from
// the run's spectra file list.
func loadRun(filename string) (idmerge.Run, error) {
	var run idmerge.Run

	f, err := os.Open(filename)
	if err != nil {
		return run, err
	}
	defer f.Close()
	mzIdentML, err := mzidentml.Read(f)
	if err != nil {
		return run, err
	}

	run.ID = filepath.Base(filename)
	run.Settings = toMergeSettings(mzIdentML.SearchSettings())
	run.SpectraFiles = mzIdentML.SpectraFiles()
	for _, acc := range mzIdentML.ProteinAccessions() {
		run.Proteins = append(run.Proteins, idmerge.ProteinHit{Accession: acc})
	}
	numIdents := mzIdentML.NumIdents()
	for i := 0; i < numIdents; i++ {
		ident, err := mzIdentML.Ident(i)
		if err != nil {
			return run, err
		}
		run.Peptides = append(run.Peptides, idmerge.Peptide{
			Sequence:    ident.PepSeq,
			Mz:          ident.Mz,
			RT:          ident.RetentionTime,
			Charge:      ident.Charge,
			RunID:       run.ID,
			OriginIndex: -1,
		})
	}
	return run, nil
}

// mergeRuns combines the identification runs given with -mergeids into
// a single run and writes the result as JSON
func mergeRuns(par params) {
	t := time.Now()
	files := strings.Split(*par.mzIDFilenames, ",")

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Merging %d identification runs: ", len(files))
	}

	experimentType := idmerge.ExperimentLabelFree
	if *par.labeled {
		experimentType = idmerge.ExperimentLabeled
	}
	merger := idmerge.NewMerger(progName+" ", *par.annotateOrigin, experimentType)
	for _, file := range files {
		run, err := loadRun(strings.TrimSpace(file))
		if err != nil {
			log.Fatalf("loadRun %s: %v", file, err)
		}
		merger.InsertRun(run)
	}
	merged, peptides, warnings, err := merger.Result()
	for _, w := range warnings {
		log.Printf("Warning: %s", w)
	}
	if err != nil {
		log.Fatalf("idmerge.Merge: %v", err)
	}

	f, err := os.Create(*par.outFilename)
	if err != nil {
		log.Fatalf("Create %s: %v", *par.outFilename, err)
	}
	defer f.Close()
	out := mergedOutput{
		FormatVersion: outputFormatVersion,
		Software:      progName + " " + progVersion,
		Run:           merged,
		Peptides:      peptides,
	}
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `)
	err = e.Encode(out)
	if err != nil {
		log.Fatalf("write %s: %v", *par.outFilename, err)
	}

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
	if par.verbosity != infoSilent {
		fmt.Fprintf(os.Stderr, "Runs: %d Peptides: %d Proteins: %d\n",
			len(files), len(peptides), len(merged.Proteins))
	}
}

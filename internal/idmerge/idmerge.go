// Package idmerge combines several peptide identification runs into one.
// The runs must stem from comparable searches: engine, tolerances,
// database, enzyme and taxonomy have to agree, and modification sets may
// only differ for labeled co-analysis experiments. Protein hits are
// deduplicated by accession and the peptides are re-indexed against the
// merged run.
package idmerge

import (
	"fmt"
	"strings"
	"time"
)

// Experiment types. Only a labeled co-analysis tolerates differing
// modification sets between the merged runs.
const (
	ExperimentLabelFree = "label-free"
	ExperimentLabeled   = "labeled"
)

// SearchSettings are the search parameters compared across runs
type SearchSettings struct {
	Engine                string
	EngineVersion         string
	Database              string
	DatabaseVersion       string
	PrecursorTolerance    float64
	PrecursorTolerancePPM bool
	FragmentTolerance     float64
	FragmentTolerancePPM  bool
	Enzyme                string
	Taxonomy              string
	Charges               string
	FixedMods             []string
	VarMods               []string
}

// ProteinHit is one identified protein of a run
type ProteinHit struct {
	Accession string
}

// Peptide is one peptide identification. OriginIndex points into the
// run's SpectraFiles list, or is -1 when the peptide carries no origin
// annotation. After merging it points into the merged origin list.
type Peptide struct {
	Sequence    string
	Mz          float64
	RT          float64
	Charge      int
	RunID       string
	OriginIndex int
}

// Run is one identification run offered for merging
type Run struct {
	ID           string
	Settings     SearchSettings
	SpectraFiles []string
	Proteins     []ProteinHit
	Peptides     []Peptide
}

// MergedRun is the consolidated result of a merge
type MergedRun struct {
	ID           string
	Settings     SearchSettings
	SpectraFiles []string
	Proteins     []ProteinHit
}

// Mismatch describes why one run failed the consistency check
type Mismatch struct {
	Run    string
	Reason string
}

// InconsistentRunsError reports every run whose search settings deviate
// from the first (reference) run. The merge is all-or-nothing: nothing
// is merged when this error is returned.
type InconsistentRunsError struct {
	Mismatches []Mismatch
}

func (e *InconsistentRunsError) Error() string {
	reasons := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		reasons = append(reasons, fmt.Sprintf("run %s: %s", m.Run, m.Reason))
	}
	return "idmerge: search settings do not match across identification runs: " +
		strings.Join(reasons, "; ")
}

// MissingInformationError reports a run that lacks data required for
// the requested merge
type MissingInformationError struct {
	Run  string
	What string
}

func (e *MissingInformationError) Error() string {
	return fmt.Sprintf("idmerge: missing %s in run %s", e.What, e.Run)
}

func modSet(mods []string) map[string]bool {
	s := make(map[string]bool, len(mods))
	for _, m := range mods {
		s[m] = true
	}
	return s
}

func sameModSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for m := range a {
		if !b[m] {
			return false
		}
	}
	return true
}

// checkConsistency compares the settings of one run against the
// reference. It returns the hard mismatch reasons and, for labeled
// experiments with deviating modifications, a warning instead.
func checkConsistency(ref, s SearchSettings, experimentType string) (reasons, warnings []string) {
	if s.Engine != ref.Engine || s.EngineVersion != ref.EngineVersion {
		reasons = append(reasons, "search engine or version differs")
	}
	if s.PrecursorTolerance != ref.PrecursorTolerance ||
		s.PrecursorTolerancePPM != ref.PrecursorTolerancePPM ||
		s.FragmentTolerance != ref.FragmentTolerance ||
		s.FragmentTolerancePPM != ref.FragmentTolerancePPM ||
		s.Database != ref.Database ||
		s.DatabaseVersion != ref.DatabaseVersion ||
		s.Charges != ref.Charges ||
		s.Enzyme != ref.Enzyme ||
		s.Taxonomy != ref.Taxonomy {
		reasons = append(reasons, "search settings differ")
	}
	if !sameModSet(modSet(s.FixedMods), modSet(ref.FixedMods)) ||
		!sameModSet(modSet(s.VarMods), modSet(ref.VarMods)) {
		if experimentType == ExperimentLabeled {
			warnings = append(warnings,
				"modification settings differ; accepted for labeled co-analysis, "+
					"check that only labelling mods differ")
		} else {
			reasons = append(reasons, "modification settings differ")
		}
	}
	return reasons, warnings
}

// newIdentifier builds the identifier of the merged run from the user
// supplied prefix and the current time
func newIdentifier(prefix string) string {
	return prefix + time.Now().Format("02-01-2006 15-04-05")
}

// Merger accumulates identification runs and merges them on Result
type Merger struct {
	idPrefix       string
	annotateOrigin bool
	experimentType string
	runs           []Run
}

func NewMerger(idPrefix string, annotateOrigin bool, experimentType string) *Merger {
	return &Merger{
		idPrefix:       idPrefix,
		annotateOrigin: annotateOrigin,
		experimentType: experimentType,
	}
}

// InsertRun adds one run to the merge set. Consistency is checked in
// Result, so that all mismatching runs can be reported together.
func (m *Merger) InsertRun(run Run) {
	m.runs = append(m.runs, run)
}

// Result merges the accumulated runs and resets the merger for reuse
func (m *Merger) Result() (MergedRun, []Peptide, []string, error) {
	merged, peptides, warnings, err := Merge(m.idPrefix, m.annotateOrigin,
		m.experimentType, m.runs)
	m.runs = nil
	return merged, peptides, warnings, err
}

// Merge consolidates the given runs into one. The first run's settings
// become the reference; every other run is checked against it and all
// mismatching runs are reported together in an InconsistentRunsError.
// With annotateOrigin, every peptide is re-tagged with an index into the
// merged spectra file list; runs without origin information then cause a
// MissingInformationError, as do peptides of multi-file runs that carry
// no per-file annotation of their own. Warnings (labeled co-analysis
// modification differences) are returned alongside the result.
func Merge(idPrefix string, annotateOrigin bool, experimentType string, runs []Run) (MergedRun, []Peptide, []string, error) {
	var merged MergedRun
	if len(runs) == 0 {
		return merged, nil, nil, &MissingInformationError{Run: "(none)", What: "identification runs"}
	}

	// Consistency first; this is all-or-nothing
	var allWarnings []string
	var mismatches []Mismatch
	ref := runs[0].Settings
	for _, run := range runs[1:] {
		reasons, warnings := checkConsistency(ref, run.Settings, experimentType)
		for _, r := range reasons {
			mismatches = append(mismatches, Mismatch{Run: run.ID, Reason: r})
		}
		allWarnings = append(allWarnings, warnings...)
	}
	if len(mismatches) > 0 {
		return merged, nil, nil, &InconsistentRunsError{Mismatches: mismatches}
	}

	// Validate origin annotation before touching any data
	if annotateOrigin {
		for _, run := range runs {
			if len(run.SpectraFiles) == 0 {
				return merged, nil, nil, &MissingInformationError{Run: run.ID, What: "spectra file origin"}
			}
			for _, pep := range run.Peptides {
				if pep.OriginIndex < 0 && len(run.SpectraFiles) > 1 {
					return merged, nil, nil, &MissingInformationError{
						Run: run.ID, What: "per-file origin annotation on peptides"}
				}
				if pep.OriginIndex >= len(run.SpectraFiles) {
					return merged, nil, nil, &MissingInformationError{
						Run: run.ID, What: "spectra file for annotated origin index"}
				}
			}
		}
	}

	merged.ID = newIdentifier(idPrefix)
	merged.Settings = ref

	// Global origin index, in run insertion order
	originIdx := make(map[string]int)
	for _, run := range runs {
		for _, f := range run.SpectraFiles {
			if _, ok := originIdx[f]; !ok {
				originIdx[f] = len(merged.SpectraFiles)
				merged.SpectraFiles = append(merged.SpectraFiles, f)
			}
		}
	}

	// Deduplicate protein hits by accession, first run wins
	seen := make(map[string]bool)
	var peptides []Peptide
	for _, run := range runs {
		for _, prot := range run.Proteins {
			if !seen[prot.Accession] {
				seen[prot.Accession] = true
				merged.Proteins = append(merged.Proteins, prot)
			}
		}
		for _, pep := range run.Peptides {
			if (annotateOrigin || pep.OriginIndex >= 0) &&
				pep.OriginIndex < len(run.SpectraFiles) && len(run.SpectraFiles) > 0 {
				i := pep.OriginIndex
				if i < 0 {
					i = 0 // single-file run, validated above
				}
				pep.OriginIndex = originIdx[run.SpectraFiles[i]]
			}
			pep.RunID = merged.ID
			peptides = append(peptides, pep)
		}
	}

	return merged, peptides, allWarnings, nil
}

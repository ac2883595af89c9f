package mzidentml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Read reads mzIdentML content from an io.Reader
func Read(reader io.Reader) (MzIdentML, error) {
	var mzIdentML MzIdentML
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	err := d.Decode(&mzIdentML.content)
	if err != nil {
		return mzIdentML, err
	}
	mzIdentML.buildPepID2Sequence()
	mzIdentML.buildIdentList()
	return mzIdentML, err
}

func (m *MzIdentML) buildPepID2Sequence() {
	m.seqID2PepIdx = make(map[string]int, len(m.content.Peptide))
	for i, p := range m.content.Peptide {
		m.seqID2PepIdx[p.ID] = i
	}
}

func (m *MzIdentML) buildIdentList() {
	for i := range m.content.SpectrumIdentificationResult {
		for j := range m.content.SpectrumIdentificationResult[i].SpectrumIdentificationItem {
			var iRef identRef
			iRef.specIDIdx = i
			iRef.specResultIdx = j
			m.identList = append(m.identList, iRef)
		}
	}
}

// NumIdents returns the total number of identifications in the mzIdentML file
// Note that for some spectra, multiple identifications may be present
// The identifications can be accessed using the Ident() method, which takes
// an index as argument. The index runs from 0 to NumIdents()-1
func (m *MzIdentML) NumIdents() int {
	return len(m.identList)
}

// Ident returns a spectrum identification from the mzIdentML file.
// Parameter i is the index of the identification to return. The index runs
// from 0 to NumIdents()-1
func (m *MzIdentML) Ident(i int) (Identification, error) {
	var ident Identification

	if i < 0 || i >= len(m.identList) {
		return ident, ErrInvalidIdentIndex
	}
	specIDIdx := m.identList[i].specIDIdx
	specResultIdx := m.identList[i].specResultIdx

	item := &m.content.SpectrumIdentificationResult[specIDIdx].SpectrumIdentificationItem[specResultIdx]
	pepIdx := m.seqID2PepIdx[item.PeptideRef]
	ident.PepSeq = m.content.Peptide[pepIdx].PeptideSequence
	ident.PepID = m.content.Peptide[pepIdx].ID
	ident.ModMass = float64(0)
	ident.Charge = item.ChargeState
	ident.Mz = item.ExpMz
	for _, mod := range m.content.Peptide[pepIdx].Modification {
		ident.ModMass += mod.MonoisotopicMassDelta
	}
	ident.SpecID = m.content.SpectrumIdentificationResult[specIDIdx].SpectrumID
	ident.RetentionTime = float64(-1)
	prio := math.MaxInt32
	for _, cv := range m.content.SpectrumIdentificationResult[specIDIdx].CvPar {
		// There are multiple CV terms that can be used to report the
		// retention time. In order of decreasing preference we use:
		// 1. MS:1000016 - scan start time
		// 2. MS:1000894 - retention time
		// 3. MS:1000826 - elution time
		// 4. MS:1001114 - retention time (deprecated)
		useTime := false
		switch cv.Accession {
		case "MS:1000016":
			if prio > 1 {
				prio = 1
				useTime = true
			}
		case "MS:1000894":
			if prio > 2 {
				prio = 2
				useTime = true
			}
		case "MS:1000826":
			if prio > 3 {
				prio = 3
				useTime = true
			}
		case "MS:1001114":
			if prio > 4 {
				prio = 4
				useTime = true
			}
		}
		// If a (higher priority) term was found, process/store the retention time
		if useTime {
			retentionTime, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return ident, err
			}
			// Check if the retention time is in minutes, otherwise assume it's seconds
			if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
				retentionTime *= 60
			}
			ident.RetentionTime = retentionTime
		}
	}
	// Collect CV terms/values for the identification, the scores are in there
	ident.Cv = append(ident.Cv, item.CvPar...)

	return ident, nil
}

// SpectraFiles returns the locations of the spectra files that the
// identifications originate from
func (m *MzIdentML) SpectraFiles() []string {
	var files []string
	for _, sd := range m.content.SpectraData {
		files = append(files, sd.Location)
	}
	return files
}

// ProteinAccessions returns the accessions of all proteins referenced by
// the identification run
func (m *MzIdentML) ProteinAccessions() []string {
	var accs []string
	for _, seq := range m.content.DBSequence {
		accs = append(accs, seq.Accession)
	}
	return accs
}

// parseTolerance extracts the tolerance value and its unit from the
// cvParam list of a ParentTolerance/FragmentTolerance tag.
// MS:1001412 is "search tolerance plus value"; the unit is either
// ppm (UO:0000169) or Dalton (UO:0000221)
func parseTolerance(cvs []cvParam) (float64, bool) {
	for _, cv := range cvs {
		if cv.Accession == "MS:1001412" {
			tol, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return 0, false
			}
			return tol, cv.UnitAccession == "UO:0000169"
		}
	}
	return 0, false
}

// SearchSettings collects the search parameters of the identification
// run. Missing parts are left at their zero value; the run merger
// compares whatever is present.
func (m *MzIdentML) SearchSettings() SearchSettings {
	var s SearchSettings

	if len(m.content.AnalysisSoftware) > 0 {
		s.Engine = m.content.AnalysisSoftware[0].Name
		s.EngineVersion = m.content.AnalysisSoftware[0].Version
	}
	if len(m.content.SearchDatabase) > 0 {
		s.Database = m.content.SearchDatabase[0].Location
		s.DatabaseVersion = m.content.SearchDatabase[0].Version
	}
	if len(m.content.Protocol) > 0 {
		p := &m.content.Protocol[0]
		s.PrecursorTolerance, s.PrecursorTolerancePPM = parseTolerance(p.ParentTol)
		s.FragmentTolerance, s.FragmentTolerancePPM = parseTolerance(p.FragmentTol)
		if len(p.Enzymes) > 0 && len(p.Enzymes[0].EnzymeName) > 0 {
			s.Enzyme = p.Enzymes[0].EnzymeName[0].Name
		}
		for _, up := range p.AdditionalParams {
			switch up.Name {
			case "taxonomy":
				s.Taxonomy = up.Value
			case "charges":
				s.Charges = up.Value
			}
		}
		for _, mod := range p.Modifications {
			name := fmt.Sprintf("%.4f@%s", mod.MassDelta, mod.Residues)
			if mod.FixedMod {
				s.FixedMods = append(s.FixedMods, name)
			} else {
				s.VarMods = append(s.VarMods, name)
			}
		}
	}
	return s
}

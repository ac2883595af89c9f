package mzidentml

import (
	"encoding/xml"
	"errors"
)

// Types for parsing mzIdentML

// MzIdentML holds only the part of mzIdentML files
// in which we are interested
type MzIdentML struct {
	seqID2PepIdx map[string]int
	identList    []identRef
	content      mzIdentMLContent
}

type identRef struct {
	specResultIdx int // Index into SpectrumIdentificationResult
	specIDIdx     int // Index into SpectrumIdentificationItem
}

// Identification is one peptide-spectrum match
type Identification struct {
	PepSeq        string
	PepID         string
	Charge        int
	Mz            float64
	ModMass       float64
	SpecID        string
	RetentionTime float64
	Cv            []cvParam
}

// SearchSettings holds the search parameters of an identification run,
// as far as the run merger needs them for its consistency check
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

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	AnalysisSoftware             []analysisSoftware             `xml:"AnalysisSoftwareList>AnalysisSoftware"`
	DBSequence                   []dbSequence                   `xml:"SequenceCollection>DBSequence"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	Protocol                     []identProtocol                `xml:"AnalysisProtocolCollection>SpectrumIdentificationProtocol"`
	SearchDatabase               []searchDatabase               `xml:"DataCollection>Inputs>SearchDatabase"`
	SpectraData                  []spectraData                  `xml:"DataCollection>Inputs>SpectraData"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type analysisSoftware struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr"`
}

type dbSequence struct {
	ID        string `xml:"id,attr"`
	Accession string `xml:"accession,attr"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// Note: monoisotopicMassDelta is optional according to the schema, but
	// appears to be no other way to determine mass shift, as other
	// corresponding cvParam's don't carry this info either
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type identProtocol struct {
	Modifications    []searchModification `xml:"ModificationParams>SearchModification"`
	Enzymes          []enzyme             `xml:"Enzymes>Enzyme"`
	ParentTol        []cvParam            `xml:"ParentTolerance>cvParam"`
	FragmentTol      []cvParam            `xml:"FragmentTolerance>cvParam"`
	AdditionalParams []userParam          `xml:"AdditionalSearchParams>userParam"`
}

type searchModification struct {
	FixedMod  bool    `xml:"fixedMod,attr"`
	MassDelta float64 `xml:"massDelta,attr"`
	Residues  string  `xml:"residues,attr"`
}

type enzyme struct {
	EnzymeName []cvParam `xml:"EnzymeName>cvParam"`
}

type searchDatabase struct {
	ID       string `xml:"id,attr"`
	Location string `xml:"location,attr"`
	Version  string `xml:"version,attr"`
}

type spectraData struct {
	ID       string `xml:"id,attr"`
	Location string `xml:"location,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []cvParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ChargeState int       `xml:"chargeState,attr"`
	ExpMz       float64   `xml:"experimentalMassToCharge,attr"`
	PeptideRef  string    `xml:"peptide_ref,attr"`
	CvPar       []cvParam `xml:"cvParam"`
}

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type userParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

var (
	ErrInvalidIdentIndex = errors.New("mzIdentML: invalid identification index")
)

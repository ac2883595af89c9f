package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// encodeBinary encodes a float array the way mzML stores it: little
// endian 32 or 64 bit floats, optionally zlib compressed, base64 encoded
func encodeBinary(vals []float64, bits64 bool, compress bool) string {
	var buf bytes.Buffer
	for _, v := range vals {
		if bits64 {
			binary.Write(&buf, binary.LittleEndian, v)
		} else {
			binary.Write(&buf, binary.LittleEndian, float32(v))
		}
	}
	data := buf.Bytes()
	if compress {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		data = z.Bytes()
	}
	return base64.StdEncoding.EncodeToString(data)
}

func binaryDataArrayXML(vals []float64, typeAccession string, bits64 bool, compress bool) string {
	b := encodeBinary(vals, bits64, compress)
	bitsAccession := `MS:1000521` // 32-bit float
	if bits64 {
		bitsAccession = `MS:1000523`
	}
	compression := `MS:1000576` // no compression
	if compress {
		compression = `MS:1000574`
	}
	return fmt.Sprintf(`<binaryDataArray encodedLength="%d">
<cvParam accession="%s" name="binary data type"/>
<cvParam accession="%s" name="compression"/>
<cvParam accession="%s" name="array type"/>
<binary>%s</binary>
</binaryDataArray>`, len(b), bitsAccession, compression, typeAccession, b)
}

// testMzML builds a 2 spectrum mzML document: an MS1 profile spectrum
// with 64-bit m/z and 32-bit intensities, and a centroided MS2 spectrum
// with zlib compressed data
func testMzML(mz1, intens1, mz2, intens2 []float64) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<indexedmzML>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="test_run">
<spectrumList count="2">
<spectrum index="0" id="scan=1" defaultArrayLength="%d">
<cvParam accession="MS:1000511" name="ms level" value="1"/>
<scanList count="1">
<scan>
<cvParam accession="MS:1000016" name="scan start time" value="1.5" unitAccession="UO:0000031"/>
</scan>
</scanList>
<binaryDataArrayList count="2">
%s
%s
</binaryDataArrayList>
</spectrum>
<spectrum index="1" id="scan=2" defaultArrayLength="%d">
<cvParam accession="MS:1000511" name="ms level" value="2"/>
<cvParam accession="MS:1000127" name="centroid spectrum"/>
<scanList count="1">
<scan>
<cvParam accession="MS:1000016" name="scan start time" value="95.0" unitAccession="UO:0000010"/>
</scan>
</scanList>
<binaryDataArrayList count="2">
%s
%s
</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>
</indexedmzML>`,
		len(mz1),
		binaryDataArrayXML(mz1, `MS:1000514`, true, false),
		binaryDataArrayXML(intens1, `MS:1000515`, false, false),
		len(mz2),
		binaryDataArrayXML(mz2, `MS:1000514`, true, true),
		binaryDataArrayXML(intens2, `MS:1000515`, true, true))
}

func TestReadMzML(t *testing.T) {
	mz1 := []float64{400.25, 401.5, 402.75}
	intens1 := []float64{100.0, 250.5, 75.25}
	mz2 := []float64{150.125, 300.5}
	intens2 := []float64{10.0, 20.0}
	doc := testMzML(mz1, intens1, mz2, intens2)

	mzML, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if mzML.NumSpecs() != 2 {
		t.Fatalf("Expected 2 spectra, got: %d", mzML.NumSpecs())
	}

	// Retention time in minutes is converted to seconds
	rt, err := mzML.RetentionTime(0)
	if err != nil {
		t.Errorf("RetentionTime: %v", err)
	}
	if rt != 90.0 {
		t.Errorf("Expected retention time 90s, got: %f", rt)
	}
	// Already in seconds, no conversion
	rt, err = mzML.RetentionTime(1)
	if err != nil {
		t.Errorf("RetentionTime: %v", err)
	}
	if rt != 95.0 {
		t.Errorf("Expected retention time 95s, got: %f", rt)
	}

	msLevel, err := mzML.MSLevel(0)
	if err != nil || msLevel != 1 {
		t.Errorf("Expected MS level 1, got: %d (%v)", msLevel, err)
	}
	msLevel, err = mzML.MSLevel(1)
	if err != nil || msLevel != 2 {
		t.Errorf("Expected MS level 2, got: %d (%v)", msLevel, err)
	}

	centroid, err := mzML.Centroid(0)
	if err != nil || centroid {
		t.Errorf("Expected profile spectrum, got centroid: %v (%v)", centroid, err)
	}
	centroid, err = mzML.Centroid(1)
	if err != nil || !centroid {
		t.Errorf("Expected centroid spectrum, got: %v (%v)", centroid, err)
	}

	peaks, err := mzML.ReadScan(0)
	if err != nil {
		t.Fatalf("ReadScan: %v", err)
	}
	want := []Peak{
		{Mz: 400.25, Intens: 100.0},
		{Mz: 401.5, Intens: 250.5},
		{Mz: 402.75, Intens: 75.25},
	}
	if diff := cmp.Diff(want, peaks); diff != "" {
		t.Errorf("Scan 0 peaks differ (-want +got):\n%s", diff)
	}

	// zlib compressed 64-bit arrays
	peaks, err = mzML.ReadScan(1)
	if err != nil {
		t.Fatalf("ReadScan: %v", err)
	}
	want = []Peak{
		{Mz: 150.125, Intens: 10.0},
		{Mz: 300.5, Intens: 20.0},
	}
	if diff := cmp.Diff(want, peaks); diff != "" {
		t.Errorf("Scan 1 peaks differ (-want +got):\n%s", diff)
	}
}

func TestScanIndexScanID(t *testing.T) {
	doc := testMzML([]float64{400.0}, []float64{1.0}, []float64{500.0}, []float64{2.0})
	mzML, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	index, err := mzML.ScanIndex("scan=2")
	if err != nil {
		t.Errorf("ScanIndex: %v", err)
	}
	if index != 1 {
		t.Errorf("Expected index 1, got: %d", index)
	}
	id, err := mzML.ScanID(0)
	if err != nil {
		t.Errorf("ScanID: %v", err)
	}
	if id != "scan=1" {
		t.Errorf("Expected id scan=1, got: %s", id)
	}

	_, err = mzML.ScanIndex("scan=999")
	if !errors.Is(err, ErrInvalidScanID) {
		t.Errorf("Expected ErrInvalidScanID, got: %v", err)
	}
	_, err = mzML.ScanID(2)
	if !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got: %v", err)
	}
	_, err = mzML.ReadScan(-1)
	if !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got: %v", err)
	}
	_, err = mzML.RetentionTime(2)
	if !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got: %v", err)
	}
}

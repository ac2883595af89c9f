// Copyright 2024 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/524D/isofinder/internal/finder"
)

// writePMF writes the detected features as a peptide mass fingerprint
// file, suitable for a direct query of MASCOT. Each line contains the
// monoisotopic m/z and the summed intensity of one feature, plus the
// elution time (midpoint of the feature's retention time range) when
// the data covers more than a single scan.
func writePMF(features []finder.Feature, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	singleScan := true
	for _, feat := range features {
		if feat.ScanLast != feat.ScanFirst {
			singleScan = false
			break
		}
	}
	for _, feat := range features {
		if singleScan {
			_, err = fmt.Fprintf(w, "%f %f\n", feat.Mz, feat.Intens)
		} else {
			rtMid := (feat.RTMin + feat.RTMax) / 2
			_, err = fmt.Fprintf(w, "%f %f %f\n", feat.Mz, feat.Intens, rtMid)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

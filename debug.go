// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"flag"
	"fmt"

	"github.com/524D/isofinder/internal/finder"
)

var debugSpecs *string // Print debug output for given spectrum range

func init() {
	debugSpecs = flag.String("debug", "",
		"Print debug output for given spectrum `range` e.g. 3:6")
}

func debugLogScan(spec finder.Spectrum, numScans int, cands []finder.Candidate) {
	if *debugSpecs != `` {
		debugMin, debugMax, _ := parseIntRange(*debugSpecs, 0, numScans)
		if spec.ScanIndex >= debugMin && spec.ScanIndex <= debugMax {
			fmt.Printf("Scan:%d rt:%f peaks:%d candidates:%d\n",
				spec.ScanIndex, spec.RetentionTime, len(spec.Peaks), len(cands))
			for j, c := range cands {
				fmt.Printf("%d mz:%f charge:%d score:%f intens:%f\n",
					j, c.Mz, c.Charge, c.Score, c.Intens)
			}
		}
	}
}

// Command pncalc runs the parenteral nutrition calculations from a shell:
// prescriptions and patient files in, formatted figures or sheets out.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: Apache-2.0

// Command toe-assessor reviews audit-control evidence with a language model
// and writes a Test of Effectiveness report.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

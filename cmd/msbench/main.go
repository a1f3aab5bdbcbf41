// msbench - Multi-species peptide benchmark builder
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/msbench/cmd/msbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command glutton runs the contig/gene-family alignment pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/jra3/glutton/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

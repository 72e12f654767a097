// Command lineage is the operator CLI for the versioning store: schema
// management, demo data and read-only inspection of families and lineage.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

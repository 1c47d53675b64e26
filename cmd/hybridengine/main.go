// Command hybridengine builds, warms up, and queries a hybrid BM25/SPLADE
// retrieval index.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

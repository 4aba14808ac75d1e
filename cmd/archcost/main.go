package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[archcost] Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"PriceOptimizer/cmd/optimizer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

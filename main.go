package main

import (
	"os"

	"github.com/ogatech4real/smart-energy-optimiser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

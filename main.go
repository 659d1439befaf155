package main

import (
	"os"

	"github.com/pokered-rl/trainctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

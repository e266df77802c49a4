package main

import (
	"os"

	"github.com/solatis/cepgate/cmd/cepgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

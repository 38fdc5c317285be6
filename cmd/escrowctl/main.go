package main

import (
	"os"

	"github.com/openclaw-gurusharan/ondc-seller/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

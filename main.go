package main

import (
	"os"

	"github.com/monetadev/moneta/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/yakoovad/finflow/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/modkit-go/modkit/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

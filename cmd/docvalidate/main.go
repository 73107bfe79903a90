package main

import (
	"os"

	"github.com/manikumarthati/extractionWithValidation/cmd/docvalidate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"mutse/cmd/mutse/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/komomoko/komochat/cmd/komochat/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

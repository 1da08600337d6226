package main

import (
	"os"

	"github.com/nbermudezs/otfcs/cmd/otfcs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

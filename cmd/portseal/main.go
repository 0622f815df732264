package main

import (
	"os"

	"portseal/cmd/portseal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"gadgetwars.ai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/tracewire/bt2-go/cmd/bt2-go/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/go-go-golems/topicsync/cmd/topicsync/cmds"
)

func main() {
	if err := cmds.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/aezell/visualgit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

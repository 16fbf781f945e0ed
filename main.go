package main

import (
	"os"

	"github.com/ovoronin/resume-ranker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

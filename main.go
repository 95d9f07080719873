package main

import (
	"os"

	"github.com/openclerk/gridaudit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

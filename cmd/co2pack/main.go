package main

import (
	"errors"
	"os"

	"github.com/tormodhaugland/co2pack/cmd/co2pack/cmd"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	if errors.Is(err, cmd.ErrInvalidArgs) {
		os.Exit(2)
	}
	os.Exit(1)
}

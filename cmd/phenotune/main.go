package main

import (
	"os"

	"phenotune/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("Command failed", "error", err.Error())
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/billbatista/obra-balance/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		printErrorAndExit("command failed", err)
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}

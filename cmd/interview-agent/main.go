package main

import (
	"context"
	"fmt"
	"os"

	"ai-interview-capture-service/internal/cli"
	"ai-interview-capture-service/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	return cli.NewRootCmd(&cli.Dependencies{Config: cfg}).ExecuteContext(context.Background())
}

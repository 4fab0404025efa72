package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"aircheck/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "aircheck: %s\n", services.UserMessage(err))
		}
		os.Exit(1)
	}
}

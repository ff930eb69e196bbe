// SPDX-License-Identifier: Apache-2.0

// Command schemactl validates financial extracts against schema contracts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gvern/soxauto/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// Command wrd-server is the entrypoint process: it owns the capability
// probe, credential store, and session lifecycle wiring described in
// SPEC_FULL.md, leaving RDP protocol handling to the embedding library
// per spec.md §6. Grounded on api/cmd/desktop-bridge/main.go's
// signal.NotifyContext + slog setup, with cobra providing the flag
// surface the way api/cmd/helix/root.go does for the larger monorepo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var exitCode int
	cmd := newRootCmd(&exitCode)
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
	os.Exit(exitCode)
}

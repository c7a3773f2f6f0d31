package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/config"
	"github.com/wrd-project/wrd-server/internal/credential"
)

// runServe is the default action: probe capabilities, open the
// credential store, reserve the listening port the embedding RDP
// library will eventually accept connections on, and block until a
// shutdown signal arrives. Per spec.md §1's non-goals this process
// does not itself speak the RDP protocol, and no RDP engine is linked
// here: acceptLoop logs each accepted connection and closes it, and no
// internal/session.Controller is created. Grounded on the teacher's
// Server.Run: ordered setup, a WaitGroup for background goroutines, LIFO
// teardown via defer.
func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	registry := capability.New(logger)
	if err := registry.Probe(ctx); err != nil {
		logger.Error("capability probe failed", "error", err)
		return exitCapabilityMissing
	}
	logger.Info("capabilities probed", "compositor", registry.DeploymentContext().Compositor.String())

	tokenDir := cfg.Credential.ResolvedTokenDir()
	credStore, err := credential.Open(registry.DeploymentContext(), tokenDir, logger)
	if err != nil {
		logger.Error("credential store open failed", "error", err)
		return exitConfigError
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		logger.Error("failed to bind listening port", "port", cfg.Server.Port, "error", err)
		return exitPortBindError
	}
	logger.Info("listening", "addr", listener.Addr())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := credStore.Watch(ctx, func(sessionID string) {
			logger.Info("restore token changed externally", "session_id", sessionID)
		}); err != nil {
			logger.Warn("token directory watch stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		acceptLoop(ctx, listener, logger)
	}()

	// Accept unblocks only once the listener is closed, so closing it
	// on cancellation (rather than deferring) is what lets acceptLoop's
	// goroutine return before wg.Wait() below.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return exitOK
}

// acceptLoop hands each accepted connection off to the embedding RDP
// engine in a full deployment; here, with no such engine linked, it
// logs the connection and closes it, which is the honest behavior for
// a repo whose non-goals explicitly exclude an RDP protocol
// implementation (spec.md §1, §6).
func acceptLoop(ctx context.Context, listener net.Listener, logger *slog.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("accept failed", "error", err)
				return
			}
		}
		logger.Info("connection accepted, awaiting RDP engine integration", "remote", conn.RemoteAddr())
		_ = conn.Close()
	}
}

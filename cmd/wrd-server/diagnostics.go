package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/credential"
	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/strategy"
)

// runShowCapabilities probes the host once and prints every tag's
// level, consuming Registry.Snapshot the way spec.md §6 describes this
// flag: a one-shot diagnostic dump, not a running service.
func runShowCapabilities(ctx context.Context, logger *slog.Logger) int {
	registry := capability.New(logger)
	if err := registry.Probe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "capability probe failed: %v\n", err)
		return exitCapabilityMissing
	}
	printCapabilities(registry)
	return exitOK
}

// printCapabilities renders an already-probed registry's snapshot.
func printCapabilities(registry *capability.Registry) {
	deploy := registry.DeploymentContext()
	fmt.Printf("compositor=%s session_type=%v sandbox=%s\n", deploy.Compositor, deploy.SessionType, deploy.Sandbox)

	snapshot := registry.Snapshot()
	tags := make([]capability.Tag, 0, len(snapshot))
	for tag := range snapshot {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	for _, tag := range tags {
		entry := snapshot[tag]
		fmt.Printf("%-40s %-12s %s\n", tag, entry.Level, entry.Diagnostic)
	}
}

// runPersistenceStatus lists the restore-token files on disk without
// decrypting them (decryption needs the requesting session's ID as
// HKDF info, which this diagnostic doesn't have).
func runPersistenceStatus(tokenDir string) int {
	entries, err := os.ReadDir(tokenDir)
	if os.IsNotExist(err) {
		fmt.Printf("no tokens persisted (directory does not exist: %s)\n", tokenDir)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read token directory: %v\n", err)
		return exitConfigError
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bin" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		fmt.Printf("%-40s %10d bytes  modified %s\n", e.Name(), info.Size(), info.ModTime().Format(time.RFC3339))
	}
	fmt.Printf("%d token(s) in %s\n", count, tokenDir)
	return exitOK
}

// runClearTokens deletes every persisted restore token, per spec.md
// §6's --clear-tokens flag, forcing the next connection of every
// session back through the consent dialog.
func runClearTokens(tokenDir string) int {
	entries, err := os.ReadDir(tokenDir)
	if os.IsNotExist(err) {
		fmt.Println("no tokens to clear")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read token directory: %v\n", err)
		return exitConfigError
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bin" {
			continue
		}
		if err := os.Remove(filepath.Join(tokenDir, e.Name())); err != nil {
			fmt.Fprintf(os.Stderr, "remove %s: %v\n", e.Name(), err)
			continue
		}
		removed++
	}
	fmt.Printf("cleared %d token(s)\n", removed)
	return exitOK
}

// runGrantPermission forces the portal consent dialog once, outside of
// any RDP connection, so an operator can pre-authorize a session
// before a client ever connects (useful for unattended kiosk setups
// that still require the one-time portal grant).
func runGrantPermission(ctx context.Context, logger *slog.Logger) int {
	portal := strategy.NewPortalToken(logger, input.MonitorLayout{})
	handle, err := portal.Create(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "permission grant failed: %v\n", err)
		return exitPermissionDenied
	}
	defer handle.Close()
	fmt.Println("permission granted")
	return exitOK
}

// runDiagnose combines the capability and persistence reports with a
// dry-run of strategy selection, giving a single command an operator
// can paste into a bug report.
func runDiagnose(ctx context.Context, logger *slog.Logger, cfg diagnoseConfig) int {
	registry := capability.New(logger)
	if err := registry.Probe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "capability probe failed: %v\n", err)
		return exitCapabilityMissing
	}
	printCapabilities(registry)
	fmt.Println("---")
	_ = runPersistenceStatus(cfg.tokenDir)
	fmt.Println("---")

	if _, err := credential.Open(registry.DeploymentContext(), cfg.tokenDir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "credential store open failed: %v\n", err)
		return exitConfigError
	}
	fmt.Println("credential store: ok")

	arbiter := strategy.NewArbiter(registry, logger, cfg.layout, cfg.screenWidth, cfg.screenHeight, cfg.mutterMonitor)
	handle, attempts, err := arbiter.Select(ctx, nil)
	for _, a := range attempts {
		fmt.Printf("strategy attempt: %s -> %v\n", a.Kind, a.Error)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "no viable strategy: %v\n", err)
		return exitCapabilityMissing
	}
	defer handle.Close()
	fmt.Println("strategy selection: ok")

	return exitOK
}

type diagnoseConfig struct {
	tokenDir      string
	layout        input.MonitorLayout
	screenWidth   int
	screenHeight  int
	mutterMonitor string
}

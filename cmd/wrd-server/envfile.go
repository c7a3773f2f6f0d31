package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// loadEnvFile applies KEY=VALUE lines from path to the process
// environment before config.Load runs, so --config <path> can seed the
// same WRD_* variables envconfig reads. Blank lines and lines starting
// with # are ignored. Existing environment variables are not
// overridden, matching envconfig's own precedence (explicit env wins
// over any default).
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s from config file: %w", key, err)
		}
	}
	return scanner.Err()
}

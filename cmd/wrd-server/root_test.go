package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrd-project/wrd-server/internal/config"
)

func TestNewRootCmdParsesFlags(t *testing.T) {
	var exitCode int
	cmd := newRootCmd(&exitCode)

	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "4000",
		"-vv",
		"--log-file", "/tmp/wrd.log",
		"--show-capabilities",
	}))

	port, err := cmd.Flags().GetInt("port")
	require.NoError(t, err)
	require.Equal(t, 4000, port)

	verbosity, err := cmd.Flags().GetCount("verbose")
	require.NoError(t, err)
	require.Equal(t, 2, verbosity)

	show, err := cmd.Flags().GetBool("show-capabilities")
	require.NoError(t, err)
	require.True(t, show)
}

func TestBuildLoggerWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := dir + "/wrd.log"

	logger, closeLog, err := buildLogger(config.Config{}, flags{logFile: logPath})
	require.NoError(t, err)
	defer closeLog()
	require.NotNil(t, logger)

	logger.Info("hello")
}

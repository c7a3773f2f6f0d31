package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnvFileSetsUnsetVariables(t *testing.T) {
	os.Unsetenv("WRD_TEST_ENVFILE_A")
	os.Unsetenv("WRD_TEST_ENVFILE_B")
	defer os.Unsetenv("WRD_TEST_ENVFILE_A")
	defer os.Unsetenv("WRD_TEST_ENVFILE_B")

	path := filepath.Join(t.TempDir(), "wrd.env")
	content := "# a comment\nWRD_TEST_ENVFILE_A=hello\nWRD_TEST_ENVFILE_B=\"quoted value\"\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "hello", os.Getenv("WRD_TEST_ENVFILE_A"))
	require.Equal(t, "quoted value", os.Getenv("WRD_TEST_ENVFILE_B"))
}

func TestLoadEnvFileDoesNotOverrideExistingEnv(t *testing.T) {
	t.Setenv("WRD_TEST_ENVFILE_C", "preset")

	path := filepath.Join(t.TempDir(), "wrd.env")
	require.NoError(t, os.WriteFile(path, []byte("WRD_TEST_ENVFILE_C=fromfile\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "preset", os.Getenv("WRD_TEST_ENVFILE_C"))
}

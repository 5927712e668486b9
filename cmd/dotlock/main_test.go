package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the absolute path to the project root.
func getProjectRoot(t *testing.T) string {
	dir, err := os.Getwd()
	require.NoError(t, err)
	// Walk up to find go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	t.Fatal("go.mod not found")
	return ""
}

// buildBinary compiles the dotlock command into a temp dir.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	binPath := filepath.Join(t.TempDir(), "dotlock")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	buildCmd.Dir = filepath.Join(getProjectRoot(t), "cmd", "dotlock")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))
	return binPath
}

// isolatedConfig points the binary at a config file that does not exist.
func isolatedConfig(t *testing.T) []string {
	return append(os.Environ(), "DOTLOCK_CONFIG="+filepath.Join(t.TempDir(), "none.yaml"))
}

// TestMainEntryPoints tests that the main function is properly defined.
func TestMainEntryPoints(t *testing.T) {
	_ = main
}

func TestMainHelpFlag(t *testing.T) {
	bin := buildBinary(t)
	out, err := exec.Command(bin, "--help").CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), "dot-lock")
}

func TestMainUnknownCommand(t *testing.T) {
	bin := buildBinary(t)
	out, err := exec.Command(bin, "unknown-command-xyz").CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(string(out)), "unknown")
}

// TestBinaryRunExitStatus checks that the wrapped command's status is the
// binary's status.
func TestBinaryRunExitStatus(t *testing.T) {
	bin := buildBinary(t)
	path := filepath.Join(t.TempDir(), "data")

	cmd := exec.Command(bin, "run", path, "--", "sh", "-c", "exit 7")
	cmd.Env = isolatedConfig(t)
	err := cmd.Run()
	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 7, ee.ExitCode())

	_, statErr := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(statErr))
}

// TestBinaryRunSerializes runs two commands on one lock and checks that the
// second waited for the first.
func TestBinaryRunSerializes(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("lock:\n  poll_interval: 20ms\n"), 0644))

	first := exec.Command(bin, "--config", cfg, "run", path, "--",
		"sh", "-c", "echo start-a >> "+path+"; sleep 0.3; echo end-a >> "+path)
	require.NoError(t, first.Start())

	// Wait until the first command holds the lock.
	for i := 0; i < 100; i++ {
		if _, err := os.Stat(path); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	second := exec.Command(bin, "--config", cfg, "run", path, "--", "sh", "-c", "echo b >> "+path)
	out, err := second.CombinedOutput()
	require.NoError(t, err, string(out))
	require.NoError(t, first.Wait())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "start-a\nend-a\nb\n", string(data))
}

func TestBinaryStatusJSON(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "--json", "status", filepath.Join(t.TempDir(), "data"))
	cmd.Env = isolatedConfig(t)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"state": "free"`)
}

// TestBinaryStress forks real worker processes through the hidden
// stress-worker command.
func TestBinaryStress(t *testing.T) {
	bin := buildBinary(t)
	counter := filepath.Join(t.TempDir(), "counter")
	cmd := exec.Command(bin, "--json", "stress", counter,
		"--procs", "3",
		"--duration", "1s",
		"--hold", "5ms",
		"--max-pause", "20ms",
		"--hang-rate", "0",
		"--valid-lock-age", "2s",
		"--poll-interval", "10ms",
		"--hijack-delay", "100ms")
	cmd.Env = isolatedConfig(t)
	out, err := cmd.Output()
	require.NoError(t, err, string(out))

	var report struct {
		Procs  int `json:"procs"`
		Lines  int `json:"lines"`
		Totals struct {
			Written int `json:"written"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, 3, report.Procs)
	assert.Positive(t, report.Lines)
	assert.Equal(t, report.Totals.Written, report.Lines)
}

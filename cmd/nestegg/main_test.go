package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testConfig  = "../../internal/config/testdata/household.yaml"
	testHistory = "../../internal/config/testdata/balances.csv"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "nestegg", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"forecast", "simulate", "validate", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nestegg dev")
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantOut string
		wantErr string
	}{
		{
			name:    "config only",
			args:    []string{"validate", testConfig},
			wantOut: "configuration is valid (5 buckets)",
		},
		{
			name:    "with history",
			args:    []string{"validate", "--history", testHistory, testConfig},
			wantOut: "configuration is valid",
		},
		{
			name:    "missing file",
			args:    []string{"validate", "nope.yaml"},
			wantErr: "failed to read file",
		},
		{
			name:    "no args",
			args:    []string{"validate"},
			wantErr: "accepts 1 arg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestForecastCommand_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "forecast", "--history", testHistory, "--seed", "7", "--out-dir", dir, "--prefix", "run_", testConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "FORECAST (seed 7)")
	assert.Contains(t, out, "2035-12")
	for _, name := range []string{"run_balances.csv", "run_taxes.csv", "run_flows.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestForecastCommand_DebugLogCarriesSeed(t *testing.T) {
	_, stderr, err := execute(t, "forecast", "--log-level", "debug", "--quiet", "--history", testHistory, "--seed", "11", testConfig)
	require.NoError(t, err)
	assert.Contains(t, stderr, "trial 11 finished")
	assert.Contains(t, stderr, "seed=11")
}

func TestForecastCommand_RequiresHistory(t *testing.T) {
	t.Setenv("NESTEGG_HISTORY", "")
	_, _, err := execute(t, "forecast", testConfig)
	assert.ErrorIs(t, err, errNoHistory)
}

func TestForecastCommand_HistoryFromEnv(t *testing.T) {
	t.Setenv("NESTEGG_HISTORY", testHistory)
	out, _, err := execute(t, "forecast", testConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "FORECAST (seed 1)")
}

func TestForecastCommand_BadLogLevel(t *testing.T) {
	_, _, err := execute(t, "forecast", "--log-level", "loud", "--history", testHistory, testConfig)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestSimulateCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results", "trials.db")
	out, _, err := execute(t, "simulate", "--history", testHistory, "--trials", "4", "--workers", "2", "--db", db, testConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "MONTE CARLO SUMMARY (4 trials, 0 failed)")
	assert.Contains(t, out, "2035")
	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestSimulateCommand_TrialsFromEnv(t *testing.T) {
	t.Setenv("NESTEGG_TRIALS", "3")
	out, _, err := execute(t, "simulate", "--history", testHistory, testConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "(3 trials, 0 failed)")
}

func TestSimulateCommand_ZeroTrials(t *testing.T) {
	_, _, err := execute(t, "simulate", "--history", testHistory, "--trials", "0", testConfig)
	assert.ErrorContains(t, err, "trials must be positive")
}

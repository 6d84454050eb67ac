package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gpr-cli/internal/config"
)

// panelCSV renders 24 months for three countries with distinct risk levels.
func panelCSV() string {
	var b strings.Builder
	b.WriteString("month,GPRC_DEU,GPRHC_DEU,GPRC_FRA,GPRHC_FRA,GPRC_USA,GPRHC_USA\n")
	for i := range 24 {
		fmt.Fprintf(&b, "%d-%02d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f\n",
			2022+i/12, i%12+1,
			0.5+0.01*float64(i), 0.45+0.01*float64(i),
			1.0+0.02*float64(i%3), 0.9,
			3.0+0.05*float64(i), 2.8+0.05*float64(i),
		)
	}
	return b.String()
}

func writePanel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpr.csv")
	require.NoError(t, os.WriteFile(path, []byte(panelCSV()), 0o600))
	return path
}

// useConfig installs a default configuration for the duration of the test.
func useConfig(t *testing.T) *config.Config {
	t.Helper()
	orig := cfg
	cfg = &config.Config{
		Score: config.DefaultScoreConfig(),
		Fetch: config.FetchConfig{UserAgent: "gpr-cli-test", TimeoutSecs: 5, MaxRetries: 1},
		Log:   config.LogConfig{Level: "info", Format: "json"},
	}
	t.Cleanup(func() { cfg = orig })
	return cfg
}

// execute runs a fresh command built by setup with args, returning stdout and stderr.
func execute(t *testing.T, run func(*cobra.Command, []string) error, setup func(*cobra.Command), args ...string) (string, string, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: run}
	setup(cmd)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func scoreFlags(cmd *cobra.Command) {
	addInputFlags(cmd)
	addScoreFlags(cmd)
}

func biasFlags(cmd *cobra.Command) {
	addInputFlags(cmd)
	addBiasFlags(cmd)
}

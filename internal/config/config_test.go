package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

const experimentYAML = `
log_level: debug
seed: 7
server:
  addr: ":9000"
experiment:
  model: gaussian_process
  curiosity: 0.5
  features: [water, cement]
  targets:
    - name: strength
      weight: 2
      threshold: 50
      direction: max
    - name: co2
      direction: Min
  apriori:
    - name: price
      threshold: 100
      direction: min
output:
  excel: out.xlsx
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slamd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, int64(DefaultMaxUploadMB), cfg.Server.MaxUploadMB)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, DefaultTop, cfg.Output.Top)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, experimentYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "out.xlsx", cfg.Output.Excel)

	exp := cfg.Experiment
	assert.Equal(t, "gaussian_process", exp.Model)
	assert.Equal(t, []string{"water", "cement"}, exp.Features)
	require.Len(t, exp.Targets, 2)
	require.NotNil(t, exp.Targets[0].Threshold)
	assert.Equal(t, 50.0, *exp.Targets[0].Threshold)
	assert.Nil(t, exp.Targets[1].Weight)
	assert.Nil(t, exp.Targets[1].Threshold)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, experimentYAML)
	t.Setenv("SLAMD_LOG_LEVEL", "warn")
	t.Setenv("SLAMD_SERVER__ADDR", ":7000")
	t.Setenv("SLAMD_EXPERIMENT__CURIOSITY", "1.5")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.Float64("curiosity", 0, "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":6000"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	// flag > env > file
	assert.Equal(t, ":6000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 1.5, cfg.Experiment.Curiosity)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"bad upload size", "server:\n  max_upload_mb: 0\n"},
		{"negative jobs", "n_jobs: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestExperimentConfig_ToExperiment(t *testing.T) {
	cfg, err := Load(writeConfig(t, experimentYAML), nil)
	require.NoError(t, err)

	tbl := dataset.MustTable([]string{"water", "cement", "price", "strength", "co2"}, [][]dataset.Cell{
		{dataset.Number(1), dataset.String("a"), dataset.Number(1), dataset.Number(1), dataset.Number(1)},
	})
	e, err := cfg.Experiment.ToExperiment(tbl)
	require.NoError(t, err)

	assert.Equal(t, experiment.GaussianProcess, e.Model)
	assert.Equal(t, 0.5, e.Curiosity)
	assert.Equal(t, []string{"strength", "co2"}, e.TargetNames)
	assert.Equal(t, []float64{2, 1}, e.TargetWeights)
	assert.Equal(t, []experiment.Direction{experiment.Max, experiment.Min}, e.TargetDirections)
	assert.Equal(t, 50.0, *e.TargetThresholds[0])
	assert.Nil(t, e.TargetThresholds[1])
	assert.Equal(t, []string{"price"}, e.AprioriNames)
	assert.Equal(t, 100.0, *e.AprioriThresholds[0])
}

func TestExperimentConfig_ToExperimentErrors(t *testing.T) {
	_, err := ExperimentConfig{}.ToExperiment(nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	tbl := dataset.MustTable([]string{"x"}, [][]dataset.Cell{{dataset.Number(1)}})
	_, err = ExperimentConfig{Model: "quantum_regressor"}.ToExperiment(tbl)
	assert.True(t, errors.Is(err, errors.ErrValueNotSupported))
	assert.Contains(t, err.Error(), "quantum_regressor")

	e, err := ExperimentConfig{}.ToExperiment(tbl)
	require.NoError(t, err)
	assert.Equal(t, experiment.RandomForest, e.Model)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

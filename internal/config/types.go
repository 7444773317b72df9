// Package config loads slamd settings from defaults, a YAML file, SLAMD_
// environment variables and command-line flags, in increasing priority.
package config

import (
	"strings"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// Defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultAddr        = ":8080"
	DefaultMaxUploadMB = 32
	DefaultTop         = 10
)

// Config holds all settings.
type Config struct {
	LogLevel   string           `koanf:"log_level"`
	LogFormat  string           `koanf:"log_format"`
	Seed       int64            `koanf:"seed"`
	NJobs      int              `koanf:"n_jobs"`
	Server     ServerConfig     `koanf:"server"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Output     OutputConfig     `koanf:"output"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MaxUploadMB int64  `koanf:"max_upload_mb"`
}

// OutputConfig names the files a CLI run writes. Empty paths are skipped.
type OutputConfig struct {
	Excel string `koanf:"excel"`
	CSV   string `koanf:"csv"`
	Plot  string `koanf:"plot"`
	Top   int    `koanf:"top"`
}

// ColumnConfig describes one target or a-priori column. A nil weight means 1.
type ColumnConfig struct {
	Name      string   `koanf:"name" json:"name"`
	Weight    *float64 `koanf:"weight" json:"weight,omitempty"`
	Threshold *float64 `koanf:"threshold" json:"threshold,omitempty"`
	Direction string   `koanf:"direction" json:"direction"`
}

// ExperimentConfig is the per-column form of an experiment.
type ExperimentConfig struct {
	Model     string         `koanf:"model" json:"model"`
	Curiosity float64        `koanf:"curiosity" json:"curiosity"`
	Features  []string       `koanf:"features" json:"features"`
	Targets   []ColumnConfig `koanf:"targets" json:"targets"`
	Apriori   []ColumnConfig `koanf:"apriori" json:"apriori,omitempty"`
}

// ToExperiment converts the per-column settings into a descriptor over table.
// Only the model kind is checked here; everything else is left to
// experiment.Validate.
func (c ExperimentConfig) ToExperiment(table *dataset.Table) (*experiment.Experiment, error) {
	if table == nil {
		return nil, errors.NewConfigurationError("dataset", "no dataset given")
	}
	kind := experiment.RandomForest
	if c.Model != "" {
		var err error
		if kind, err = experiment.ParseModelKind(c.Model); err != nil {
			return nil, err
		}
	}

	opts := []experiment.Option{
		experiment.WithModel(kind),
		experiment.WithCuriosity(c.Curiosity),
		experiment.WithFeatures(c.Features...),
	}
	for _, t := range c.Targets {
		opts = append(opts, experiment.WithTarget(t.Name, t.weight(), t.Threshold, t.direction()))
	}
	for _, a := range c.Apriori {
		opts = append(opts, experiment.WithApriori(a.Name, a.weight(), a.Threshold, a.direction()))
	}
	return experiment.New(table, opts...), nil
}

func (c ColumnConfig) weight() float64 {
	if c.Weight == nil {
		return 1
	}
	return *c.Weight
}

func (c ColumnConfig) direction() experiment.Direction {
	return experiment.Direction(strings.ToLower(strings.TrimSpace(c.Direction)))
}

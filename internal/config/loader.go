package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
)

// EnvPrefix prefixes every environment variable. A double underscore
// separates nesting levels: SLAMD_SERVER__ADDR sets server.addr.
const EnvPrefix = "SLAMD_"

// flagKeys maps flag names to config keys where they differ from the
// snake_case form of the flag.
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"max-upload-mb": "server.max_upload_mb",
	"model":         "experiment.model",
	"curiosity":     "experiment.curiosity",
	"features":      "experiment.features",
	"excel":         "output.excel",
	"csv":           "output.csv",
	"plot":          "output.plot",
	"top":           "output.top",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log_level":            DefaultLogLevel,
		"log_format":           DefaultLogFormat,
		"seed":                 42,
		"n_jobs":               0,
		"server.addr":          DefaultAddr,
		"server.max_upload_mb": DefaultMaxUploadMB,
		"output.top":           DefaultTop,
	}
}

// Load reads the configuration. path may be empty; then slamd.yaml or
// slamd.yml in the working directory is used when present. flags may be nil;
// only flags the user changed take part.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if path = findConfigFile(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the process-level settings. Experiment settings are
// validated by the experiment preprocessor.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console", "text":
	default:
		return errors.NewValidationError("log_format", "must be json or console", c.LogFormat)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.NewValidationError("server.max_upload_mb", "must be positive", c.Server.MaxUploadMB)
	}
	if c.NJobs < 0 {
		return errors.NewValidationError("n_jobs", "must not be negative", c.NJobs)
	}
	return nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"slamd.yaml", "slamd.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

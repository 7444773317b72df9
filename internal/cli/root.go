// Package cli provides the command-line interface for slamd.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/slamd/discovery"
	"github.com/YuminosukeSato/slamd/discovery/mlmodel"
	"github.com/YuminosukeSato/slamd/internal/config"
	"github.com/YuminosukeSato/slamd/pkg/log"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// app carries state shared by the commands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func (a *app) conductor() *discovery.Conductor {
	factory := mlmodel.NewFactory(mlmodel.WithSeed(a.cfg.Seed), mlmodel.WithNJobs(a.cfg.NJobs))
	return discovery.NewConductor(discovery.WithFactory(factory))
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "slamd",
		Short: "slamd - sequential learning for materials discovery",
		Long: `slamd trains a model on the labelled rows of a materials dataset and ranks
the remaining candidates by a utility that blends predicted properties with
model uncertainty.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./slamd.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json|console)")
	rootCmd.PersistentFlags().Int64("seed", 0, "Random seed of every model")
	rootCmd.PersistentFlags().Int("n-jobs", 0, "Worker count for model fitting (0 means all CPUs)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newModelsCommand())
	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	return rootCmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

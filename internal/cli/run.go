package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery"
	"github.com/YuminosukeSato/slamd/discovery/report"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

func newRunCommand(a *app) *cobra.Command {
	var datasetPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rank the unlabelled rows of a dataset",
		Long: `Run one discovery iteration: validate the experiment, train one model per
target, predict the candidates and print them ranked by utility.

The experiment (model, features, targets, a-priori columns) comes from the
config file; --model, --curiosity and --features override it.`,
		Example: `  slamd run --dataset concrete.csv --config experiment.yaml --excel predictions.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := dataset.Load(datasetPath)
			if err != nil {
				return err
			}
			exp, err := a.cfg.Experiment.ToExperiment(table)
			if err != nil {
				return err
			}
			res, err := a.conductor().Run(cmd.Context(), exp)
			if err != nil {
				return err
			}

			if err := printRecommendations(cmd.OutOrStdout(), res, a.cfg.Output.Top); err != nil {
				return err
			}
			return writeOutputs(cmd.OutOrStdout(), res, a.cfg.Output.Excel, a.cfg.Output.CSV, a.cfg.Output.Plot)
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "Dataset file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("dataset")
	cmd.Flags().String("model", "", "Model kind (see 'slamd models')")
	cmd.Flags().Float64("curiosity", 0, "Weight of model uncertainty in the utility, in [-2, 2]")
	cmd.Flags().StringSlice("features", nil, "Feature columns")
	cmd.Flags().String("excel", "", "Write predictions to this .xlsx file")
	cmd.Flags().String("csv", "", "Write predictions to this .csv file")
	cmd.Flags().String("plot", "", "Write a utility scatter plot (.png or .svg)")
	cmd.Flags().Int("top", 0, "Number of recommendations to print (0 prints all)")
	return cmd
}

func printRecommendations(out io.Writer, res *discovery.Result, top int) error {
	_, _ = fmt.Fprintf(out, "run %s: %d candidates, model %s\n\n", res.RunID, len(res.Index), res.Model)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"RANK", "ROW", "UTILITY", "NOVELTY", "THRESHOLDS"}
	for _, t := range res.Targets {
		header = append(header, strings.ToUpper(t), "±")
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, rec := range res.Top(top) {
		novelty := "-"
		if rec.Novelty != nil {
			novelty = fmt.Sprintf("%.3f", *rec.Novelty)
		}
		meets := "ok"
		if !rec.MeetsThresholds {
			meets = "miss"
		}
		fields := []string{
			fmt.Sprint(rec.Rank), fmt.Sprint(rec.Row), fmt.Sprintf("%.4f", rec.Utility), novelty, meets,
		}
		for _, t := range res.Targets {
			fields = append(fields, fmt.Sprintf("%.4g", rec.Predicted[t]), fmt.Sprintf("%.4g", rec.Uncertainty[t]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(fields, "\t"))
	}
	return w.Flush()
}

func writeOutputs(out io.Writer, res *discovery.Result, excelPath, csvPath, plotPath string) error {
	exports := []struct {
		path  string
		write func(io.Writer, *discovery.Result) error
	}{
		{excelPath, discovery.ExportExcel},
		{csvPath, discovery.ExportCSV},
	}
	for _, e := range exports {
		if e.path == "" {
			continue
		}
		if err := writeFile(e.path, func(w io.Writer) error { return e.write(w, res) }); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "wrote %s\n", e.path)
	}
	if plotPath != "" {
		if err := report.SaveScatter(plotPath, res); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "wrote %s\n", plotPath)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(f)
}

// Package slamd is a sequential-learning engine for materials discovery.
//
// Given a table of candidate materials where only some rows carry measured
// target properties, slamd trains a regressor on the labelled rows, predicts
// the rest with an uncertainty, and ranks the candidates by a utility that
// blends the predictions with that uncertainty. The lab measures the best
// candidates, adds the labels and runs the next iteration.
//
// # Quick Start
//
//	table, err := dataset.Load("concrete.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exp := experiment.New(table,
//	    experiment.WithModel(experiment.GaussianProcess),
//	    experiment.WithCuriosity(1),
//	    experiment.WithFeatures("water", "cement", "slag"),
//	    experiment.WithTarget("strength", 1, nil, experiment.Max),
//	)
//	res, err := discovery.NewConductor().Run(ctx, exp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range res.Top(5) {
//	    fmt.Println(rec.Rank, rec.Row, rec.Utility)
//	}
//
// # Packages
//
//   - dataset: tables of numbers, strings and missing cells; CSV and XLSX I/O
//   - discovery/experiment: the experiment descriptor and its preprocessor
//   - discovery/mlmodel: one regressor per model kind
//   - discovery/scoring: utility, novelty and ranking
//   - discovery: the conductor tying the steps together, result export
//   - discovery/report: utility scatter plots
//   - sklearn/*: tree, random forest, Gaussian process, pipeline, grid search
//   - preprocessing: StandardScaler and PCA
//   - metrics: regression metrics used by cross-validation
//   - core/model, core/parallel: estimator interfaces and worker fan-out
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// The slamd command (cmd/slamd) wraps the same pipeline as a CLI and an
// HTTP API.
package slamd

package experiment

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
)

// Curiosity bounds accepted by Validate.
const (
	MinCuriosity = -2.0
	MaxCuriosity = 2.0
)

// Preprocess runs, in order: a-priori threshold filtering, missing feature
// column elimination, validation and categorical encoding. The first failing
// stage stops the run and its error is returned unchanged.
func Preprocess(e *Experiment) error {
	logger := log.GetLoggerWithName("experiment.preprocess")

	if err := checkColumns(e); err != nil {
		return err
	}

	before := e.Table.NumRows()
	if err := FilterAprioriWithThresholds(e); err != nil {
		return err
	}
	logger.Debug("a-priori filtering done",
		log.SamplesKey, e.Table.NumRows(),
		log.DroppedKey, before-e.Table.NumRows())

	dropped, err := FilterMissingInputs(e)
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		logger.Warn("dropped feature columns with missing values",
			log.ColumnKey, dropped,
			log.FeaturesKey, len(e.FeatureNames))
	}

	if err := Validate(e); err != nil {
		return err
	}

	encoded := EncodeCategoricals(e)
	logger.Info("experiment preprocessed",
		log.ModelKindKey, string(e.Model),
		log.SamplesKey, e.Table.NumRows(),
		log.FeaturesKey, len(e.FeatureNames),
		log.TargetsKey, len(e.TargetNames),
		"encoded_columns", encoded)
	return nil
}

// checkColumns rejects role assignments naming columns the table lacks,
// naming a column twice within one role, or using a target as an input.
// A column may be both an a-priori column and a feature.
func checkColumns(e *Experiment) error {
	roles := []struct {
		field string
		names []string
	}{
		{"targets", e.TargetNames},
		{"apriori", e.AprioriNames},
		{"features", e.FeatureNames},
	}
	for _, role := range roles {
		seen := make(map[string]bool, len(role.names))
		for _, name := range role.names {
			if !e.Table.HasColumn(name) {
				return errors.NewConfigurationError(role.field, "column '%s' not found in dataset", name)
			}
			if seen[name] {
				return errors.NewConfigurationError(role.field, "column '%s' is listed more than once", name)
			}
			seen[name] = true
		}
	}

	targets := make(map[string]bool, len(e.TargetNames))
	for _, name := range e.TargetNames {
		targets[name] = true
	}
	for _, role := range roles[1:] {
		for _, name := range role.names {
			if targets[name] {
				return errors.NewConfigurationError(role.field, "column '%s' is also a target", name)
			}
		}
	}
	return nil
}

// FilterAprioriWithThresholds drops unlabelled rows whose a-priori value
// violates its threshold: below it for max, above it for min. Labelled and
// partially labelled rows are never dropped, nor are rows with a missing
// a-priori value. Afterwards OriginalTable becomes a copy of the filtered table.
func FilterAprioriWithThresholds(e *Experiment) error {
	if err := checkQuadruple("apriori", e.AprioriNames, e.AprioriWeights, e.AprioriThresholds, e.AprioriDirections); err != nil {
		return err
	}

	for i, name := range e.AprioriNames {
		threshold := e.AprioriThresholds[i]
		if threshold == nil {
			continue
		}
		dir := e.AprioriDirections[i]
		if !dir.Valid() {
			return invalidDirection(dir)
		}

		values, err := e.Table.Float64s(name)
		if err != nil {
			return err
		}
		unlabelled := e.UnlabelledRows()

		var drop []int
		for _, r := range unlabelled {
			v := values[r]
			if math.IsNaN(v) {
				continue
			}
			if (dir == Max && v < *threshold) || (dir == Min && v > *threshold) {
				drop = append(drop, r)
			}
		}
		e.Table.DropRows(drop...)
	}

	e.OriginalTable = e.Table.Clone()
	return nil
}

// FilterMissingInputs drops every feature column holding a missing value
// from both the table and FeatureNames, and returns the dropped names.
func FilterMissingInputs(e *Experiment) ([]string, error) {
	var dropped []string
	kept := e.FeatureNames[:0:0]
	for _, name := range e.FeatureNames {
		if !e.Table.HasMissing(name) {
			kept = append(kept, name)
			continue
		}
		if err := e.Table.DropColumn(name); err != nil {
			return nil, errors.NewDataQualityError("missing input elimination", name, err.Error())
		}
		dropped = append(dropped, name)
	}
	e.FeatureNames = kept
	return dropped, nil
}

// Validate checks the descriptor before any model sees the data.
func Validate(e *Experiment) error {
	if !e.Model.Valid() {
		return errors.NewValueNotSupportedError("model", string(e.Model), fmt.Sprintf("Invalid model: %s", e.Model))
	}
	if len(e.TargetNames) == 0 {
		return errors.NewConfigurationError("targets", "no targets were specified")
	}
	if len(e.FeatureNames) == 0 {
		return errors.NewConfigurationError("features", "no features specified or all features dropped due to missing values")
	}
	if err := checkQuadruple("targets", e.TargetNames, e.TargetWeights, e.TargetThresholds, e.TargetDirections); err != nil {
		return err
	}
	if err := checkQuadruple("apriori", e.AprioriNames, e.AprioriWeights, e.AprioriThresholds, e.AprioriDirections); err != nil {
		return err
	}
	for _, dirs := range [][]Direction{e.TargetDirections, e.AprioriDirections} {
		for _, d := range dirs {
			if !d.Valid() {
				return invalidDirection(d)
			}
		}
	}
	if e.Model.Tuned() && len(e.TargetNames) > 1 {
		return errors.NewValueNotSupportedError("targets", len(e.TargetNames),
			fmt.Sprintf("%s only supports one target column, got %d", e.Model, len(e.TargetNames)))
	}
	if math.IsNaN(e.Curiosity) || e.Curiosity < MinCuriosity || e.Curiosity > MaxCuriosity {
		return errors.NewConfigurationError("curiosity", "must be within [%g, %g], got %g", MinCuriosity, MaxCuriosity, e.Curiosity)
	}
	if err := checkWeights("targets", e.TargetNames, e.TargetWeights); err != nil {
		return err
	}
	if err := checkWeights("apriori", e.AprioriNames, e.AprioriWeights); err != nil {
		return err
	}
	return validateTargetLabels(e)
}

func validateTargetLabels(e *Experiment) error {
	rows := e.Table.NumRows()
	required := e.Model.MinLabelled()
	for _, target := range e.TargetNames {
		count := e.LabelledCount(target)
		if count < required {
			return errors.NewDataSufficiencyError(target, required, count, fmt.Sprintf(
				"Not enough labelled values for target: %s. The %s model requires at least %d labelled %s, found %d. "+
					"Please ensure that at least %d data %s not filtered out by the a priori thresholds.",
				target, e.Model.Label(), required, plural(required, "value", "values"), count,
				required, plural(required, "point is", "points are")))
		}
		if count == rows {
			return errors.NewDataSufficiencyError(target, rows-1, count,
				fmt.Sprintf("all data is already labelled for target %s", target))
		}
	}
	return nil
}

// EncodeCategoricals replaces the values of every non-numeric feature column
// with integer codes in first-seen order and returns the encoded columns.
func EncodeCategoricals(e *Experiment) []string {
	var encoded []string
	for _, name := range e.FeatureNames {
		if e.Table.IsNumeric(name) {
			continue
		}
		uniques, err := e.Table.Factorize(name)
		if err != nil {
			continue
		}
		encoded = append(encoded, name)
		errors.Warn(errors.NewDataConversionWarning(name, "string", "integer code",
			fmt.Sprintf("categorical feature with %d levels", len(uniques))))
	}
	return encoded
}

func checkQuadruple(field string, names []string, weights []float64, thresholds []*float64, dirs []Direction) error {
	n := len(names)
	if len(weights) != n || len(thresholds) != n || len(dirs) != n {
		return errors.NewConfigurationError(field,
			"names, weights, thresholds and directions do not have the same length (%d, %d, %d, %d)",
			n, len(weights), len(thresholds), len(dirs))
	}
	return nil
}

func checkWeights(field string, names []string, weights []float64) error {
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return errors.NewConfigurationError(field, "weight of '%s' must be a finite non-negative number, got %g", names[i], w)
		}
	}
	return nil
}

func invalidDirection(d Direction) error {
	return errors.NewValueNotSupportedError("direction", string(d), fmt.Sprintf("Invalid value for max_or_min, got %s", d))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

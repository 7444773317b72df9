package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// strengthTable: target y, a-priori column strength.
// rows 0-2 labelled, 3-6 unlabelled.
func strengthTable() *dataset.Table {
	return dataset.MustTable(
		[]string{"x1", "x2", "strength", "y"},
		[][]dataset.Cell{
			{num(1), num(10), num(40), num(1.5)},
			{num(2), num(20), num(60), num(2.5)},
			{num(3), num(30), num(55), num(3.5)},
			{num(4), num(40), num(40), miss()},
			{num(5), num(50), num(70), miss()},
			{num(6), num(60), miss(), miss()},
			{num(7), num(70), num(45), miss()},
		})
}

func strengthExperiment(opts ...Option) *Experiment {
	base := []Option{
		WithModel(GaussianProcess),
		WithFeatures("x1", "x2"),
		WithTarget("y", 1, nil, Max),
		WithApriori("strength", 1, Threshold(50), Max),
	}
	return New(strengthTable(), append(base, opts...)...)
}

func TestFilterApriori_DropsOnlyUnlabelledViolators(t *testing.T) {
	e := strengthExperiment()
	require.NoError(t, FilterAprioriWithThresholds(e))

	// rows 3 (40) and 6 (45) are unlabelled and below 50; row 0 (40) is labelled
	assert.Equal(t, 5, e.Table.NumRows())
	assert.Equal(t, num(40), e.Table.At(0, "strength"), "labelled row must be retained")
	x1, err := e.Table.Float64s("x1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 5, 6}, x1, "index is reset to contiguous positions")

	// missing a-priori value is kept
	assert.True(t, e.Table.At(4, "strength").IsMissing())
}

func TestFilterApriori_MinDirection(t *testing.T) {
	e := strengthExperiment()
	e.AprioriDirections[0] = Min
	require.NoError(t, FilterAprioriWithThresholds(e))

	// unlabelled rows above 50 are dropped: row 4 (70)
	assert.Equal(t, 6, e.Table.NumRows())
	for r := 0; r < e.Table.NumRows(); r++ {
		assert.NotEqual(t, num(70), e.Table.At(r, "strength"))
	}
}

func TestFilterApriori_NilThresholdSkipped(t *testing.T) {
	e := strengthExperiment()
	e.AprioriThresholds[0] = nil
	require.NoError(t, FilterAprioriWithThresholds(e))
	assert.Equal(t, 7, e.Table.NumRows())
}

func TestFilterApriori_Idempotent(t *testing.T) {
	e := strengthExperiment()
	require.NoError(t, FilterAprioriWithThresholds(e))
	n := e.Table.NumRows()

	require.NoError(t, FilterAprioriWithThresholds(e))
	assert.Equal(t, n, e.Table.NumRows())
}

func TestFilterApriori_SnapshotsOriginal(t *testing.T) {
	e := strengthExperiment()
	require.NoError(t, FilterAprioriWithThresholds(e))
	assert.True(t, e.OriginalTable.Equal(e.Table))
	assert.NotSame(t, e.OriginalTable, e.Table)
}

func TestFilterMissingInputs(t *testing.T) {
	tbl := strengthTable()
	require.NoError(t, tbl.Set(2, "x2", miss()))
	e := New(tbl, WithFeatures("x1", "x2"), WithTarget("y", 1, nil, Max))

	dropped, err := FilterMissingInputs(e)
	require.NoError(t, err)
	assert.Equal(t, []string{"x2"}, dropped)
	assert.Equal(t, []string{"x1"}, e.FeatureNames)
	assert.False(t, e.Table.HasColumn("x2"))
}

func TestFilterMissingInputs_ColumnAlreadyGone(t *testing.T) {
	tbl := strengthTable()
	require.NoError(t, tbl.Set(2, "x2", miss()))
	e := New(tbl, WithFeatures("x1", "x2", "x2"), WithTarget("y", 1, nil, Max))

	_, err := FilterMissingInputs(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataQuality))
	assert.Contains(t, err.Error(), "x2")
}

func TestPreprocess_RejectsRepeatedColumns(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{
			name:  "duplicate feature with missing value",
			opts:  []Option{WithFeatures("x1", "x2", "x2"), WithTarget("y", 1, nil, Max)},
			field: "features",
		},
		{
			name: "duplicate target",
			opts: []Option{
				WithFeatures("x1"),
				WithTarget("y", 1, nil, Max),
				WithTarget("y", 1, nil, Min),
			},
			field: "targets",
		},
		{
			name:  "target used as feature",
			opts:  []Option{WithFeatures("x1", "y"), WithTarget("y", 1, nil, Max)},
			field: "features",
		},
		{
			name: "target used as a-priori column",
			opts: []Option{
				WithFeatures("x1"),
				WithTarget("y", 1, nil, Max),
				WithApriori("y", 1, nil, Max),
			},
			field: "apriori",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := strengthTable()
			require.NoError(t, tbl.Set(2, "x2", miss()))
			e := New(tbl, append([]Option{WithModel(GaussianProcess)}, tt.opts...)...)

			err := Preprocess(e)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
			var cfgErr *errors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, 7, e.Table.NumRows(), "table is untouched when column roles are rejected")
		})
	}
}

func TestPreprocess_AprioriColumnMayBeFeature(t *testing.T) {
	e := New(strengthTable(),
		WithModel(GaussianProcess),
		WithFeatures("x1", "strength"),
		WithTarget("y", 1, nil, Max),
		WithApriori("strength", 1, nil, Max),
	)
	require.NoError(t, Preprocess(e))
}

func TestPreprocess_NoMissingFeaturesAfterwards(t *testing.T) {
	tbl := strengthTable()
	require.NoError(t, tbl.Set(5, "x1", miss()))
	e := New(tbl,
		WithModel(GaussianProcess),
		WithFeatures("x1", "x2", "strength"),
		WithTarget("y", 1, nil, Max),
	)

	require.NoError(t, Preprocess(e))
	assert.Equal(t, []string{"x2"}, e.FeatureNames)
	for _, f := range e.FeatureNames {
		assert.False(t, e.Table.HasMissing(f), f)
	}
}

func TestPreprocess_AllFeaturesDropped(t *testing.T) {
	e := New(strengthTable(),
		WithModel(GaussianProcess),
		WithFeatures("strength"),
		WithTarget("y", 1, nil, Max),
	)
	err := Preprocess(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "features")
}

func TestPreprocess_OriginalUntouchedByEncoding(t *testing.T) {
	tbl := strengthTable()
	cat := []dataset.Cell{str("b"), str("a"), str("b"), str("c"), str("a"), str("c"), str("b")}
	require.NoError(t, tbl.SetColumn("binder", cat))

	e := New(tbl,
		WithModel(GaussianProcess),
		WithFeatures("x1", "binder"),
		WithTarget("y", 1, nil, Max),
		WithApriori("strength", 1, Threshold(50), Max),
	)
	require.NoError(t, Preprocess(e))

	// binder codes follow first-seen order of the filtered rows: b, a, b, a, c
	codes, err := e.Table.Float64s("binder")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 2}, codes)

	assert.Equal(t, str("b"), e.OriginalTable.At(0, "binder"))
	assert.False(t, e.OriginalTable.IsNumeric("binder"))
}

func TestValidate_LengthMismatch(t *testing.T) {
	e := strengthExperiment()
	e.TargetWeights = append(e.TargetWeights, 2)

	err := Validate(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "same length")

	e = strengthExperiment()
	e.AprioriThresholds = nil
	err = Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apriori")
}

func TestValidate_UnknownModel(t *testing.T) {
	e := strengthExperiment(WithModel("quantum_regressor"))
	err := Preprocess(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValueNotSupported))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "quantum_regressor")
}

func TestValidate_InvalidDirection(t *testing.T) {
	e := strengthExperiment()
	e.TargetDirections[0] = "maximum"

	err := Validate(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValueNotSupported))
	assert.Contains(t, err.Error(), "maximum")
}

func TestValidate_TunedSingleTarget(t *testing.T) {
	tbl := strengthTable()
	require.NoError(t, tbl.SetColumn("z", []dataset.Cell{num(1), num(2), num(3), miss(), miss(), miss(), miss()}))
	e := New(tbl,
		WithModel(TunedRandomForest),
		WithFeatures("x1"),
		WithTarget("y", 1, nil, Max),
		WithTarget("z", 1, nil, Max),
	)

	err := Validate(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "only supports one target column, got 2")
}

func TestValidate_CuriosityAndWeights(t *testing.T) {
	e := strengthExperiment(WithCuriosity(2.5))
	err := Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curiosity")

	e = strengthExperiment(WithCuriosity(-2))
	assert.NoError(t, Validate(e))

	e = strengthExperiment()
	e.TargetWeights[0] = -1
	err = Validate(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestValidate_MinimumLabelled(t *testing.T) {
	tests := []struct {
		kind     ModelKind
		labelled int
		wantErr  bool
	}{
		{RandomForest, 1, true},
		{RandomForest, 2, false},
		{GaussianProcess, 0, true},
		{GaussianProcess, 1, false},
		{PCAGaussianProcess, 1, false},
		{PCARandomForest, 1, true},
		{TunedRandomForest, 3, true},
		{TunedGaussianProcess, 4, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rows := make([][]dataset.Cell, 6)
			for i := range rows {
				y := miss()
				if i < tt.labelled {
					y = num(float64(i))
				}
				rows[i] = []dataset.Cell{num(float64(i)), y}
			}
			e := New(dataset.MustTable([]string{"x", "y"}, rows),
				WithModel(tt.kind),
				WithFeatures("x"),
				WithTarget("y", 1, nil, Max),
			)

			err := Validate(e)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrDataSufficiency))

			var dse *errors.DataSufficiencyError
			require.True(t, errors.As(err, &dse))
			assert.Equal(t, "y", dse.Target)
			assert.Equal(t, tt.kind.MinLabelled(), dse.Required)
			assert.Equal(t, tt.labelled, dse.Found)
		})
	}
}

func TestValidate_RandomForestSingleLabelMessage(t *testing.T) {
	e := New(dataset.MustTable([]string{"x", "y"}, [][]dataset.Cell{
		{num(1), num(3)},
		{num(2), miss()},
		{num(3), miss()},
	}), WithModel(RandomForest), WithFeatures("x"), WithTarget("y", 1, nil, Max))

	err := Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 labelled values")
	assert.Contains(t, err.Error(), "found 1")
}

func TestValidate_FullyLabelled(t *testing.T) {
	for _, info := range Kinds() {
		t.Run(string(info.Kind), func(t *testing.T) {
			rows := make([][]dataset.Cell, 5)
			for i := range rows {
				rows[i] = []dataset.Cell{num(float64(i)), num(float64(i * i))}
			}
			e := New(dataset.MustTable([]string{"x", "y"}, rows),
				WithModel(info.Kind), WithFeatures("x"), WithTarget("y", 1, nil, Max))

			err := Validate(e)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrDataSufficiency))
			assert.Contains(t, err.Error(), "all data is already labelled for target y")
		})
	}
}

func TestPreprocess_UnknownColumn(t *testing.T) {
	e := strengthExperiment(WithFeatures("x1", "nope"))
	err := Preprocess(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "nope")
}

func TestPreprocess_NonNumericApriori(t *testing.T) {
	tbl := strengthTable()
	require.NoError(t, tbl.Set(3, "strength", str("high")))
	e := New(tbl, WithModel(GaussianProcess), WithFeatures("x1"),
		WithTarget("y", 1, nil, Max), WithApriori("strength", 1, Threshold(50), Max))

	err := Preprocess(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataQuality))
	assert.Contains(t, err.Error(), "strength")
}

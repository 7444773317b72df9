package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/slamd/pkg/errors"
)

func fixture() *Table {
	return MustTable([]string{"a", "b", "c"}, [][]Cell{
		{Number(1), String("x"), Number(10)},
		{Number(2), String("y"), Missing()},
		{Number(3), String("x"), Number(30)},
	})
}

func TestNewTable_RejectsDuplicateColumns(t *testing.T) {
	_, err := NewTable([]string{"a", "a"}, nil)
	require.Error(t, err)
}

func TestTable_DropRowsRenumbers(t *testing.T) {
	tbl := fixture()
	tbl.DropRows(0)

	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, Number(2), tbl.At(0, "a"))
	assert.Equal(t, Number(3), tbl.At(1, "a"))
	assert.True(t, tbl.At(5, "a").IsMissing())
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := fixture()
	c := tbl.Clone()
	require.NoError(t, c.Set(0, "a", Number(99)))
	c.DropRows(1)

	assert.Equal(t, Number(1), tbl.At(0, "a"))
	assert.Equal(t, 3, tbl.NumRows())
	assert.False(t, tbl.Equal(c))
	assert.True(t, tbl.Equal(fixture()))
}

func TestTable_DropColumn(t *testing.T) {
	tbl := fixture()
	require.NoError(t, tbl.DropColumn("b"))
	assert.Equal(t, []string{"a", "c"}, tbl.Columns())
	assert.False(t, tbl.HasColumn("b"))
	assert.Error(t, tbl.DropColumn("b"))
}

func TestTable_Float64s(t *testing.T) {
	tbl := fixture()

	vals, err := tbl.Float64s("c")
	require.NoError(t, err)
	assert.Equal(t, 10.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]))

	_, err = tbl.Float64s("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataQuality))

	_, err = tbl.Float64s("missing")
	assert.Error(t, err)
}

func TestTable_IsNumericAndHasMissing(t *testing.T) {
	tbl := fixture()
	assert.True(t, tbl.IsNumeric("a"))
	assert.True(t, tbl.IsNumeric("c"))
	assert.False(t, tbl.IsNumeric("b"))
	assert.True(t, tbl.HasMissing("c"))
	assert.False(t, tbl.HasMissing("a"))
}

func TestTable_FactorizeFirstSeenOrder(t *testing.T) {
	tbl := MustTable([]string{"cat"}, [][]Cell{
		{String("b")}, {String("a")}, {String("b")}, {Missing()}, {String("c")},
	})

	uniques, err := tbl.Factorize("cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, uniques)

	col, _ := tbl.Column("cat")
	assert.Equal(t, []Cell{Number(0), Number(1), Number(0), Missing(), Number(2)}, col)
	assert.True(t, tbl.IsNumeric("cat"))
}

func TestTable_SelectAndSetColumn(t *testing.T) {
	tbl := fixture()
	sub, err := tbl.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sub.Columns())

	require.NoError(t, sub.SetColumn("d", []Cell{Number(1), Number(2), Number(3)}))
	assert.Equal(t, []string{"c", "a", "d"}, sub.Columns())
	assert.False(t, tbl.HasColumn("d"))

	assert.Error(t, sub.SetColumn("e", []Cell{Number(1)}))
	_, err = tbl.Select("nope")
	assert.Error(t, err)
}

func TestNumber_NaNIsMissing(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
}

package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/slamd/pkg/errors"
)

const sampleCSV = `Idx,Water,Cement,Strength
0,1.5,cem I,40
1,NaN,cem II,
2, 2.0 ,cem I,NA
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"Idx", "Water", "Cement", "Strength"}, tbl.Columns())
	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, Number(1.5), tbl.At(0, "Water"))
	assert.True(t, tbl.At(1, "Water").IsMissing())
	assert.Equal(t, Number(2), tbl.At(2, "Water"))
	assert.Equal(t, String("cem II"), tbl.At(1, "Cement"))
	assert.True(t, tbl.At(1, "Strength").IsMissing())
	assert.True(t, tbl.At(2, "Strength").IsMissing())
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))
}

func TestXLSXRoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	data, err := XLSXBytes(tbl, "Predictions")
	require.NoError(t, err)

	back, err := ReadXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), back.Columns())
	assert.Equal(t, tbl.NumRows(), back.NumRows())
	assert.Equal(t, Number(1.5), back.At(0, "Water"))
	assert.Equal(t, String("cem II"), back.At(1, "Cement"))
	assert.True(t, back.At(1, "Strength").IsMissing())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))
	tbl, err := Load(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())

	xlsxPath := filepath.Join(dir, "data.xlsx")
	data, err := XLSXBytes(tbl, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(xlsxPath, data, 0o644))
	fromXLSX, err := Load(xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), fromXLSX.Columns())

	txtPath := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte(sampleCSV), 0o644))
	_, err = Load(txtPath)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "absent.csv"))
	assert.Error(t, err)
}

func TestRead_ByFilename(t *testing.T) {
	tbl, err := Read(strings.NewReader(sampleCSV), "upload.CSV")
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())

	_, err = Read(strings.NewReader(sampleCSV), "upload.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValueNotSupported))
}

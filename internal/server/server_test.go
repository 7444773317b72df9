package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

func concreteCSV() string {
	var b strings.Builder
	b.WriteString("water,cement,strength\n")
	for i := 0; i < 9; i++ {
		strength := ""
		if i < 6 {
			strength = fmt.Sprintf("%.2f", 30+5*float64(i))
		}
		fmt.Fprintf(&b, "%.2f,%d,%s\n", 0.4+0.05*float64(i), 300+10*i, strength)
	}
	return b.String()
}

const rfConfig = `{"model":"random_forest","curiosity":1,"features":["water","cement"],
"targets":[{"name":"strength","direction":"max"}]}`

func upload(t *testing.T, url, filename, body, cfg string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("dataset", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("config", cfg))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	New(Config{Version: "test"}).Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestModels(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var kinds []experiment.KindInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kinds))
	assert.Len(t, kinds, len(experiment.Kinds()))
}

func TestExperiment_JSON(t *testing.T) {
	rec := serve(upload(t, "/api/v1/experiments?top=2", "concrete.csv", concreteCSV(), rfConfig))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExperimentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, experiment.RandomForest, resp.Model)
	assert.Equal(t, 3, resp.Candidates)
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, 1, resp.Recommendations[0].Rank)
	assert.Contains(t, resp.Recommendations[0].Predicted, "strength")
}

func TestExperiment_Workbook(t *testing.T) {
	rec := serve(upload(t, "/api/v1/experiments?format=xlsx", "concrete.csv", concreteCSV(), rfConfig))
	require.Equal(t, http.StatusOK, rec.Code)

	tbl, err := dataset.ReadXLSX(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.True(t, tbl.HasColumn("Utility"))
	assert.Equal(t, 9, tbl.NumRows())
}

func TestExperiment_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		cfg      string
		status   int
		category string
	}{
		{"no file", "", rfConfig, http.StatusBadRequest, "configuration"},
		{"bad json", "concrete.csv", "{", http.StatusBadRequest, "configuration"},
		{"unknown model", "concrete.csv", `{"model":"quantum_regressor","features":["water"],"targets":[{"name":"strength","direction":"max"}]}`, http.StatusBadRequest, "value_not_supported"},
		{"bad extension", "concrete.txt", rfConfig, http.StatusBadRequest, "value_not_supported"},
		{"curiosity out of range", "concrete.csv", `{"model":"tuned_random_forest","features":["water"],"targets":[{"name":"strength","direction":"max"}],"curiosity":9}`, http.StatusBadRequest, "configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(upload(t, "/api/v1/experiments", tt.filename, concreteCSV(), tt.cfg))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.category, body.Category)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.NewConfigurationError("x", "bad"), http.StatusBadRequest},
		{errors.NewValueNotSupportedError("model", "m", ""), http.StatusBadRequest},
		{errors.NewDataSufficiencyError("y", 2, 1, "few"), http.StatusUnprocessableEntity},
		{errors.NewDataQualityError("fit", "x", "nan"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := StatusCode(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestExperiment_DataSufficiency(t *testing.T) {
	csv := "x,y\n1,1\n2,\n3,\n"
	cfg := `{"model":"random_forest","features":["x"],"targets":[{"name":"y","direction":"max"}]}`

	rec := serve(upload(t, "/api/v1/experiments", "d.csv", csv, cfg))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "found 1")
}

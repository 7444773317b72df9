package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/internal/config"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// ExperimentResponse is the JSON body of a successful experiment run.
type ExperimentResponse struct {
	RunID           string                     `json:"run_id"`
	Model           experiment.ModelKind       `json:"model"`
	Targets         []string                   `json:"targets"`
	Candidates      int                        `json:"candidates"`
	Recommendations []discovery.Recommendation `json:"recommendations"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, experiment.Kinds())
}

// handleExperiment expects a multipart form with a "dataset" file (CSV or
// XLSX) and a "config" field holding the experiment as JSON. ?format=xlsx
// returns the prediction workbook instead of JSON; ?top=n limits the
// recommendations.
func (s *Server) handleExperiment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, errors.NewConfigurationError("dataset", "invalid multipart upload: %v", err))
		return
	}

	file, header, err := r.FormFile("dataset")
	if err != nil {
		s.writeError(w, errors.NewConfigurationError("dataset", "missing dataset file"))
		return
	}
	defer file.Close()

	table, err := dataset.Read(file, header.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var cfg config.ExperimentConfig
	if err := json.Unmarshal([]byte(r.FormValue("config")), &cfg); err != nil {
		s.writeError(w, errors.NewConfigurationError("config", "invalid experiment JSON: %v", err))
		return
	}
	exp, err := cfg.ToExperiment(table)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.conductor.Run(r.Context(), exp)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="predictions.xlsx"`)
		if err := discovery.ExportExcel(w, res); err != nil {
			s.logger.Error("writing workbook failed", err)
		}
		return
	}

	top, _ := strconv.Atoi(r.URL.Query().Get("top"))
	writeJSON(w, http.StatusOK, ExperimentResponse{
		RunID:           res.RunID,
		Model:           res.Model,
		Targets:         res.Targets,
		Candidates:      len(res.Index),
		Recommendations: res.Top(top),
	})
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrValueNotSupported):
		return http.StatusBadRequest, "value_not_supported"
	case errors.Is(err, errors.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, errors.ErrDataSufficiency):
		return http.StatusUnprocessableEntity, "data_sufficiency"
	case errors.Is(err, errors.ErrDataQuality):
		return http.StatusUnprocessableEntity, "data_quality"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, category := StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("experiment failed", err)
		msg = "internal error"
	} else {
		s.logger.Warn("experiment rejected", "category", category, "error", err.Error())
	}
	writeJSON(w, status, errorResponse{Error: msg, Category: category})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

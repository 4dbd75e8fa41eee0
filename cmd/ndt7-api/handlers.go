package main

import (
	"NDT7Spectra/internal/engine/aggregator"
	"NDT7Spectra/internal/engine/features"
	"NDT7Spectra/internal/factory"
	"NDT7Spectra/internal/metrics"
	"NDT7Spectra/internal/model"
	"NDT7Spectra/internal/query"
	"NDT7Spectra/pkg/ndt7"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
)

// maxRecordSize bounds the size of an uploaded record.
const maxRecordSize = 32 << 20

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	// querier is nil when no ClickHouse is configured.
	querier          query.Querier
	metrics          *metrics.Metrics
	defaultThreshold float64
}

// featuresResponse is the body returned by the extraction endpoint.
type featuresResponse struct {
	Dataset   string                   `json:"dataset"`
	Mode      string                   `json:"mode"`
	Threshold float64                  `json:"threshold"`
	UUID      string                   `json:"uuid"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]model.Value `json:"rows"`
}

// NewRouter wires the API routes.
func NewRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/v1/features/{mode}", h.extractHandler).Methods("POST")
	r.HandleFunc("/api/v1/datasets", h.listDatasetsHandler).Methods("GET")
	r.HandleFunc("/api/v1/datasets/{name}", h.datasetStatsHandler).Methods("GET")
	r.HandleFunc("/api/v1/datasets/{name}/runs", h.listRunsHandler).Methods("GET")
	r.HandleFunc("/api/v1/datasets/{name}/sessions/{uuid}", h.traceSessionHandler).Methods("GET")
	r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	return r
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractHandler runs one feature mode over the uploaded record.
func (h *APIHandler) extractHandler(w http.ResponseWriter, r *http.Request) {
	mode := mux.Vars(r)["mode"]

	threshold := h.defaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			http.Error(w, fmt.Sprintf("invalid threshold '%s'", raw), http.StatusBadRequest)
			return
		}
		threshold = v
	}

	task, err := factory.CreateTask(mode, threshold)
	if errors.Is(err, factory.ErrUnknownMode) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body io.Reader = http.MaxBytesReader(w, r.Body, maxRecordSize)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to read gzip body: %v", err), http.StatusBadRequest)
			return
		}
		defer gz.Close()
		body = gz
	}

	start := time.Now()
	session, err := ndt7.Decode("request", body)
	if err != nil {
		status := metrics.StatusParse
		if errors.Is(err, ndt7.ErrStructure) {
			status = metrics.StatusStructural
		}
		h.metrics.ObserveFile(mode, status, 0, time.Since(start))
		http.Error(w, fmt.Sprintf("failed to decode record: %v", err), http.StatusBadRequest)
		return
	}

	name := features.DatasetName(mode, threshold)
	agg := aggregator.New(name, mode, threshold)
	res, err := task.Extract(session)
	switch {
	case errors.Is(err, features.ErrEmptyResult):
		h.metrics.ObserveFile(mode, metrics.StatusEmpty, 0, time.Since(start))
	case err != nil:
		h.metrics.ObserveFile(mode, metrics.StatusError, 0, time.Since(start))
		http.Error(w, fmt.Sprintf("failed to extract features: %v", err), http.StatusInternalServerError)
		return
	default:
		agg.Add(0, res)
		h.metrics.ObserveFile(mode, metrics.StatusOK, len(res.Rows), time.Since(start))
	}

	ds := agg.Dataset()
	log.WithFields(log.Fields{"mode": mode, "uuid": session.UUID, "rows": len(ds.Rows)}).Debug("extracted features")
	writeJSON(w, http.StatusOK, featuresResponse{
		Dataset:   ds.Name,
		Mode:      mode,
		Threshold: threshold,
		UUID:      session.UUID,
		Columns:   ds.Columns,
		Rows:      ds.Records(),
	})
}

func (h *APIHandler) listDatasetsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireQuerier(w) {
		return
	}
	stats, err := h.querier.ListDatasets(r.Context())
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) datasetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireQuerier(w) {
		return
	}
	stats, err := h.querier.DatasetStats(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireQuerier(w) {
		return
	}
	runs, err := h.querier.ListRuns(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *APIHandler) traceSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireQuerier(w) {
		return
	}
	vars := mux.Vars(r)
	rows, err := h.querier.TraceSession(r.Context(), vars["name"], vars["uuid"])
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// requireQuerier answers 503 when dataset queries are disabled.
func (h *APIHandler) requireQuerier(w http.ResponseWriter) bool {
	if h.querier == nil {
		http.Error(w, "dataset queries are disabled: no ClickHouse configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *APIHandler) queryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.WithError(err).Error("dataset query failed")
	http.Error(w, fmt.Sprintf("failed to query datasets: %v", err), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/scrapn/app/batch"
	"github.com/umputun/scrapn/app/web/enums"
	"github.com/umputun/scrapn/app/web/persistence"
)

// DispatchRequest is the JSON payload for POST /api/v1/dispatch. Fields mirror
// the manual trigger inputs: links come in as a JSON array encoded in a string,
// and an empty run uuid means one will be generated.
type DispatchRequest struct {
	ParentURL     string `json:"parent_url"`
	BatchNumber   string `json:"batch_number"`
	BatchLinks    string `json:"batch_links"`
	CSVFilename   string `json:"csv_filename"`
	ProxyUsername string `json:"proxy_username,omitempty"`
	ProxyPassword string `json:"proxy_password,omitempty"`
	ProxyDNS      string `json:"proxy_dns,omitempty"`
	RunUUID       string `json:"run_uuid,omitempty"`
}

// DispatchResponse is the JSON response for a scheduled run
type DispatchResponse struct {
	RunUUID    string `json:"run_uuid"`
	ResultFile string `json:"result_file"`
	Status     string `json:"status"`
}

// APIStatusResponse is the JSON response for /api/v1/status
type APIStatusResponse struct {
	Runs      []APIRun  `json:"runs"`
	Stats     APIStats  `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// APIRun represents a run in JSON API responses
type APIRun struct {
	RunUUID     string    `json:"run_uuid"`
	BatchNumber string    `json:"batch_number"`
	ParentURL   string    `json:"parent_url"`
	CSVFilename string    `json:"csv_filename"`
	Links       int       `json:"links"`
	Scraped     int       `json:"scraped"`
	ResultFile  string    `json:"result_file,omitempty"`
	Status      string    `json:"status"`
	Event       string    `json:"event"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// APIStats represents aggregated statistics in JSON API response
type APIStats struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// APILogsResponse is the JSON response for run logs, one entry per batch
type APILogsResponse struct {
	RunUUID string        `json:"run_uuid"`
	Batches []APIBatchLog `json:"batches"`
}

// APIBatchLog holds captured output of a single batch
type APIBatchLog struct {
	BatchNumber string `json:"batch_number"`
	Status      string `json:"status"`
	Output      string `json:"output"`
}

// toAPIRun converts persistence.RunInfo to APIRun
func toAPIRun(run persistence.RunInfo) APIRun {
	return APIRun{
		RunUUID:     run.RunUUID,
		BatchNumber: run.BatchNumber,
		ParentURL:   run.ParentURL,
		CSVFilename: run.CSVFilename,
		Links:       run.Links,
		Scraped:     run.Scraped,
		ResultFile:  run.ResultFile,
		Status:      run.Status.String(),
		Event:       run.Event.String(),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

// handleDispatch schedules a new batch run from the request payload
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proxy := batch.Proxy{Username: req.ProxyUsername, Password: req.ProxyPassword, DNS: req.ProxyDNS}
	if proxy.DNS == "" {
		proxy = s.proxy
	}

	spec, err := batch.New(req.ParentURL, req.BatchNumber, req.BatchLinks, req.CSVFilename, req.RunUUID, proxy)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case s.dispatch <- spec:
	default:
		s.writeJSONError(w, http.StatusServiceUnavailable, "dispatch queue full")
		return
	}

	log.Printf("[INFO] dispatched %s", spec.String())
	s.writeJSON(w, http.StatusAccepted, DispatchResponse{
		RunUUID:    spec.RunUUID,
		ResultFile: spec.ResultFile(),
		Status:     enums.RunStatusScheduled.String(),
	})
}

// handleStatus returns JSON status for recent runs - designed for CLI/jq consumption
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRuns(s.limitParam(r))
	if err != nil {
		log.Printf("[ERROR] failed to load runs: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}

	apiRuns := make([]APIRun, 0, len(runs))
	stats := APIStats{Total: len(runs)}
	for _, run := range runs {
		apiRuns = append(apiRuns, toAPIRun(run))
		switch run.Status {
		case enums.RunStatusRunning:
			stats.Running++
		case enums.RunStatusSuccess:
			stats.Success++
		case enums.RunStatusFailed:
			stats.Failed++
		}
	}

	s.writeJSON(w, http.StatusOK, APIStatusResponse{Runs: apiRuns, Stats: stats, Timestamp: time.Now()})
}

// handleRuns returns the recent runs list
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRuns(s.limitParam(r))
	if err != nil {
		log.Printf("[ERROR] failed to load runs: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}

	apiRuns := make([]APIRun, 0, len(runs))
	for _, run := range runs {
		apiRuns = append(apiRuns, toAPIRun(run))
	}
	s.writeJSON(w, http.StatusOK, apiRuns)
}

// handleRun returns all batches of a single run
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runs, err := s.loadRun(w, r)
	if err != nil {
		return
	}

	apiRuns := make([]APIRun, 0, len(runs))
	for _, run := range runs {
		apiRuns = append(apiRuns, toAPIRun(run))
	}
	s.writeJSON(w, http.StatusOK, apiRuns)
}

// handleRunLogs returns captured output for each batch of a run
func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	runs, err := s.loadRun(w, r)
	if err != nil {
		return
	}

	resp := APILogsResponse{RunUUID: runs[0].RunUUID}
	for _, run := range runs {
		resp.Batches = append(resp.Batches, APIBatchLog{
			BatchNumber: run.BatchNumber,
			Status:      run.Status.String(),
			Output:      run.Output,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleArtifacts lists collected artifact bundles for a run
func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		s.writeJSONError(w, http.StatusNotFound, "artifact store not configured")
		return
	}

	manifests, err := s.artifacts.List(r.PathValue("uuid"))
	if err != nil {
		log.Printf("[ERROR] failed to list artifacts for %s: %v", r.PathValue("uuid"), err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	if len(manifests) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no artifacts for run")
		return
	}
	s.writeJSON(w, http.StatusOK, manifests)
}

// handleArtifactDownload serves a single collected artifact file
func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		s.writeJSONError(w, http.StatusNotFound, "artifact store not configured")
		return
	}

	path, err := s.artifacts.FilePath(r.PathValue("uuid"), r.PathValue("bundle"), r.PathValue("name"))
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, "artifact not found")
		return
	}
	http.ServeFile(w, r, path)
}

// loadRun fetches run batches by the uuid path value, writing the error response on failure
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) ([]persistence.RunInfo, error) {
	runUUID := r.PathValue("uuid")
	runs, err := s.store.GetRun(runUUID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "run not found")
			return nil, err
		}
		log.Printf("[ERROR] failed to load run %s: %v", runUUID, err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load run")
		return nil, err
	}
	return runs, nil
}

// limitParam reads the limit query param, 0 lets the store apply its default
func (s *Server) limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			return limit
		}
	}
	return 0
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}

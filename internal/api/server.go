// Package api exposes the analysis service over HTTP: session import and
// listing, analysis runs, stored reports, and debug charts.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/cogload.report/internal/db"
	"github.com/banshee-data/cogload.report/internal/httputil"
	"github.com/banshee-data/cogload.report/internal/pipeline"
	"github.com/banshee-data/cogload.report/internal/telemetry"
	"github.com/banshee-data/cogload.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db    *db.DB
	units string
}

// NewServer wires the API over the given store. units selects the speed
// unit for session summaries ("mps", "kph", or "mph").
func NewServer(database *db.DB, speedUnits string) *Server {
	return &Server{
		db:    database,
		units: speedUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/reports", s.handleReports)
	mux.HandleFunc("/api/charts/track", s.handleTrackChart)
	mux.HandleFunc("/api/charts/cli", s.handleLoadChart)
	mux.HandleFunc("/api/charts/heatmap", s.handleHeatmap)
	return mux
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		sess, err := s.db.GetSession(id)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sess)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

// handleImport accepts a telemetry capture in the request body and stores it
// as a new session. Query params: name (required), format ("csv" or "pcap").
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		httputil.BadRequest(w, "Missing 'name' parameter")
		return
	}
	format := r.URL.Query().Get("format")

	var (
		samples telemetry.Series
		err     error
	)
	switch format {
	case "", "csv":
		format = "csv"
		samples, err = telemetry.LoadCSV(r.Body, telemetry.CSVOptions{})
	case "pcap":
		samples, err = telemetry.LoadPCAP(r.Body, telemetry.PCAPOptions{})
	default:
		httputil.BadRequest(w, fmt.Sprintf("Unknown format %q", format))
		return
	}
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Failed to parse %s capture: %v", format, err))
		return
	}

	id, err := s.db.CreateSession(name, format, samples)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to store session: %v", err))
		return
	}

	meanSpeed := 0.0
	if d := samples.Duration(); d > 0 {
		meanSpeed = samples.TotalDistance() / d
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":           id,
		"sample_count": len(samples),
		"duration":     samples.Duration(),
		"distance":     samples.TotalDistance(),
		"mean_speed":   s.convertSpeed(meanSpeed),
		"speed_units":  s.units,
	})
}

// handleAnalyze runs the pipeline over a stored session. The request body
// optionally carries run parameters as JSON; omitted fields take defaults.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		httputil.BadRequest(w, "Missing 'session' parameter")
		return
	}

	params := pipeline.DefaultParams()
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("Invalid parameters: %v", err))
			return
		}
	}

	samples, err := s.db.GetSamples(sessionID)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("Failed to load session samples: %v", err))
		return
	}

	result, err := pipeline.Run(samples, params)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	runID, err := s.db.SaveReport(sessionID, result.Params, result.Report)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to store report: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"result": result,
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if runID := r.URL.Query().Get("run"); runID != "" {
		report, err := s.db.GetReport(runID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		httputil.BadRequest(w, "Missing 'session' or 'run' parameter")
		return
	}
	reports, err := s.db.ListReports(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list reports: %v", err))
		return
	}
	if reports == nil {
		reports = []db.StoredReport{}
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

// analyzeSession loads a session and runs the pipeline with chart query
// overrides (segments, top_k). Shared by the chart handlers; it returns the
// loaded series too so callers do not query the samples twice.
func (s *Server) analyzeSession(r *http.Request) (*pipeline.Result, telemetry.Series, error) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		return nil, nil, fmt.Errorf("missing 'session' parameter")
	}
	samples, err := s.db.GetSamples(sessionID)
	if err != nil {
		return nil, nil, err
	}

	params := pipeline.DefaultParams()
	if v := r.URL.Query().Get("segments"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid 'segments' parameter")
		}
		params.SegmentCount = parsed
	}
	if v := r.URL.Query().Get("top_k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid 'top_k' parameter")
		}
		params.TopK = parsed
	}
	result, err := pipeline.Run(samples, params)
	if err != nil {
		return nil, nil, err
	}
	return result, samples, nil
}

// convertSpeed converts a stored m/s speed to the server's display unit.
func (s *Server) convertSpeed(speedMPS float64) float64 {
	switch s.units {
	case "mph":
		return units.FromMPS(speedMPS, units.MPH)
	case "kmph", "kph":
		return units.FromMPS(speedMPS, units.KPH)
	default:
		return speedMPS
	}
}

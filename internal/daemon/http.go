package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildmatrix/internal/eventstore"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/metrics"
	"git.home.luguber.info/inful/buildmatrix/internal/report"
)

// httpServer exposes health, status, report and metrics endpoints.
type httpServer struct {
	daemon  *Daemon
	promReg *prometheus.Registry
	server  *http.Server
}

func newHTTPServer(d *Daemon, promReg *prometheus.Registry) *httpServer {
	return &httpServer{daemon: d, promReg: promReg}
}

// Start begins serving in the background. The listener is bound before
// returning so startup failures are immediate.
func (s *httpServer) Start(listen string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /report", s.handleReport)
	if s.promReg != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(s.promReg))
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *httpServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusPayload is the /status response body.
type statusPayload struct {
	Active  *eventstore.RunSummary `json:"active_run,omitempty"`
	Last    *eventstore.RunSummary `json:"last_run,omitempty"`
	Watched bool                   `json:"config_watch"`
}

func (s *httpServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := statusPayload{
		Active:  s.daemon.projection.GetActiveRun(),
		Last:    s.daemon.projection.GetLastCompletedRun(),
		Watched: s.daemon.config().Daemon.WatchConfig,
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *httpServer) handleRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.projection.GetHistory())
}

// handleReport renders the most recent run's report as HTML.
func (s *httpServer) handleReport(w http.ResponseWriter, _ *http.Request) {
	in, ok := s.daemon.lastReportInput()
	if !ok {
		http.Error(w, "no completed run in this process yet", http.StatusNotFound)
		return
	}
	html, err := report.HTML(in)
	if err != nil {
		slog.Error("Report rendering failed", logfields.Error(err))
		http.Error(w, "report rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", logfields.Error(err))
	}
}

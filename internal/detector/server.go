// Package detector exposes the verdict service over HTTP: the /check
// endpoint queried by the traffic generator plus the dashboard and
// operations API.
package detector

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/abhijithsuren/dga-lab-v2/internal/config"
	"github.com/abhijithsuren/dga-lab-v2/internal/database"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
	"github.com/abhijithsuren/dga-lab-v2/internal/metrics"
	"github.com/abhijithsuren/dga-lab-v2/internal/verdict"
)

type Server struct {
	listenAddr string
	svc        *verdict.Service
	exporter   *metrics.Exporter
	metricsCfg config.MetricsConfig
}

func NewServer(listenAddr string, svc *verdict.Service, exporter *metrics.Exporter, metricsCfg config.MetricsConfig) *Server {
	return &Server{
		listenAddr: listenAddr,
		svc:        svc,
		exporter:   exporter,
		metricsCfg: metricsCfg,
	}
}

// Start blocks serving the detector API.
func (s *Server) Start() error {
	logging.Info("detector API listening on %s", s.listenAddr)
	return http.ListenAndServe(s.listenAddr, s.Routes())
}

// Routes builds the detector mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/check", s.corsMiddleware(s.handleCheck))
	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/api/queries", s.corsMiddleware(s.handleQueries))
	mux.HandleFunc("/api/block", s.corsMiddleware(s.handleBlock))
	mux.HandleFunc("/api/unblock", s.corsMiddleware(s.handleUnblock))
	mux.HandleFunc("/api/overrides", s.corsMiddleware(s.handleOverrides))

	if s.metricsCfg.Enabled && s.exporter != nil {
		mux.Handle(s.metricsCfg.Path, s.exporter.Handler())
	}

	return mux
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

type checkRequest struct {
	Domain string `json:"domain"`
	Origin string `json:"origin,omitempty"`
}

// handleCheck answers the synchronous query protocol: one domain in, one
// verdict out. Every request is re-evaluated; verdicts are never cached
// because override state can change between occurrences.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "missing 'domain' in JSON")
		return
	}

	origin := req.Origin
	if origin != verdict.OriginUser {
		origin = verdict.OriginGenerated
	}

	result := s.svc.Evaluate(req.Domain, origin)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": s.svc.ModelLoaded(),
	})
}

// handleQueries returns recent queries, newest first, for the dashboard.
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records := s.svc.RecentQueries(limit)
	if records == nil {
		records = []database.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type overrideRequest struct {
	Domain string `json:"domain"`
	Actor  string `json:"actor,omitempty"`
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	s.handleOverrideWrite(w, r, database.StateBlocked)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	s.handleOverrideWrite(w, r, database.StateUnblocked)
}

func (s *Server) handleOverrideWrite(w http.ResponseWriter, r *http.Request, state string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "missing 'domain' in JSON")
		return
	}

	actor := req.Actor
	if actor == "" {
		actor = "dashboard"
	}

	if err := s.svc.Override(req.Domain, state, actor); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"domain": req.Domain,
		"state":  state,
	})
}

// handleOverrides lists active overrides (GET) or clears one (DELETE with
// ?domain=).
func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.svc.Overrides()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []database.OverrideEntry{}
		}
		writeJSON(w, http.StatusOK, entries)

	case http.MethodDelete:
		domain := r.URL.Query().Get("domain")
		if domain == "" {
			writeError(w, http.StatusBadRequest, "missing 'domain' query parameter")
			return
		}
		removed, err := s.svc.ClearOverride(domain)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "no override for domain")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "domain": domain})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or DELETE required")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

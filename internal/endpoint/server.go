package endpoint

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// Server fronts the simulator with HTTP. Routing is by Host header: the
// victim connects to one listener and names the domain it believes it is
// reaching, the way a resolver-less lab stands in for real DNS.
type Server struct {
	listenAddr string
	sim        *Simulator
}

func NewServer(listenAddr string, sim *Simulator) *Server {
	return &Server{listenAddr: listenAddr, sim: sim}
}

func (s *Server) Start() error {
	logging.Info("endpoint simulator listening on %s", s.listenAddr)
	return http.ListenAndServe(s.listenAddr, s.Routes())
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleConnection)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sim.Health())
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	decision := s.sim.HandleConnection(host)
	switch decision.Response {
	case ResponseGreeting, ResponseC2:
		logging.Debug("endpoint %s: %s for %s", decision.Response, decision.Body, host)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(decision.Body))
	default:
		logging.Debug("endpoint dropped %s (%s)", host, decision.Reason)
		http.Error(w, "connection dropped: "+decision.Reason, http.StatusNotFound)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"atm-ledger/pkg/directory"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics/memory"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Directory is the read-only view of the account registry the server needs.
type Directory interface {
	Accounts() []directory.Summary
}

// Snapshotter is implemented by collectors that can report their state as JSON.
type Snapshotter interface {
	Snapshot() memory.Snapshot
}

// Server provides operational HTTP endpoints. It never exposes balances,
// transactions or digests.
type Server struct {
	directory Directory
	snapshots Snapshotter
	gatherer  prometheus.Gatherer
	server    *http.Server
	config    ServerConfig
	logger    *logging.Logger
	started   time.Time
	backend   string
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	// Backend names the primary log backend, reported by /status
	Backend string
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "127.0.0.1:8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// NewServer creates the ops server. snapshots and gatherer may be nil.
func NewServer(dir Directory, snapshots Snapshotter, gatherer prometheus.Gatherer, config ServerConfig) *Server {
	s := &Server{
		directory: dir,
		snapshots: snapshots,
		gatherer:  gatherer,
		config:    config,
		logger:    logging.L().Named("api"),
		started:   time.Now(),
		backend:   config.Backend,
	}

	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.Router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/metrics", s.handleNoMetrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/metrics/json", s.handleMetricsJSON).Methods(http.MethodGet)

	r.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{number}", s.handleAccount).Methods(http.MethodGet)

	return r
}

// Start listens on the configured address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.logger.Info("api server listening", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "running",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).String(),
		"accounts":  len(s.directory.Accounts()),
	}
	if s.backend != "" {
		response["backend"] = s.backend
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleNoMetrics(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "prometheus metrics are not enabled", http.StatusNotFound)
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "metrics collector does not support JSON snapshot",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.snapshots.Snapshot())
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.directory.Accounts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]
	for _, a := range s.directory.Accounts() {
		if a.Number == number {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":  "account not found",
		"number": number,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package backend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Options shape how the backend answers, for exercising slow or failing
// upstreams.
type Options struct {
	// Latency delays every answer.
	Latency time.Duration
	// ProductLatency adds a delay to GET /products/{id} for given ids.
	ProductLatency map[int]time.Duration
	// FailStatus, when non-zero, makes every endpoint answer with it.
	FailStatus int
}

// Server serves the catalog REST API under /api.
type Server struct {
	repo *Repository

	mu   sync.RWMutex
	opts Options
}

// NewServer creates a Server over repo.
func NewServer(repo *Repository, opts Options) *Server {
	return &Server{repo: repo, opts: opts}
}

// SetOptions swaps the answer options at runtime.
func (s *Server) SetOptions(o Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = o
}

func (s *Server) options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/reviews", s.listReviews).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	return r
}

// delay sleeps for d unless the client goes away first. It reports whether
// the request is still live.
func delay(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) prelude(w http.ResponseWriter, r *http.Request, extra time.Duration) bool {
	o := s.options()
	if !delay(r, o.Latency+extra) {
		return false
	}
	if o.FailStatus != 0 {
		writeError(w, o.FailStatus, "injected_failure")
		return false
	}
	return true
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	if !s.prelude(w, r, 0) {
		return
	}
	writeJSON(w, http.StatusOK, s.repo.List())
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if !s.prelude(w, r, s.options().ProductLatency[id]) {
		return
	}
	p, ok := s.repo.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("productId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "productId query parameter is required")
		return
	}
	if !s.prelude(w, r, 0) {
		return
	}
	writeJSON(w, http.StatusOK, s.repo.Reviews(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazcell/pkg/kv"
)

// Server wraps a kv.Store and exposes HTTP endpoints for KV operations.
// When Raft is set, writes on a follower are redirected to the leader.
type Server struct {
	Store kv.Store
	Raft  *raft.Raft

	// HTTPPort is used to build leader redirects; every node is assumed
	// to serve HTTP on the same port.
	HTTPPort string
}

// NewServer creates a new HTTP server with the given store.
func NewServer(store kv.Store, raftNode *raft.Raft, httpPort string) *Server {
	return &Server{
		Store:    store,
		Raft:     raftNode,
		HTTPPort: httpPort,
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/set", s.handleSet)
	mux.HandleFunc("/delete", s.handleDelete)
}

// handleGet handles GET /get?key=foo requests.
// Returns the value as plain text or appropriate error codes.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	value, ok, err := s.Store.Get(key)
	if err != nil {
		writeStoreError(w, "Failed to get key", err)
		return
	}
	if !ok {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(value))
}

// handleSet handles POST /set requests with JSON body.
// Expects: {"key": "foo", "value": "bar"}
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}

	if err := s.Store.Set(req.Key, req.Value); err != nil {
		writeStoreError(w, "Failed to set key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDelete handles POST /delete requests with JSON body.
// Expects: {"key": "foo"}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		Key string `json:"key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}

	if err := s.Store.Delete(req.Key); err != nil {
		writeStoreError(w, "Failed to delete key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// redirectToLeader answers the request itself when this node is a Raft
// follower and reports whether it did so.
func (s *Server) redirectToLeader(w http.ResponseWriter, r *http.Request) bool {
	if s.Raft == nil || s.Raft.State() == raft.Leader {
		return false
	}

	leader, _ := s.Raft.LeaderWithID()
	if leader == "" {
		http.Error(w, "Not leader and no leader known", http.StatusServiceUnavailable)
		return true
	}
	host, _, err := net.SplitHostPort(string(leader))
	if err != nil {
		host = string(leader)
	}
	w.Header().Set("Location", "http://"+net.JoinHostPort(host, s.HTTPPort)+r.URL.Path)
	http.Error(w, "Not leader. Redirect to leader.", http.StatusTemporaryRedirect)
	return true
}

func writeStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, kv.ErrQuotaExceeded):
		http.Error(w, msg+": quota exceeded", http.StatusInsufficientStorage)
	case errors.Is(err, kv.ErrNotLeader), errors.Is(err, kv.ErrUnavailable):
		http.Error(w, msg+": store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

package hosttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pluginsync/pkg/host"
)

// Server serves the host HTTP API from a Fake
type Server struct {
	*httptest.Server
	Fake *Fake

	unavailableFor int32
	requests       int32

	user  string
	token string
}

// NewServer starts a server backed by fake
func NewServer(fake *Fake) *Server {
	return NewAuthServer(fake, "", "")
}

// NewAuthServer starts a server that requires basic auth with user and token
func NewAuthServer(fake *Fake, user, token string) *Server {
	s := &Server{Fake: fake, user: user, token: token}

	router := mux.NewRouter()
	router.Use(s.gate)
	router.HandleFunc("/api/json", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/pluginManager/api/json", s.handlePlugins).Methods(http.MethodGet)
	router.HandleFunc("/safeRestart", s.handleRestart).Methods(http.MethodPost)

	s.Server = httptest.NewServer(router)
	return s
}

// SetUnavailable makes the next n requests fail with 503
func (s *Server) SetUnavailable(n int) {
	atomic.StoreInt32(&s.requests, 0)
	atomic.StoreInt32(&s.unavailableFor, int32(n))
}

// Requests returns the number of requests received
func (s *Server) Requests() int {
	return int(atomic.LoadInt32(&s.requests))
}

func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.requests, 1)
		if n <= atomic.LoadInt32(&s.unavailableFor) {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		if s.user != "" {
			user, token, ok := r.BasicAuth()
			if !ok || user != s.user || token != s.token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	core, err := s.Fake.CoreVersion(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(host.CoreVersionHeader, core)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"mode":"NORMAL"}`))
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.Fake.Plugins()

	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	list := struct {
		Plugins []host.InstalledPlugin `json:"plugins"`
	}{Plugins: make([]host.InstalledPlugin, 0, len(names))}
	for _, name := range names {
		list.Plugins = append(list.Plugins, host.InstalledPlugin{
			ShortName: name,
			Version:   plugins[name],
			Active:    true,
			Enabled:   true,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.Fake.Restart(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Package api implements the visualgit HTTP server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/aezell/visualgit/internal/analysis"
	"github.com/aezell/visualgit/internal/git"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 5 << 20

// Options configures a Server.
type Options struct {
	Addr    string
	Repo    *git.Repo
	Session *analysis.Session
	Logger  *log.Logger
}

// Server is the visualgit HTTP server.
type Server struct {
	addr    string
	mux     *http.ServeMux
	server  *http.Server
	repo    *git.Repo
	session *analysis.Session
	logger  *log.Logger

	// baseCtx parents every request context; Shutdown cancels it.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new server. A nil Session gets a default one rooted at the
// repo directory.
func New(opts Options) *Server {
	s := &Server{
		addr:    opts.Addr,
		repo:    opts.Repo,
		session: opts.Session,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.repo == nil {
		s.repo = git.NewRepo(".")
	}
	if s.session == nil {
		s.session = analysis.NewSession(analysis.Options{Dir: s.repo.Dir, Logger: s.logger})
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: analysis streams stay open as long as the engine runs
		IdleTimeout: 120 * time.Second,
		ErrorLog:    s.logger,
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/git/status", s.handleGitStatus)
	s.mux.HandleFunc("GET /api/git/info", s.handleGitInfo)
	s.mux.HandleFunc("GET /api/git/diff", s.handleGitDiff)
	s.mux.HandleFunc("POST /api/diff/parse", s.handleParse)
	s.mux.HandleFunc("POST /api/ai/analyze", s.handleAnalyze)
	s.mux.HandleFunc("DELETE /api/ai/conversations/{id}", s.handleForgetConversation)
	s.mux.HandleFunc("GET /api/ai/ws", s.handleWebSocket)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Printf("listening on %s", ln.Addr())
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections, cancels in-flight requests (which
// interrupts their engine processes) and waits for them to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	err := s.server.Shutdown(ctx)
	if err != nil {
		s.server.Close()
	}
	return err
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

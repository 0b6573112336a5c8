// ABOUTME: WebSocket relay server accepting authenticated client sessions
// ABOUTME: Each accepted connection gets its own independent session
package relay

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicebridge/voicebridge-go/internal/auth"
)

// ServerConfig holds the relay server settings
type ServerConfig struct {
	BindAddress string
	Port        int
}

// Server accepts client WebSocket connections at /ws and runs one relay
// session per connection
type Server struct {
	cfg      ServerConfig
	verifier auth.Verifier
	deps     SessionDeps

	httpServer *http.Server
	upgrader   websocket.Upgrader

	wg sync.WaitGroup
}

// NewServer creates a relay server. Session collaborators are shared
// across sessions; per-session state never is.
func NewServer(cfg ServerConfig, verifier auth.Verifier, deps SessionDeps) *Server {
	return &Server{
		cfg:      cfg,
		verifier: verifier,
		deps:     deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start begins serving. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  0, // long-lived websocket connections
		WriteTimeout: 0,
	}

	log.Printf("Relay server listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts down the listener and waits for active sessions to finish
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// handleWebSocket authenticates the request, upgrades it, and runs a
// session until the client goes away. Authentication failures are
// rejected before the upgrade so they are distinguishable from
// payment problems.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.FromRequest(r)
	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.deps.Metrics.AuthFailures.Inc()
		log.Printf("Rejecting connection from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	session := NewSession(userID, newWSTransport(conn), s.deps)
	log.Printf("Session %s: accepted from %s (user %s)", session.ID(), r.RemoteAddr, userID)

	// Block until the session ends: returning from a hijacked handler
	// cancels the request context out from under the session.
	s.wg.Add(1)
	defer s.wg.Done()
	start := time.Now()
	if err := session.Run(r.Context()); err != nil {
		log.Printf("Session %s: ended after %v: %v", session.ID(), time.Since(start).Round(time.Millisecond), err)
	}
}

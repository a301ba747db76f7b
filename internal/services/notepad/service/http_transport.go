package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/platform/config"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// httpEnv holds env-parsed configuration for the MCP HTTP transport.
type httpEnv struct {
	AllowedHosts []string `env:"STELLAR_NOTEPAD_MCP_ALLOWED_HOSTS" envSeparator:","`
}

const (
	// channelBufferSize buffers request, response, and notification channels
	// so bursts of messages do not immediately block the HTTP handlers.
	channelBufferSize = 10

	// requestTimeout is the maximum time to wait for a JSON-RPC response.
	// Mutations hold the per-account gate while building and submitting, so
	// this must exceed the mutation deadline of the tool handlers.
	requestTimeout = 60 * time.Second

	// shutdownTimeout bounds graceful HTTP shutdown. Longer than
	// requestTimeout so in-flight requests can complete.
	shutdownTimeout = 65 * time.Second

	// sessionCleanupInterval is how often expired sessions are reaped.
	sessionCleanupInterval = 5 * time.Minute

	// sessionExpiration is how long a session may sit idle before cleanup.
	sessionExpiration = 1 * time.Hour

	// sseHeartbeatInterval refreshes liveness for long-lived SSE streams.
	sseHeartbeatInterval = 30 * time.Second

	// sessionReadyTimeout bounds how long message handling waits for the MCP
	// runtime to start reading a fresh session's connection.
	sessionReadyTimeout = 100 * time.Millisecond
)

// HTTPTransport implements mcp.Transport over HTTP. POST /mcp carries
// JSON-RPC requests and notifications; GET /mcp streams server-originated
// notifications as SSE. Session lifecycle and cleanup are explicit so
// long-lived clients cannot leak connections when they stop calling.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	server       *mcp.Server
	sessions     map[string]*httpSession
	sessionsMu   sync.RWMutex
	httpServer   *http.Server
	serverCtx    context.Context
	serverCancel context.CancelFunc
	serverOnceMu sync.Mutex
	serverOnce   map[string]*sync.Once
}

// httpSession tracks one MCP client identity across HTTP round-trips.
type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
}

// NewHTTPTransport creates an HTTP transport bound to addr. The default
// posture is loopback-only; additional hosts come from the environment.
func NewHTTPTransport(addr string) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	var raw httpEnv
	_ = config.ParseEnv(&raw)
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:         addr,
		allowedHosts: parseAllowedHosts(raw.AllowedHosts),
		sessions:     make(map[string]*httpSession),
		serverCtx:    ctx,
		serverCancel: cancel,
		serverOnce:   make(map[string]*sync.Once),
	}
}

// NewHTTPTransportWithServer creates an HTTP transport serving a
// preconfigured MCP server.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	transport := NewHTTPTransport(addr)
	transport.server = server
	return transport
}

// Start runs the HTTP server until the context is cancelled. One mux serves
// JSON-RPC messages, SSE streams, and health probes with shared host
// validation and session lifecycle.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)

	go t.cleanupSessions(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			t.handleSSE(w, r)
		case http.MethodPost:
			t.handleMessages(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	log.Printf("starting MCP HTTP server addr=%s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		if t.serverCancel != nil {
			t.serverCancel()
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// Connect implements mcp.Transport.Connect. Each call creates a fresh
// session whose connection is fed by subsequent HTTP requests.
func (t *HTTPTransport) Connect(_ context.Context) (mcp.Connection, error) {
	sessionID := generateSessionID()

	conn := &httpConnection{
		sessionID:   sessionID,
		reqChan:     make(chan jsonrpc.Message, channelBufferSize),
		notifyChan:  make(chan jsonrpc.Message, channelBufferSize),
		closed:      make(chan struct{}),
		ready:       make(chan struct{}, 1),
		pendingReqs: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}

	now := time.Now()
	session := &httpSession{
		id:        sessionID,
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
	}

	t.sessionsMu.Lock()
	t.sessions[sessionID] = session
	t.sessionsMu.Unlock()

	return conn, nil
}

// cleanupSessions reaps sessions that have been idle past expiration.
func (t *HTTPTransport) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionExpiration)
			t.sessionsMu.Lock()
			for id, session := range t.sessions {
				if session.lastUsed.Before(cutoff) {
					session.conn.Close()
					delete(t.sessions, id)
					t.serverOnceMu.Lock()
					delete(t.serverOnce, id)
					t.serverOnceMu.Unlock()
				}
			}
			t.sessionsMu.Unlock()
		}
	}
}

// ensureServerRunning starts the MCP runtime for a session exactly once and
// waits briefly for it to begin reading the session's connection.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}

	t.serverOnceMu.Lock()
	once, exists := t.serverOnce[session.id]
	if !exists {
		once = &sync.Once{}
		t.serverOnce[session.id] = once
	}
	t.serverOnceMu.Unlock()

	once.Do(func() {
		go func() {
			serverSession, err := t.server.Connect(t.serverCtx, &sessionTransport{conn: session.conn}, nil)
			if err != nil {
				log.Printf("connect MCP server session failed session=%s err=%v", session.id, err)
				return
			}
			_ = serverSession.Wait()
		}()
	})

	select {
	case <-session.conn.ready:
	case <-time.After(sessionReadyTimeout):
		// Readiness will land when the first Read happens; do not block the
		// request on it.
	case <-t.serverCtx.Done():
	}
}

// sessionTransport hands a pre-existing connection to the MCP runtime so
// Server.Connect can be driven per HTTP session.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.Connect for a single session.
func (st *sessionTransport) Connect(_ context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

var sessionCounter atomic.Uint64

// generateSessionID produces a unique session identifier from random bytes
// plus a process-local counter.
func generateSessionID() string {
	b := make([]byte, 8)
	counter := sessionCounter.Add(1)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), counter)
	}
	return fmt.Sprintf("session_%s_%d", hex.EncodeToString(b), counter)
}

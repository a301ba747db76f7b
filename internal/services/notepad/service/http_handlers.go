package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// sessionCookieName carries the session for clients that do not echo the
// Mcp-Session-Id header.
const sessionCookieName = "mcp_session"

// handleMessages handles POST /mcp for JSON-RPC requests and notifications.
// It binds each payload to a session so one MCP client stays contiguous
// across HTTP round-trips, then routes the message into the MCP runtime.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return
	}

	if _, ok := msg.(*jsonrpc.Response); ok {
		http.Error(w, "Invalid message type: response", http.StatusBadRequest)
		return
	}

	// The MCP HTTP transport requires initialize before other methods, and
	// initialize is the only message allowed to mint a session.
	isInitialize := false
	if req, ok := msg.(*jsonrpc.Request); ok {
		isInitialize = req.Method == "initialize"
	}

	session := t.lookupSession(r)
	if session == nil {
		if !isInitialize {
			writeSessionError(w, "Invalid or missing session ID")
			return
		}
		conn, err := t.Connect(r.Context())
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		sessionID := conn.SessionID()
		t.sessionsMu.RLock()
		session = t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		if session == nil {
			http.Error(w, "Failed to retrieve session after creation", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Mcp-Session-Id", sessionID)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}

	t.touchSession(session.id)
	t.ensureServerRunning(session)

	req, ok := msg.(*jsonrpc.Request)
	if ok && req.ID == (jsonrpc.ID{}) {
		// Notification: deliver and acknowledge without a response body.
		select {
		case session.conn.reqChan <- msg:
		case <-session.conn.closed:
			writeSessionError(w, "Session closed")
			return
		case <-r.Context().Done():
			http.Error(w, "Request cancelled", http.StatusRequestTimeout)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !ok {
		http.Error(w, "Invalid request type", http.StatusBadRequest)
		return
	}

	respChan := make(chan jsonrpc.Message, 1)
	session.conn.pendingMu.Lock()
	session.conn.pendingReqs[req.ID] = respChan
	session.conn.pendingMu.Unlock()

	clearPending := func() {
		session.conn.pendingMu.Lock()
		delete(session.conn.pendingReqs, req.ID)
		session.conn.pendingMu.Unlock()
	}

	select {
	case session.conn.reqChan <- msg:
	case <-session.conn.closed:
		clearPending()
		writeSessionError(w, "Session closed")
		return
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}

	select {
	case resp := <-respChan:
		clearPending()
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("write MCP response failed session=%s err=%v", session.id, err)
		}
	case <-session.conn.closed:
		clearPending()
		writeSessionError(w, "Session closed")
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	case <-time.After(requestTimeout):
		clearPending()
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleSSE handles GET /mcp for Server-Sent Events streaming. SSE is a
// notification-only path; request/reply traffic stays on POST.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session := t.lookupSession(r)
	if session == nil {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	t.touchSession(session.id)

	// Refresh liveness periodically so active streams are not reaped as idle.
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.conn.closed:
			return
		case <-ticker.C:
			t.touchSession(session.id)
		case msg := <-session.conn.notifyChan:
			t.touchSession(session.id)
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("marshal SSE message failed session=%s err=%v", session.id, err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// handleHealth handles GET /mcp/health for health checks.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Printf("write health response failed err=%v", err)
	}
}

// lookupSession resolves the request's session from the Mcp-Session-Id
// header, falling back to the session cookie. Returns nil when no live
// session matches.
func (t *HTTPTransport) lookupSession(r *http.Request) *httpSession {
	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	if sessionID == "" {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie == nil {
			return nil
		}
		sessionID = cookie.Value
	}
	if sessionID == "" {
		return nil
	}
	t.sessionsMu.RLock()
	defer t.sessionsMu.RUnlock()
	return t.sessions[sessionID]
}

// touchSession refreshes a session's liveness timestamp.
func (t *HTTPTransport) touchSession(sessionID string) {
	t.sessionsMu.Lock()
	if session, ok := t.sessions[sessionID]; ok && session != nil {
		session.lastUsed = time.Now()
	}
	t.sessionsMu.Unlock()
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	payload := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32000,
			"message": message,
		},
		"id": nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Session error"},"id":null}`))
		return
	}
	_, _ = w.Write(data)
}

// validateLocalRequest enforces host access to mitigate DNS rebinding. Host
// and Origin headers must resolve to loopback or an explicitly allowed host
// so remote web pages cannot reach a local MCP server.
func (t *HTTPTransport) validateLocalRequest(r *http.Request) error {
	if r == nil {
		return fmt.Errorf("invalid request")
	}

	if !t.isAllowedHostHeader(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !t.isAllowedHostHeader(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

// isAllowedHostHeader reports whether a Host/Origin header resolves to an
// allowed host. Loopback always passes; everything else needs explicit
// configuration.
func (t *HTTPTransport) isAllowedHostHeader(host string) bool {
	resolvedHost, ok := normalizeHost(host)
	if !ok {
		return false
	}
	if isLoopbackHost(resolvedHost) {
		return true
	}
	if len(t.allowedHosts) == 0 {
		return false
	}
	_, ok = t.allowedHosts[strings.ToLower(resolvedHost)]
	return ok
}

// isLoopbackHost reports whether a host is an explicit local loopback name.
func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// parseAllowedHosts builds the allowed-host set from env-loaded values.
func parseAllowedHosts(hosts []string) map[string]struct{} {
	result := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		result[strings.ToLower(trimmed)] = struct{}{}
	}
	return result
}

// normalizeHost extracts the hostname portion of a Host/Origin header.
func normalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", false
	}

	if strings.HasPrefix(host, "[") {
		if splitHost, _, err := net.SplitHostPort(host); err == nil {
			return splitHost, true
		}
		if strings.HasSuffix(host, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), true
		}
		return "", false
	}

	// Bare IPv6 addresses contain multiple colons and no port.
	if strings.Count(host, ":") > 1 {
		return host, true
	}

	if strings.Contains(host, ":") {
		splitHost, _, err := net.SplitHostPort(host)
		if err != nil {
			return "", false
		}
		return splitHost, true
	}

	return host, true
}

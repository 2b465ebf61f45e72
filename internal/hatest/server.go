// Package hatest provides a fake Home Assistant websocket API for tests.
//
// The server speaks the authentication handshake and the command/result
// envelope and ships default handlers for the commands the client issues
// while connecting. Tests register extra handlers with [Server.Handle].
package hatest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultToken     = "test-token"
	DefaultHAVersion = "2025.10.1"
)

// Message is a command received from the client.
type Message struct {
	ID   int64
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the full command into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

// Handler answers a command on the session it arrived on.
type Handler func(session *Session, msg Message)

type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	token     string
	haVersion string
	user      any
	config    any
	handlers  map[string]Handler
	routes    map[string]http.Handler
	sessions  map[*Session]struct{}
	received  []Message
	accepted  int
}

type ServerOption func(*Server)

func WithToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

func WithHAVersion(version string) ServerOption {
	return func(s *Server) { s.haVersion = version }
}

// NewServer starts a fake instance that is closed when the test ends.
func NewServer(t testing.TB, opts ...ServerOption) *Server {
	t.Helper()

	s := &Server{
		token:     DefaultToken,
		haVersion: DefaultHAVersion,
		user: map[string]any{
			"id":       "user-1",
			"name":     "Test User",
			"is_owner": true,
			"is_admin": true,
		},
		config: map[string]any{
			"location_name": "Home",
			"time_zone":     "Europe/London",
			"version":       DefaultHAVersion,
			"language":      "en",
			"unit_system":   map[string]string{"length": "km", "temperature": "°C"},
			"components":    []string{"assist_pipeline", "conversation"},
			"state":         "RUNNING",
		},
		handlers: map[string]Handler{},
		routes:   map[string]http.Handler{},
		sessions: map[*Session]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handlers["auth/current_user"] = func(session *Session, msg Message) {
		session.Result(msg.ID, s.currentUser())
	}
	s.handlers["get_config"] = func(session *Session, msg Message) {
		session.Result(msg.ID, s.currentConfig())
	}
	s.handlers["subscribe_events"] = func(session *Session, msg Message) {
		var request struct {
			EventType string `json:"event_type"`
		}
		_ = msg.Decode(&request)
		session.addSubscription(request.EventType, msg.ID)
		session.Result(msg.ID, nil)
	}
	s.handlers["unsubscribe_events"] = func(session *Session, msg Message) {
		var request struct {
			Subscription int64 `json:"subscription"`
		}
		_ = msg.Decode(&request)
		session.removeSubscription(request.Subscription)
		session.Result(msg.ID, nil)
	}
	s.handlers["ping"] = func(session *Session, msg Message) {
		session.Send(map[string]any{"id": msg.ID, "type": "pong"})
	}

	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)

	return s
}

// Handle registers or replaces the handler for a command type.
func (s *Server) Handle(commandType string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[commandType] = handler
}

// HandleHTTP serves handler for requests to path, for example media files.
func (s *Server) HandleHTTP(path string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = handler
}

func (s *Server) SetUser(user any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *Server) SetConfig(config any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

func (s *Server) currentUser() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Server) currentConfig() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// URL returns the http base URL of the instance.
func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.httpServer.Listener.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.httpServer.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Messages returns the received commands of the given type, all commands
// when commandType is empty.
func (s *Server) Messages(commandType string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Message
	for _, msg := range s.received {
		if commandType == "" || msg.Type == commandType {
			out = append(out, msg)
		}
	}
	return out
}

// Accepted returns how many connections completed authentication.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// FireEvent pushes an event to every session subscribed to eventType.
func (s *Server) FireEvent(eventType string, data any) {
	for _, session := range s.Sessions() {
		for _, id := range session.subscriptionsFor(eventType) {
			session.Event(id, map[string]any{
				"event_type": eventType,
				"data":       data,
				"origin":     "LOCAL",
				"time_fired": time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
	}
}

// DropConnections closes every open socket without a close frame, the way
// a restarting instance does.
func (s *Server) DropConnections() {
	for _, session := range s.Sessions() {
		_ = session.ws.Close()
	}
}

func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/websocket" {
		s.serveWebsocket(w, r)
		return
	}

	s.mu.Lock()
	handler, ok := s.routes[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler.ServeHTTP(w, r)
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	session := &Session{ws: ws, subscriptions: map[int64]string{}}
	if !s.authenticate(session) {
		return
	}

	s.mu.Lock()
	s.sessions[session] = struct{}{}
	s.accepted++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session)
		s.mu.Unlock()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var header struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			continue
		}
		msg := Message{ID: header.ID, Type: header.Type, Raw: json.RawMessage(raw)}

		s.mu.Lock()
		s.received = append(s.received, msg)
		handler, ok := s.handlers[msg.Type]
		s.mu.Unlock()

		if !ok {
			session.Error(msg.ID, "unknown_command", "Unknown command.")
			continue
		}
		handler(session, msg)
	}
}

func (s *Server) authenticate(session *Session) bool {
	s.mu.Lock()
	token, version := s.token, s.haVersion
	s.mu.Unlock()

	session.Send(map[string]string{"type": "auth_required", "ha_version": version})

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := session.ws.ReadJSON(&auth); err != nil {
		return false
	}
	if auth.Type != "auth" || auth.AccessToken != token {
		session.Send(map[string]string{"type": "auth_invalid", "message": "Invalid access token or password"})
		return false
	}

	session.Send(map[string]string{"type": "auth_ok", "ha_version": version})
	return true
}

// Session is one authenticated client socket.
type Session struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu            sync.Mutex
	subscriptions map[int64]string
}

func (s *Session) Send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.WriteJSON(v)
}

func (s *Session) Result(id int64, result any) {
	s.Send(map[string]any{"id": id, "type": "result", "success": true, "result": result})
}

func (s *Session) Error(id int64, code, message string) {
	s.Send(map[string]any{
		"id":      id,
		"type":    "result",
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func (s *Session) Event(id int64, event any) {
	s.Send(map[string]any{"id": id, "type": "event", "event": event})
}

func (s *Session) addSubscription(eventType string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[id] = eventType
}

func (s *Session) removeSubscription(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, id)
}

func (s *Session) subscriptionsFor(eventType string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, subscribed := range s.subscriptions {
		if subscribed == eventType {
			ids = append(ids, id)
		}
	}
	return ids
}

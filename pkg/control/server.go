package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/task"
)

const (
	defaultMaxBodyBytes = 64 * 1024
	requestTimeout      = 5 * time.Second
)

// StatsSource reports named counters, like the interaction router's outcome
// classes.
type StatsSource interface {
	Stats() map[string]int64
}

// TaskStats reports the background task router's state.
type TaskStats interface {
	Stats() task.Stats
}

// Deps are the components the control API reads and writes.
type Deps struct {
	Store    *files.ConfigStore
	Sessions *panel.SessionManager
	Outcomes StatsSource
	Tasks    TaskStats
}

// Server exposes configuration and session inspection over HTTP.
type Server struct {
	addr       string
	deps       Deps
	httpServer *http.Server
	listener   net.Listener
	now        func() time.Time
}

// NewServer returns nil if addr is empty.
func NewServer(addr string, deps Deps) *Server {
	addr = strings.TrimSpace(addr)
	if addr == "" || deps.Store == nil {
		return nil
	}

	s := &Server{addr: addr, deps: deps, now: time.Now}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the API routes without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/config", s.handleListScopes)
	mux.HandleFunc("GET /v1/config/{scope}", s.handleGetConfig)
	mux.HandleFunc("PATCH /v1/config/{scope}", s.handlePatchConfig)
	mux.HandleFunc("PUT /v1/config/{scope}", s.handleReplaceConfig)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /v1/sessions/{user}", s.handleEndSession)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	return mux
}

// Start opens the control server listening socket.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bind control server: %w", err)
	}
	s.listener = ln

	log.ApplicationLogger().Info("Control server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ApplicationLogger().Error("Control server stopped unexpectedly", "err", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts down the control server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown control server: %w", err)
	}

	log.ApplicationLogger().Info("Control server stopped", "addr", s.addr)
	return nil
}

func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	scopes, err := s.deps.Store.Scopes(ctx)
	if err != nil {
		writeError(w, &httpError{code: http.StatusNotImplemented, err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scopes": scopes})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if err := files.ValidateScope(scope); err != nil {
		writeError(w, badRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	doc, err := s.deps.Store.Get(ctx, scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scope": scope, "config": doc})
}

// handlePatchConfig merges the body into the stored document. With
// dry_run=true the merged result is returned without saving.
func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if err := files.ValidateScope(scope); err != nil {
		writeError(w, badRequest(err))
		return
	}
	patch, err := decodeBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	if dryRun {
		pruned := document.PruneNulls(patch)
		if pruned.IsEmpty() {
			writeError(w, files.ErrPatchRejected)
			return
		}
		cur, err := s.deps.Store.Get(ctx, scope)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"scope":   scope,
			"dry_run": true,
			"changed": document.Changes(cur, pruned),
			"config":  document.DeepMerge(cur, pruned),
		})
		return
	}

	res, err := s.deps.Store.Apply(ctx, scope, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	log.ApplicationLogger().Info("Config patched through control API", "scope", scope, "changed", res.Changed)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"scope":   scope,
		"changed": res.Changed,
		"config":  res.Document,
	})
}

func (s *Server) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if err := files.ValidateScope(scope); err != nil {
		writeError(w, badRequest(err))
		return
	}
	doc, err := decodeBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.deps.Store.Replace(ctx, scope, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	log.ApplicationLogger().Info("Config replaced through control API", "scope", scope, "changed", res.Changed)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"scope":   scope,
		"changed": res.Changed,
		"config":  res.Document,
	})
}

type sessionView struct {
	UserID       string    `json:"user_id"`
	GuildID      string    `json:"guild_id"`
	Category     string    `json:"category,omitempty"`
	Breadcrumb   []string  `json:"breadcrumb"`
	EditingField string    `json:"editing_field,omitempty"`
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	IdleSeconds  int64     `json:"idle_seconds"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, &httpError{code: http.StatusServiceUnavailable, err: errors.New("session manager unavailable")})
		return
	}

	guild := r.URL.Query().Get("guild")
	now := s.now()
	out := []sessionView{}
	for _, sess := range s.deps.Sessions.List() {
		if guild != "" && sess.GuildID != guild {
			continue
		}
		out = append(out, sessionView{
			UserID:       sess.UserID,
			GuildID:      sess.GuildID,
			Category:     sess.CurrentCategory,
			Breadcrumb:   sess.Breadcrumb,
			EditingField: sess.EditingField,
			StartTime:    sess.StartTime,
			LastActivity: sess.LastActivity,
			IdleSeconds:  int64(sess.Idle(now) / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": out})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, &httpError{code: http.StatusServiceUnavailable, err: errors.New("session manager unavailable")})
		return
	}
	user := r.PathValue("user")
	if !s.deps.Sessions.End(user) {
		writeError(w, &httpError{code: http.StatusNotFound, err: fmt.Errorf("no session for user %s", user)})
		return
	}
	log.ApplicationLogger().Info("Configuration session ended through control API", "user", user)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "user_id": user})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps.Sessions != nil {
		body["sessions"] = s.deps.Sessions.Len()
	}
	if s.deps.Outcomes != nil {
		body["outcomes"] = s.deps.Outcomes.Stats()
	}
	if s.deps.Tasks != nil {
		ts := s.deps.Tasks.Stats()
		body["tasks"] = map[string]any{
			"groups":           ts.GroupsCount,
			"inflight":         ts.InflightCount,
			"registered_types": ts.RegisteredTypes,
			"closed":           ts.RouterClosed,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (document.Map, error) {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes)
	defer r.Body.Close()

	m, err := document.Decode(r.Body)
	if err != nil {
		return nil, badRequest(fmt.Errorf("invalid payload: %w", err))
	}
	return m, nil
}

// statusFor maps store errors onto HTTP codes.
func statusFor(err error) int {
	var httpErr *httpError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.code
	case errors.Is(err, files.ErrPatchRejected), errors.Is(err, files.ErrInvalidScope):
		return http.StatusBadRequest
	case errors.Is(err, files.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.ErrorLoggerRaw().Error("Control request failed", "status", code, "err", err)
	}
	writeJSON(w, code, map[string]any{"status": "error", "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.ApplicationLogger().Error("Failed to encode control response", "err", err)
	}
}

func badRequest(err error) error {
	return &httpError{
		code: http.StatusBadRequest,
		err:  err,
	}
}

type httpError struct {
	code int
	err  error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

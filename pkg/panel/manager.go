package panel

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// EndReason says why a session went away.
type EndReason string

const (
	EndClosed   EndReason = "closed"
	EndExpired  EndReason = "expired"
	EndShutdown EndReason = "shutdown"
)

// EndHook observes removed sessions. Hooks run outside the manager lock.
type EndHook func(Session, EndReason)

// StartHook observes newly created sessions.
type StartHook func(Session)

// SessionConfig tunes a SessionManager.
type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
	RootLabel     string
	Now           func() time.Time
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Timeout:       5 * time.Minute,
		SweepInterval: 2 * time.Minute,
		RootLabel:     DefaultRootLabel,
		Now:           time.Now,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.RootLabel == "" {
		c.RootLabel = def.RootLabel
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c
}

// SessionManager owns every open configuration session, at most one per user.
// A session is invisible once Timeout has passed since its last activity and
// is reclaimed by the next sweep, so it never outlives Timeout+SweepInterval.
type SessionManager struct {
	cfg SessionConfig

	mu       sync.Mutex
	sessions map[string]*Session
	hooks    []EndHook
	starts   []StartHook
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	return &SessionManager{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

func (m *SessionManager) Config() SessionConfig { return m.cfg }

// OnEnd registers a hook called after a session is removed.
func (m *SessionManager) OnEnd(h EndHook) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// OnStart registers a hook called after Start created a session.
func (m *SessionManager) OnStart(h StartHook) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.starts = append(m.starts, h)
	m.mu.Unlock()
}

func (m *SessionManager) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastActivity) > m.cfg.Timeout
}

// Start opens a session for userID. When the user already has a live session
// it returns that session untouched and false. An expired session that the
// sweep has not reclaimed yet is replaced.
func (m *SessionManager) Start(userID, guildID string) (Session, bool) {
	now := m.cfg.Now()
	var stale *Session

	m.mu.Lock()
	if cur, ok := m.sessions[userID]; ok {
		if !m.expired(cur, now) {
			snap := cur.Clone()
			m.mu.Unlock()
			return snap, false
		}
		stale = cur
	}
	s := &Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		GuildID:         guildID,
		CurrentCategory: ViewMain,
		Breadcrumb:      []string{m.cfg.RootLabel},
		StartTime:       now,
		LastActivity:    now,
	}
	m.sessions[userID] = s
	snap := s.Clone()
	hooks := m.hooks
	starts := m.starts
	m.mu.Unlock()

	if stale != nil {
		m.fire(hooks, []Session{stale.Clone()}, EndExpired)
	}
	log.DiscordLogger().Debug("Configuration session started", "session", snap.ID, "user", userID, "guild", guildID)
	for _, h := range starts {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorLoggerRaw().Error("Session start hook panicked", "user", userID, "panic", r)
				}
			}()
			h(snap.Clone())
		}()
	}
	return snap, true
}

// Get returns the live session for userID and refreshes its activity.
func (m *SessionManager) Get(userID string) (Session, bool) {
	s, err := m.Update(userID, nil)
	return s, err == nil
}

// Peek returns the live session without refreshing its activity.
func (m *SessionManager) Peek(userID string) (Session, bool) {
	now := m.cfg.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || m.expired(s, now) {
		return Session{}, false
	}
	return s.Clone(), true
}

// Update runs fn on a copy of the user's session and stores the result.
// The activity timestamp is refreshed on success. If fn fails the stored
// session is left as it was. Returns ErrSessionExpired when there is no
// live session.
func (m *SessionManager) Update(userID string, fn func(*Session) error) (Session, error) {
	now := m.cfg.Now()

	m.mu.Lock()
	cur, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionExpired
	}
	if m.expired(cur, now) {
		delete(m.sessions, userID)
		hooks := m.hooks
		m.mu.Unlock()
		m.fire(hooks, []Session{cur.Clone()}, EndExpired)
		return Session{}, ErrSessionExpired
	}

	next := cur.Clone()
	if fn != nil {
		if err := fn(&next); err != nil {
			m.mu.Unlock()
			return cur.Clone(), err
		}
	}
	next.UserID = cur.UserID
	next.ID = cur.ID
	next.LastActivity = now
	m.sessions[userID] = &next
	snap := next.Clone()
	m.mu.Unlock()
	return snap, nil
}

// End removes the user's session. Ending a missing session is a no-op.
func (m *SessionManager) End(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	hooks := m.hooks
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.fire(hooks, []Session{s.Clone()}, EndClosed)
	return true
}

// SweepExpired removes every session idle for longer than the timeout at now.
func (m *SessionManager) SweepExpired(now time.Time) int {
	var removed []Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if m.expired(s, now) {
			removed = append(removed, s.Clone())
			delete(m.sessions, id)
		}
	}
	hooks := m.hooks
	m.mu.Unlock()

	if len(removed) > 0 {
		log.DiscordLogger().Info("Swept expired configuration sessions", "count", len(removed))
		m.fire(hooks, removed, EndExpired)
	}
	return len(removed)
}

// Sweep runs SweepExpired at the configured clock's current time.
func (m *SessionManager) Sweep() int { return m.SweepExpired(m.cfg.Now()) }

// Run sweeps on SweepInterval until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// List returns live sessions ordered by start time.
func (m *SessionManager) List() []Session {
	now := m.cfg.Now()
	m.mu.Lock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if !m.expired(s, now) {
			out = append(out, s.Clone())
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len counts stored sessions, including expired ones not yet swept.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops every session with EndShutdown and returns how many there were.
func (m *SessionManager) Close() int {
	m.mu.Lock()
	removed := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		removed = append(removed, s.Clone())
	}
	m.sessions = make(map[string]*Session)
	hooks := m.hooks
	m.mu.Unlock()
	m.fire(hooks, removed, EndShutdown)
	return len(removed)
}

func (m *SessionManager) fire(hooks []EndHook, sessions []Session, reason EndReason) {
	for _, s := range sessions {
		log.DiscordLogger().Debug("Configuration session ended", "session", s.ID, "user", s.UserID, "reason", string(reason))
		for _, h := range hooks {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.ErrorLoggerRaw().Error("Session end hook panicked", "user", s.UserID, "panic", r)
					}
				}()
				h(s, reason)
			}()
		}
	}
}

package interactions

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/cache"
	"github.com/small-frappuccino/guildpanel/pkg/discord/perf"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

// HandlerFunc handles one routed interaction.
type HandlerFunc func(ctx context.Context, in *Interaction) error

// Route is one entry of the ordered dispatch table.
type Route struct {
	Name string
	// Kinds limits the route to these interaction kinds; empty accepts all.
	Kinds   []Kind
	Match   Matcher
	Handler HandlerFunc
	// OpensSession routes run without an existing session.
	OpensSession bool
}

func (r *Route) accepts(kind Kind, customID string) bool {
	if len(r.Kinds) > 0 && !slices.Contains(r.Kinds, kind) {
		return false
	}
	return r.Match.Match(customID)
}

// SessionSource looks up live sessions, refreshing their activity.
type SessionSource interface {
	Get(userID string) (panel.Session, bool)
}

// Outcome reports what Handle did with an interaction.
type Outcome struct {
	Route string
	Err   error
	Class ErrorClass
}

// Router dispatches component and modal interactions to the first route
// that accepts them. Every failure ends here: the user gets at most one
// notice and the session is never closed by the router itself.
type Router struct {
	sessions SessionSource
	notifier Notifier
	timeout  time.Duration
	dedupe   *cache.TTLMap

	mu     sync.RWMutex
	routes []Route

	counts [ClassHandler + 1]atomic.Int64
}

type Option func(*Router)

// Interaction tokens are valid for 15 minutes, so a redelivery after that
// could not be answered anyway.
const defaultDedupeTTL = 15 * time.Minute

func newDedupe(ttl time.Duration, now func() time.Time) *cache.TTLMap {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return cache.NewTTLMap("interaction_ids", ttl, time.Minute, 0, cache.WithClock(now))
}

// WithDedupeTTL sets how long interaction IDs are remembered.
func WithDedupeTTL(ttl time.Duration, now func() time.Time) Option {
	return func(r *Router) {
		r.dedupe.Close()
		r.dedupe = newDedupe(ttl, now)
	}
}

// WithHandlerTimeout bounds the context given to handlers by HandleDiscord.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRouter(sessions SessionSource, notifier Notifier, opts ...Option) *Router {
	r := &Router{
		sessions: sessions,
		notifier: notifier,
		timeout:  15 * time.Second,
		dedupe:   newDedupe(defaultDedupeTTL, nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends routes to the table. Earlier routes win.
func (r *Router) Register(routes ...Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range routes {
		if rt.Match == nil || rt.Handler == nil {
			panic(fmt.Sprintf("interactions: route %q needs a matcher and a handler", rt.Name))
		}
		if rt.Name == "" {
			rt.Name = fmt.Sprintf("route-%d", len(r.routes))
		}
		r.routes = append(r.routes, rt)
	}
}

// Routes returns a copy of the table in match order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.routes...)
}

// Match returns the first route accepting kind and customID.
func (r *Router) Match(kind Kind, customID string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.routes {
		if r.routes[i].accepts(kind, customID) {
			rt := r.routes[i]
			return &rt, true
		}
	}
	return nil, false
}

// Handle routes in and converts every failure into an Outcome.
func (r *Router) Handle(ctx context.Context, in *Interaction) Outcome {
	if in == nil {
		return Outcome{}
	}
	if in.Answered || !r.firstDelivery(in.ID) {
		log.DiscordLogger().Debug("Dropping already handled interaction", "interaction", in.ID, "custom_id", in.CustomID)
		return r.finish(Outcome{Class: ClassDuplicate})
	}
	in.Answered = true

	route, ok := r.Match(in.Kind, in.CustomID)
	if !ok {
		return r.fail(ctx, in, Outcome{Err: fmt.Errorf("%s %q: %w", in.Kind, in.CustomID, ErrRoutingMiss)})
	}
	out := Outcome{Route: route.Name}

	if !route.OpensSession {
		s, err := r.session(in)
		if err != nil {
			out.Err = err
			return r.fail(ctx, in, out)
		}
		in.Session = &s
	}

	if err := r.invoke(ctx, route, in); err != nil {
		out.Err = err
		return r.fail(ctx, in, out)
	}
	return r.finish(out)
}

func (r *Router) session(in *Interaction) (panel.Session, error) {
	if r.sessions == nil {
		return panel.Session{}, panel.ErrSessionExpired
	}
	s, ok := r.sessions.Get(in.UserID)
	if !ok {
		return panel.Session{}, panel.ErrSessionExpired
	}
	if in.GuildID != "" && s.GuildID != in.GuildID {
		return panel.Session{}, fmt.Errorf("session is for guild %s: %w", s.GuildID, panel.ErrSessionExpired)
	}
	return s, nil
}

func (r *Router) invoke(ctx context.Context, route *Route, in *Interaction) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Route: route.Name, Panic: p}
		}
	}()
	if herr := route.Handler(ctx, in); herr != nil {
		return &HandlerError{Route: route.Name, Err: herr}
	}
	return nil
}

func (r *Router) fail(ctx context.Context, in *Interaction, out Outcome) Outcome {
	out.Class = Classify(out.Err)
	category := ""
	if in.Session != nil {
		category = in.Session.CurrentCategory
	}

	if out.Class.Routine() {
		log.DiscordLogger().Info("Interaction not applied",
			"class", out.Class.String(),
			"route", out.Route,
			"custom_id", in.CustomID,
			"user", in.UserID,
			"category", category,
			"err", out.Err,
		)
	} else {
		log.ErrorLoggerRaw().Error("Interaction handler failed",
			"class", out.Class.String(),
			"route", out.Route,
			"custom_id", in.CustomID,
			"user", in.UserID,
			"guild", in.GuildID,
			"category", category,
			"err", out.Err,
		)
	}

	if n, ok := NoticeFor(out.Err, out.Class); ok && r.notifier != nil {
		if err := r.notifier.Notify(ctx, in, n); err != nil {
			log.DiscordLogger().Warn("Failed to send interaction notice", "custom_id", in.CustomID, "user", in.UserID, "err", err)
		}
	}
	return r.finish(out)
}

func (r *Router) finish(out Outcome) Outcome {
	r.counts[out.Class].Add(1)
	return out
}

// firstDelivery records id and reports whether it was new.
func (r *Router) firstDelivery(id string) bool {
	if id == "" {
		return true
	}
	return r.dedupe.SetIfAbsent(id, struct{}{}, 0)
}

// Close stops the dedupe cleanup goroutine.
func (r *Router) Close() { r.dedupe.Close() }

// Stats returns how many interactions ended in each class.
func (r *Router) Stats() map[string]int64 {
	stats := make(map[string]int64, len(r.counts)+1)
	for c := range r.counts {
		if n := r.counts[c].Load(); n > 0 {
			stats[ErrorClass(c).String()] = n
		}
	}
	stats["dedupe_entries"] = int64(r.dedupe.Size())
	return stats
}

// HandleDiscord is registered with discordgo's AddHandler.
func (r *Router) HandleDiscord(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	in := FromDiscord(i)
	if in == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	done := perf.StartGatewayEvent("interaction_create", slog.String("custom_id", in.CustomID), slog.String("guild", in.GuildID))
	defer done()
	r.Handle(ctx, in)
}

package interactions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, _ *Interaction, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

var idSeq int

func click(userID, customID string) *Interaction {
	idSeq++
	return &Interaction{
		ID:       fmt.Sprintf("i-%d", idSeq),
		Kind:     KindButton,
		CustomID: customID,
		UserID:   userID,
		GuildID:  "g1",
	}
}

func newTestRouter(t *testing.T) (*Router, *panel.SessionManager, *recordingNotifier) {
	t.Helper()
	sessions := panel.NewSessionManager(panel.DefaultSessionConfig())
	notifier := &recordingNotifier{}
	r := NewRouter(sessions, notifier)
	t.Cleanup(r.Close)
	return r, sessions, notifier
}

func TestFirstMatchWins(t *testing.T) {
	r, sessions, _ := newTestRouter(t)
	sessions.Start("u1", "g1")

	var hit []string
	record := func(name string) HandlerFunc {
		return func(context.Context, *Interaction) error {
			hit = append(hit, name)
			return nil
		}
	}
	r.Register(
		Route{Name: "exact-back", Match: Exact("cfg:back"), Handler: record("exact-back")},
		Route{Name: "edit-prefix", Match: Prefix("cfg:edit:"), Handler: record("edit-prefix")},
		Route{Name: "shadowed", Match: Exact("cfg:edit:general.prefix"), Handler: record("shadowed")},
		Route{Name: "catch-all", Match: Prefix("cfg:"), Handler: record("catch-all")},
	)

	for _, id := range []string{"cfg:back", "cfg:edit:general.prefix", "cfg:home"} {
		out := r.Handle(context.Background(), click("u1", id))
		require.NoError(t, out.Err)
	}
	assert.Equal(t, []string{"exact-back", "edit-prefix", "catch-all"}, hit)

	route, ok := r.Match(KindButton, "cfg:edit:x")
	require.True(t, ok)
	assert.Equal(t, "edit-prefix", route.Name)
	assert.Len(t, r.Routes(), 4)
}

func TestKindsFilterRoutes(t *testing.T) {
	r, sessions, _ := newTestRouter(t)
	sessions.Start("u1", "g1")

	var got string
	r.Register(
		Route{Name: "modal", Kinds: []Kind{KindModalSubmit}, Match: Prefix("cfg:modal:"), Handler: func(context.Context, *Interaction) error { got = "modal"; return nil }},
		Route{Name: "button", Kinds: []Kind{KindButton}, Match: Prefix("cfg:modal:"), Handler: func(context.Context, *Interaction) error { got = "button"; return nil }},
	)

	in := click("u1", "cfg:modal:general.prefix")
	out := r.Handle(context.Background(), in)
	require.NoError(t, out.Err)
	assert.Equal(t, "button", got)

	in = click("u1", "cfg:modal:general.prefix")
	in.Kind = KindModalSubmit
	r.Handle(context.Background(), in)
	assert.Equal(t, "modal", got)
}

func TestRoutingMissNotifiesOnce(t *testing.T) {
	r, _, notifier := newTestRouter(t)

	out := r.Handle(context.Background(), click("u1", "unknown:thing"))
	assert.ErrorIs(t, out.Err, ErrRoutingMiss)
	assert.Equal(t, ClassRoutingMiss, out.Class)
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, msgRoutingMiss, notifier.all()[0].Message)
}

func TestSessionGate(t *testing.T) {
	r, sessions, notifier := newTestRouter(t)

	called := false
	r.Register(
		Route{Name: "open", Match: Exact("cfg:open"), OpensSession: true, Handler: func(ctx context.Context, in *Interaction) error {
			if _, ok := sessions.Start(in.UserID, in.GuildID); !ok {
				return panel.ErrSessionConflict
			}
			return nil
		}},
		Route{Name: "home", Match: Exact("cfg:home"), Handler: func(ctx context.Context, in *Interaction) error {
			called = true
			require.NotNil(t, in.Session)
			assert.Equal(t, "u1", in.Session.UserID)
			return nil
		}},
	)

	out := r.Handle(context.Background(), click("u1", "cfg:home"))
	assert.ErrorIs(t, out.Err, panel.ErrSessionExpired)
	assert.Equal(t, ClassSessionExpired, out.Class)
	assert.False(t, called)

	out = r.Handle(context.Background(), click("u1", "cfg:open"))
	require.NoError(t, out.Err)

	out = r.Handle(context.Background(), click("u1", "cfg:open"))
	assert.Equal(t, ClassSessionConflict, out.Class)

	out = r.Handle(context.Background(), click("u1", "cfg:home"))
	require.NoError(t, out.Err)
	assert.True(t, called)

	other := click("u1", "cfg:home")
	other.GuildID = "g2"
	out = r.Handle(context.Background(), other)
	assert.Equal(t, ClassSessionExpired, out.Class)

	notices := notifier.all()
	require.Len(t, notices, 3)
	assert.Equal(t, msgSessionExpired, notices[0].Message)
	assert.Equal(t, msgSessionConflict, notices[1].Message)
}

func TestDuplicateInteractionsAreDropped(t *testing.T) {
	r, sessions, notifier := newTestRouter(t)
	sessions.Start("u1", "g1")

	calls := 0
	r.Register(Route{Name: "home", Match: Exact("cfg:home"), Handler: func(context.Context, *Interaction) error {
		calls++
		return nil
	}})

	in := click("u1", "cfg:home")
	first := r.Handle(context.Background(), in)
	replay := *in
	replay.Answered = false
	second := r.Handle(context.Background(), &replay)

	assert.Equal(t, ClassNone, first.Class)
	assert.Equal(t, ClassDuplicate, second.Class)
	assert.Equal(t, 1, calls)

	answered := click("u1", "cfg:home")
	answered.Answered = true
	assert.Equal(t, ClassDuplicate, r.Handle(context.Background(), answered).Class)
	assert.Equal(t, 1, calls)
	assert.Empty(t, notifier.all())
	assert.Equal(t, int64(2), r.Stats()["duplicate"])
}

func TestDedupeExpires(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(0, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r := NewRouter(nil, nil, WithDedupeTTL(time.Minute, clock))
	t.Cleanup(r.Close)

	assert.True(t, r.firstDelivery("a"))
	assert.False(t, r.firstDelivery("a"))
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	assert.True(t, r.firstDelivery("a"))
	assert.True(t, r.firstDelivery(""))
	assert.Equal(t, int64(1), r.Stats()["dedupe_entries"])
}

func TestHandlerPanicKeepsSession(t *testing.T) {
	r, sessions, notifier := newTestRouter(t)
	sessions.Start("u1", "g1")

	r.Register(Route{Name: "boom", Match: Exact("cfg:boom"), Handler: func(context.Context, *Interaction) error {
		panic("nil map write")
	}})

	out := r.Handle(context.Background(), click("u1", "cfg:boom"))
	assert.Equal(t, ClassHandler, out.Class)
	var he *HandlerError
	require.ErrorAs(t, out.Err, &he)
	assert.Equal(t, "boom", he.Route)
	assert.Equal(t, "nil map write", he.Panic)

	_, ok := sessions.Peek("u1")
	assert.True(t, ok, "session must survive a handler panic")
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, NoticeError, notifier.all()[0].Level)
}

func TestErrorClassesAndNotices(t *testing.T) {
	persistErr := &files.PersistenceError{Scope: "g1", Backend: "json", Cause: errors.New("disk full")}

	tests := []struct {
		name    string
		err     error
		class   ErrorClass
		notice  bool
		message string
	}{
		{name: "patch rejected", err: fmt.Errorf("apply: %w", files.ErrPatchRejected), class: ClassPatchRejected},
		{name: "persistence", err: persistErr, class: ClassPersistence, notice: true, message: msgPersistence},
		{name: "user error", err: NewUserError("%q is not a number", "abc"), class: ClassInvalidInput, notice: true, message: `"abc" is not a number`},
		{name: "plain error", err: errors.New("discord 500"), class: ClassHandler, notice: true, message: msgHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sessions, notifier := newTestRouter(t)
			sessions.Start("u1", "g1")
			r.Register(Route{Name: "x", Match: Exact("cfg:x"), Handler: func(context.Context, *Interaction) error { return tt.err }})

			out := r.Handle(context.Background(), click("u1", "cfg:x"))
			assert.Equal(t, tt.class, out.Class)
			assert.ErrorIs(t, out.Err, tt.err)

			notices := notifier.all()
			if !tt.notice {
				assert.Empty(t, notices)
				return
			}
			require.Len(t, notices, 1)
			assert.Equal(t, tt.message, notices[0].Message)
			_, ok := sessions.Peek("u1")
			assert.True(t, ok)
		})
	}
}

func TestRegisterRejectsIncompleteRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t)
	assert.Panics(t, func() { r.Register(Route{Name: "nohandler", Match: Exact("x")}) })
	assert.Panics(t, func() {
		r.Register(Route{Name: "nomatch", Handler: func(context.Context, *Interaction) error { return nil }})
	})
}

func TestFromDiscord(t *testing.T) {
	button := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "1",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Message:   &discordgo.Message{ID: "m1"},
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      "cfg:category",
			ComponentType: discordgo.SelectMenuComponent,
			Values:        []string{"tickets"},
		},
	}}
	in := FromDiscord(button)
	require.NotNil(t, in)
	assert.Equal(t, KindSelect, in.Kind)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "m1", in.MessageID)
	assert.Equal(t, "tickets", in.FirstValue())

	modal := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:   "2",
		Type: discordgo.InteractionModalSubmit,
		User: &discordgo.User{ID: "u2"},
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: "cfg:modal:general.prefix",
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "value", Value: "!"},
				}},
			},
		},
	}}
	in = FromDiscord(modal)
	require.NotNil(t, in)
	assert.Equal(t, KindModalSubmit, in.Kind)
	assert.Equal(t, "u2", in.UserID)
	assert.Equal(t, "!", in.Field("value"))

	command := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: "config"},
	}}
	assert.Nil(t, FromDiscord(command))
}

func TestKindOfSelectVariants(t *testing.T) {
	for ct, want := range map[discordgo.ComponentType]Kind{
		discordgo.ButtonComponent:            KindButton,
		discordgo.ChannelSelectMenuComponent: KindChannelSelect,
		discordgo.RoleSelectMenuComponent:    KindRoleSelect,
		discordgo.UserSelectMenuComponent:    KindUnknown,
	} {
		i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{ComponentType: ct},
		}}
		assert.Equal(t, want, KindOf(i), "component type %d", ct)
	}
}

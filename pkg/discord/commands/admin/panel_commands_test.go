package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

type responseRecorder struct {
	mu        sync.Mutex
	responses []discordgo.InteractionResponse
}

func (r *responseRecorder) last(t *testing.T) discordgo.InteractionResponse {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		t.Fatal("expected an interaction response")
	}
	return r.responses[len(r.responses)-1]
}

type fixedStats map[string]int64

func (f fixedStats) Stats() map[string]int64 { return f }

func newTestRouter(t *testing.T) (*core.CommandRouter, *panel.SessionManager, *files.ConfigStore, *responseRecorder) {
	t.Helper()
	rec := &responseRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/callback") {
			var resp discordgo.InteractionResponse
			_ = json.NewDecoder(r.Body).Decode(&resp)
			rec.mu.Lock()
			rec.responses = append(rec.responses, resp)
			rec.mu.Unlock()
		}
		if strings.Contains(r.URL.Path, "/guilds/") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"g1","owner_id":"owner"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	oldAPI := discordgo.EndpointAPI
	oldWebhooks := discordgo.EndpointWebhooks
	discordgo.EndpointAPI = server.URL + "/"
	discordgo.EndpointWebhooks = server.URL + "/webhooks/"
	t.Cleanup(func() {
		discordgo.EndpointAPI = oldAPI
		discordgo.EndpointWebhooks = oldWebhooks
	})

	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	store := files.NewConfigStore(files.NewMemoryBackend())
	sessions := panel.NewSessionManager(panel.DefaultSessionConfig())
	router := core.NewCommandRouter(session, store)
	NewPanelCommands(sessions, store, fixedStats{"none": 3, "session_expired": 1}).RegisterCommands(router)
	return router, sessions, store, rec
}

func runPanel(router *core.CommandRouter, sub string, options ...*discordgo.ApplicationCommandInteractionDataOption) {
	router.HandleInteraction(nil, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:      "interaction-" + sub,
		AppID:   "app",
		Token:   "token",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "admin"}, Permissions: discordgo.PermissionManageGuild},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "panel",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: options},
			},
		},
	}})
}

func TestPanelStatusReportsCounters(t *testing.T) {
	router, sessions, _, rec := newTestRouter(t)
	sessions.Start("u1", "g1")

	runPanel(router, "status")

	resp := rec.last(t)
	if resp.Data == nil || len(resp.Data.Embeds) != 1 {
		t.Fatalf("expected one embed, got %+v", resp.Data)
	}
	var text strings.Builder
	for _, f := range resp.Data.Embeds[0].Fields {
		text.WriteString(f.Name + "=" + f.Value + "\n")
	}
	for _, want := range []string{"Open panels=1", "session_expired: 1", "none: 3"} {
		if !strings.Contains(text.String(), want) {
			t.Fatalf("status embed missing %q:\n%s", want, text.String())
		}
	}
}

func TestPanelSessionsListsOnlyThisGuild(t *testing.T) {
	router, sessions, _, rec := newTestRouter(t)
	sessions.Start("u1", "g1")
	sessions.Start("u2", "other")

	runPanel(router, "sessions")

	resp := rec.last(t)
	if resp.Data == nil || len(resp.Data.Embeds) != 1 {
		t.Fatalf("expected one embed, got %+v", resp.Data)
	}
	desc := resp.Data.Embeds[0].Description
	if !strings.Contains(desc, "<@u1>") || strings.Contains(desc, "<@u2>") {
		t.Fatalf("unexpected session list: %q", desc)
	}
}

func TestPanelEndClosesMemberSession(t *testing.T) {
	router, sessions, _, rec := newTestRouter(t)
	sessions.Start("u1", "g1")

	runPanel(router, "end", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "member", Type: discordgo.ApplicationCommandOptionUser, Value: "u1",
	})

	if _, ok := sessions.Peek("u1"); ok {
		t.Fatal("expected session to be closed")
	}
	if got := rec.last(t).Data.Content; !strings.Contains(got, "<@u1>") {
		t.Fatalf("unexpected content: %q", got)
	}

	runPanel(router, "end", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "member", Type: discordgo.ApplicationCommandOptionUser, Value: "u1",
	})
	if got := rec.last(t).Data.Content; !strings.Contains(got, "no configuration panel") {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestPanelLookupReadsStoredValue(t *testing.T) {
	router, _, store, rec := newTestRouter(t)
	if _, err := store.Apply(context.Background(), "g1", document.PatchAt(document.MustPath("tickets.supportRole"), document.String("456"))); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	runPanel(router, "lookup", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "path", Type: discordgo.ApplicationCommandOptionString, Value: "tickets.supportRole",
	})
	if got := rec.last(t).Data.Content; !strings.Contains(got, "`456`") {
		t.Fatalf("unexpected content: %q", got)
	}

	runPanel(router, "lookup", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "path", Type: discordgo.ApplicationCommandOptionString, Value: "tickets.logChannel",
	})
	if got := rec.last(t).Data.Content; !strings.Contains(got, "is not set") {
		t.Fatalf("unexpected content: %q", got)
	}
}

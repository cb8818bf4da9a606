package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/theme"
)

const lookupTimeout = 5 * time.Second

// StatsSource reports counters by name, like the interaction router's
// outcome classes.
type StatsSource interface {
	Stats() map[string]int64
}

// PanelCommands is the /panel group for inspecting configuration sessions
// and reading settings without opening the panel.
type PanelCommands struct {
	sessions *panel.SessionManager
	store    *files.ConfigStore
	outcomes StatsSource
	now      func() time.Time
}

func NewPanelCommands(sessions *panel.SessionManager, store *files.ConfigStore, outcomes StatsSource) *PanelCommands {
	return &PanelCommands{sessions: sessions, store: store, outcomes: outcomes, now: time.Now}
}

// RegisterCommands registers /panel with the router.
func (pc *PanelCommands) RegisterCommands(router *core.CommandRouter) {
	group := core.NewGroupCommand("panel", "Inspect configuration panels and settings", router.GetPermissionChecker())
	group.AddSubCommand(&statusCommand{pc: pc})
	group.AddSubCommand(&sessionsCommand{pc: pc})
	group.AddSubCommand(&endCommand{pc: pc})
	group.AddSubCommand(&lookupCommand{pc: pc})
	router.RegisterCommand(group)
}

type statusCommand struct{ pc *PanelCommands }

func (c *statusCommand) Name() string        { return "status" }
func (c *statusCommand) Description() string { return "Show open panels and interaction outcomes" }
func (c *statusCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (c *statusCommand) RequiresGuild() bool       { return true }
func (c *statusCommand) RequiresPermissions() bool { return true }

func (c *statusCommand) Handle(ctx *core.Context) error {
	cfg := c.pc.sessions.Config()
	embed := &discordgo.MessageEmbed{
		Title: "📊 Panel status",
		Color: theme.Info(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Open panels", Value: fmt.Sprintf("%d", c.pc.sessions.Len()), Inline: true},
			{Name: "Timeout", Value: cfg.Timeout.String(), Inline: true},
			{Name: "Sweep interval", Value: cfg.SweepInterval.String(), Inline: true},
		},
		Timestamp: c.pc.now().UTC().Format(time.RFC3339),
	}
	if c.pc.outcomes != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Interaction outcomes",
			Value: formatCounters(c.pc.outcomes.Stats()),
		})
	}
	return ctx.Responder.Message(ctx.Interaction, embed, nil, true)
}

func formatCounters(stats map[string]int64) string {
	if len(stats) == 0 {
		return "No interactions handled yet"
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("• %s: %d", k, stats[k])
	}
	return strings.Join(lines, "\n")
}

type sessionsCommand struct{ pc *PanelCommands }

func (c *sessionsCommand) Name() string        { return "sessions" }
func (c *sessionsCommand) Description() string { return "List configuration panels open in this server" }
func (c *sessionsCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (c *sessionsCommand) RequiresGuild() bool       { return true }
func (c *sessionsCommand) RequiresPermissions() bool { return true }

func (c *sessionsCommand) Handle(ctx *core.Context) error {
	now := c.pc.now()
	var lines []string
	for _, s := range c.pc.sessions.List() {
		if s.GuildID != ctx.GuildID {
			continue
		}
		lines = append(lines, fmt.Sprintf("• <@%s> on **%s**, idle %s",
			s.UserID, s.CurrentLabel(), s.Idle(now).Truncate(time.Second)))
	}
	if len(lines) == 0 {
		return ctx.Responder.Ephemeral(ctx.Interaction, "No configuration panels are open in this server.")
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🗂️ Open panels",
		Description: strings.Join(lines, "\n"),
		Color:       theme.PanelHome(),
	}
	return ctx.Responder.Message(ctx.Interaction, embed, nil, true)
}

type endCommand struct{ pc *PanelCommands }

func (c *endCommand) Name() string        { return "end" }
func (c *endCommand) Description() string { return "Close a member's configuration panel" }
func (c *endCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "member",
			Description: "Member whose panel should be closed",
			Required:    true,
		},
	}
}
func (c *endCommand) RequiresGuild() bool       { return true }
func (c *endCommand) RequiresPermissions() bool { return true }

func (c *endCommand) Handle(ctx *core.Context) error {
	var userID string
	for _, opt := range core.GetSubCommandOptions(ctx.Interaction) {
		if opt.Name == "member" && opt.Type == discordgo.ApplicationCommandOptionUser {
			if u := opt.UserValue(nil); u != nil {
				userID = u.ID
			}
		}
	}
	if userID == "" {
		return core.NewCommandError("Pick a member.", true)
	}

	s, ok := c.pc.sessions.Peek(userID)
	if !ok || s.GuildID != ctx.GuildID {
		return core.NewCommandError("That member has no configuration panel open in this server.", true)
	}
	c.pc.sessions.End(userID)
	log.DiscordLogger().Info("Configuration session ended by administrator", "guild", ctx.GuildID, "user", userID, "by", ctx.UserID)
	return ctx.Responder.Success(ctx.Interaction, fmt.Sprintf("Closed the configuration panel of <@%s>.", userID))
}

type lookupCommand struct{ pc *PanelCommands }

func (c *lookupCommand) Name() string        { return "lookup" }
func (c *lookupCommand) Description() string { return "Show one stored setting, e.g. tickets.supportRole" }
func (c *lookupCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "path",
			Description: "Dotted setting path",
			Required:    true,
		},
	}
}
func (c *lookupCommand) RequiresGuild() bool       { return true }
func (c *lookupCommand) RequiresPermissions() bool { return true }

func (c *lookupCommand) Handle(ctx *core.Context) error {
	path := strings.TrimSpace(core.StringOption(core.GetSubCommandOptions(ctx.Interaction), "path"))
	if _, err := document.ParsePath(path); err != nil {
		return core.NewCommandError(fmt.Sprintf("`%s` is not a valid setting path.", path), true)
	}

	rctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	v, ok, err := c.pc.store.Lookup(rctx, ctx.GuildID, path)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", path, err)
	}
	if !ok {
		return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("`%s` is not set.", path))
	}
	return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("`%s` = `%s`", path, v.Text()))
}

package config

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

const commandTimeout = 5 * time.Second

// Command is the /config slash command that opens the panel.
type Command struct {
	panel *Panel
}

func NewCommand(p *Panel) *Command {
	return &Command{panel: p}
}

func (c *Command) Name() string        { return "config" }
func (c *Command) Description() string { return "Open the server configuration panel" }
func (c *Command) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "restart",
			Description: "Close your open panel first and start over",
		},
	}
}
func (c *Command) RequiresGuild() bool       { return true }
func (c *Command) RequiresPermissions() bool { return true }

func (c *Command) Handle(ctx *core.Context) error {
	if restartRequested(ctx.Interaction) && c.panel.sessions.End(ctx.UserID) {
		log.DiscordLogger().Info("Configuration session restarted", "user", ctx.UserID, "guild", ctx.GuildID)
	}

	s, err := c.panel.Open(ctx.UserID, ctx.GuildID, ctx.Interaction.ChannelID, "")
	if errors.Is(err, panel.ErrSessionConflict) {
		return core.NewCommandError(msgConflict, true)
	}
	if err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	embed, components, err := c.panel.View(rctx, s)
	if err == nil {
		err = ctx.Responder.Message(ctx.Interaction, embed, components, true)
	}
	if err != nil {
		// Nothing is on screen, so the session would only block a retry.
		c.panel.sessions.End(ctx.UserID)
		return err
	}
	return nil
}

func restartRequested(i *discordgo.InteractionCreate) bool {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return false
	}
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "restart" && opt.Type == discordgo.ApplicationCommandOptionBoolean {
			return opt.BoolValue()
		}
	}
	return false
}

package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/admin"
	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/config"
	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/discord/interactions"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

// CommandHandler coordinates slash commands and panel interactions.
type CommandHandler struct {
	session        *discordgo.Session
	store          *files.ConfigStore
	sessions       *panel.SessionManager
	commandManager *core.CommandManager
	router         *interactions.Router
	panel          *config.Panel
}

// NewCommandHandler builds the command registry and the interaction router.
// Nothing talks to Discord until SetupCommands.
func NewCommandHandler(
	session *discordgo.Session,
	store *files.ConfigStore,
	sessions *panel.SessionManager,
	routerOpts ...interactions.Option,
) *CommandHandler {
	ch := &CommandHandler{
		session:        session,
		store:          store,
		sessions:       sessions,
		commandManager: core.NewCommandManager(session, store),
		router:         interactions.NewRouter(sessions, interactions.NewDiscordNotifier(session), routerOpts...),
		panel:          config.NewPanel(session, store, sessions),
	}

	commandRouter := ch.commandManager.GetRouter()
	ch.panel.Register(commandRouter, ch.router)
	admin.NewPanelCommands(sessions, store, ch.router).RegisterCommands(commandRouter)
	return ch
}

// SetupCommands installs the gateway handlers and syncs commands with Discord.
func (ch *CommandHandler) SetupCommands() error {
	log.ApplicationLogger().Info("Setting up bot commands...")

	ch.session.AddHandler(ch.router.HandleDiscord)
	if err := ch.commandManager.SetupCommands(); err != nil {
		return fmt.Errorf("failed to setup commands: %w", err)
	}

	log.ApplicationLogger().Info("Bot commands setup completed successfully", "routes", len(ch.router.Routes()))
	return nil
}

// Shutdown closes every open panel session.
func (ch *CommandHandler) Shutdown() error {
	ch.router.Close()
	n := ch.sessions.Close()
	log.ApplicationLogger().Info("Command handler stopped", "sessions_closed", n)
	return nil
}

func (ch *CommandHandler) GetCommandManager() *core.CommandManager { return ch.commandManager }

func (ch *CommandHandler) Router() *interactions.Router { return ch.router }

func (ch *CommandHandler) Panel() *config.Panel { return ch.panel }

package core

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// CommandRouter routes slash commands to registered commands.
type CommandRouter struct {
	registry       *CommandRegistry
	contextBuilder *ContextBuilder
	responder      *Responder
	permChecker    *PermissionChecker
}

func NewCommandRouter(session *discordgo.Session, store *files.ConfigStore) *CommandRouter {
	responder := NewResponder(session)
	permChecker := NewPermissionChecker(session)
	return &CommandRouter{
		registry:       NewCommandRegistry(),
		contextBuilder: NewContextBuilder(session, store, permChecker, responder),
		responder:      responder,
		permChecker:    permChecker,
	}
}

func (cr *CommandRouter) RegisterCommand(cmd Command) {
	cr.registry.Register(cmd)
}

func (cr *CommandRouter) RegisterSubCommand(parentName string, subcmd SubCommand) {
	cr.registry.RegisterSubCommand(parentName, subcmd)
}

// HandleInteraction handles slash commands; other interaction types are
// left to the component router.
func (cr *CommandRouter) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !IsSlashCommandInteraction(i) {
		return
	}
	cr.handleSlashCommand(i)
}

func (cr *CommandRouter) handleSlashCommand(i *discordgo.InteractionCreate) {
	ctx := cr.contextBuilder.BuildContext(i)
	commandName := i.ApplicationCommandData().Name
	logger := log.DiscordLogger().With("command", GetCommandPath(i), "guild", ctx.GuildID, "user", ctx.UserID)

	logger.Debug("Processing slash command")

	cmd, exists := cr.registry.GetCommand(commandName)
	if !exists {
		logger.Warn("Command not found")
		_ = cr.responder.Error(i, "Command not found")
		return
	}

	if cmd.RequiresGuild() && ctx.GuildID == "" {
		logger.Warn("Command used outside of guild")
		_ = cr.responder.Error(i, "This command can only be used in a server")
		return
	}

	if cmd.RequiresPermissions() && !cr.permChecker.HasPermission(ctx) {
		logger.Warn("User without permission tried to use command")
		_ = cr.responder.Error(i, "You need the Manage Server permission to use this command")
		return
	}

	logger.Info("Executing command")
	if err := cmd.Handle(ctx); err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			logger.Info("Command rejected", "reason", cmdErr.Message)
			if cmdErr.Ephemeral {
				_ = cr.responder.Error(i, cmdErr.Message)
			} else {
				_ = cr.responder.send(i, cmdErr.Message, ResponseError, false)
			}
			return
		}
		log.ErrorLoggerRaw().Error("Command execution failed", "command", commandName, "guild", ctx.GuildID, "user", ctx.UserID, "err", err)
		_ = cr.responder.Error(i, "An error occurred while executing the command")
	}
}

func (cr *CommandRouter) GetRegistry() *CommandRegistry { return cr.registry }

func (cr *CommandRouter) GetPermissionChecker() *PermissionChecker { return cr.permChecker }

// CommandManager syncs registered commands with Discord.
type CommandManager struct {
	session *discordgo.Session
	router  *CommandRouter
}

func NewCommandManager(session *discordgo.Session, store *files.ConfigStore) *CommandManager {
	return &CommandManager{
		session: session,
		router:  NewCommandRouter(session, store),
	}
}

func (cm *CommandManager) GetRouter() *CommandRouter {
	return cm.router
}

// desired builds the application command definition for cmd.
func desired(cmd Command) *discordgo.ApplicationCommand {
	ac := &discordgo.ApplicationCommand{
		Name:        cmd.Name(),
		Description: cmd.Description(),
		Options:     cmd.Options(),
	}
	if cmd.RequiresPermissions() {
		perms := ConfigPermission
		ac.DefaultMemberPermissions = &perms
	}
	if cmd.RequiresGuild() {
		dm := false
		ac.DMPermission = &dm
	}
	return ac
}

// SetupCommands registers the interaction handler and creates, updates or
// removes global commands so Discord matches the registry.
func (cm *CommandManager) SetupCommands() error {
	cm.session.AddHandler(cm.router.HandleInteraction)
	logger := log.ApplicationLogger().With("component", "command_manager")

	appID := cm.session.State.User.ID
	registered, err := cm.session.ApplicationCommands(appID, "")
	if err != nil {
		return fmt.Errorf("failed to fetch registered commands: %w", err)
	}

	regByName := make(map[string]*discordgo.ApplicationCommand, len(registered))
	for _, rc := range registered {
		regByName[rc.Name] = rc
	}

	codeCommands := cm.router.registry.GetAllCommands()
	created, updated, unchanged := 0, 0, 0
	for name, cmd := range codeCommands {
		want := desired(cmd)
		if existing, ok := regByName[name]; ok {
			if CompareCommands(existing, want) {
				logger.Debug("Command unchanged, skipping", "command", name)
				unchanged++
				continue
			}
			if _, err := cm.session.ApplicationCommandEdit(appID, "", existing.ID, want); err != nil {
				return fmt.Errorf("error updating command '%s': %w", name, err)
			}
			logger.Info("Command updated", "command", name)
			updated++
			continue
		}
		if _, err := cm.session.ApplicationCommandCreate(appID, "", want); err != nil {
			return fmt.Errorf("error creating command '%s': %w", name, err)
		}
		logger.Info("Command created", "command", name)
		created++
	}

	deleted := 0
	for _, rc := range registered {
		if _, exists := codeCommands[rc.Name]; exists {
			continue
		}
		if err := cm.session.ApplicationCommandDelete(appID, "", rc.ID); err != nil {
			logger.Warn("Error removing orphan command", "command", rc.Name, "err", err)
			continue
		}
		logger.Info("Orphan command removed", "command", rc.Name)
		deleted++
	}

	logger.Info("Command synchronization completed",
		"created", created,
		"updated", updated,
		"deleted", deleted,
		"unchanged", unchanged,
		"total", len(codeCommands),
	)
	return nil
}

// GroupCommand is a command made of subcommands.
type GroupCommand struct {
	name        string
	description string
	subcommands map[string]SubCommand
	order       []string
	checker     *PermissionChecker
}

func NewGroupCommand(name, description string, checker *PermissionChecker) *GroupCommand {
	return &GroupCommand{
		name:        name,
		description: description,
		subcommands: make(map[string]SubCommand),
		checker:     checker,
	}
}

func (gc *GroupCommand) AddSubCommand(subcmd SubCommand) {
	if _, exists := gc.subcommands[subcmd.Name()]; !exists {
		gc.order = append(gc.order, subcmd.Name())
	}
	gc.subcommands[subcmd.Name()] = subcmd
}

func (gc *GroupCommand) Name() string        { return gc.name }
func (gc *GroupCommand) Description() string { return gc.description }

// Options lists subcommands in registration order so command sync sees a
// stable definition.
func (gc *GroupCommand) Options() []*discordgo.ApplicationCommandOption {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(gc.order))
	for _, name := range gc.order {
		subcmd := gc.subcommands[name]
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        subcmd.Name(),
			Description: subcmd.Description(),
			Options:     subcmd.Options(),
		})
	}
	return options
}

func (gc *GroupCommand) RequiresGuild() bool {
	for _, subcmd := range gc.subcommands {
		if subcmd.RequiresGuild() {
			return true
		}
	}
	return false
}

func (gc *GroupCommand) RequiresPermissions() bool {
	for _, subcmd := range gc.subcommands {
		if subcmd.RequiresPermissions() {
			return true
		}
	}
	return false
}

// Handle dispatches to the invoked subcommand.
func (gc *GroupCommand) Handle(ctx *Context) error {
	subCommandName := GetSubCommandName(ctx.Interaction)
	if subCommandName == "" {
		return NewCommandError("No subcommand specified", true)
	}

	subcmd, exists := gc.subcommands[subCommandName]
	if !exists {
		return NewCommandError("Unknown subcommand", true)
	}

	if subcmd.RequiresGuild() && ctx.GuildID == "" {
		return NewCommandError("This subcommand can only be used in a server", true)
	}

	if subcmd.RequiresPermissions() && (gc.checker == nil || !gc.checker.HasPermission(ctx)) {
		return NewCommandError("You don't have permission to use this subcommand", true)
	}

	return subcmd.Handle(ctx)
}

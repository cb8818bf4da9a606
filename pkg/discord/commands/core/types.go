package core

import (
	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/files"
)

// Command is a top-level slash command.
type Command interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// SubCommand is a subcommand of a GroupCommand.
type SubCommand interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// Context carries everything a command handler needs.
type Context struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Store       *files.ConfigStore
	Responder   *Responder
	GuildID     string
	UserID      string
	Member      *discordgo.Member
	IsOwner     bool
}

// CommandRegistry holds commands and subcommands by name.
type CommandRegistry struct {
	commands    map[string]Command
	subcommands map[string]map[string]SubCommand // [commandName][subcommandName]
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands:    make(map[string]Command),
		subcommands: make(map[string]map[string]SubCommand),
	}
}

// Register adds cmd, replacing any command with the same name.
func (r *CommandRegistry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

func (r *CommandRegistry) RegisterSubCommand(parentName string, subcmd SubCommand) {
	if r.subcommands[parentName] == nil {
		r.subcommands[parentName] = make(map[string]SubCommand)
	}
	r.subcommands[parentName][subcmd.Name()] = subcmd
}

func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

func (r *CommandRegistry) GetSubCommand(parentName, subName string) (SubCommand, bool) {
	if subs, exists := r.subcommands[parentName]; exists {
		if sub, exists := subs[subName]; exists {
			return sub, true
		}
	}
	return nil, false
}

func (r *CommandRegistry) GetAllCommands() map[string]Command {
	return r.commands
}

// CommandError is an error whose message is shown to the user.
type CommandError struct {
	Message   string
	Ephemeral bool
}

func (e *CommandError) Error() string {
	return e.Message
}

func NewCommandError(message string, ephemeral bool) *CommandError {
	return &CommandError{
		Message:   message,
		Ephemeral: ephemeral,
	}
}

package core

import (
	"encoding/json"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/files"
)

// ContextBuilder creates contexts for command execution
type ContextBuilder struct {
	session   *discordgo.Session
	store     *files.ConfigStore
	checker   *PermissionChecker
	responder *Responder
}

func NewContextBuilder(session *discordgo.Session, store *files.ConfigStore, checker *PermissionChecker, responder *Responder) *ContextBuilder {
	return &ContextBuilder{
		session:   session,
		store:     store,
		checker:   checker,
		responder: responder,
	}
}

// BuildContext creates a complete context for command execution
func (cb *ContextBuilder) BuildContext(i *discordgo.InteractionCreate) *Context {
	userID := ExtractUserID(i)
	guildID := i.GuildID

	isOwner := false
	if guildID != "" && cb.checker != nil {
		isOwner = cb.checker.IsOwner(guildID, userID)
	}

	return &Context{
		Session:     cb.session,
		Interaction: i,
		Store:       cb.store,
		Responder:   cb.responder,
		GuildID:     guildID,
		UserID:      userID,
		Member:      i.Member,
		IsOwner:     isOwner,
	}
}

// ExtractUserID returns the invoking user for guild and DM interactions.
func ExtractUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	} else if i.User != nil {
		return i.User.ID
	}
	return ""
}

// GetSubCommandName extracts the subcommand name from the interaction
func GetSubCommandName(i *discordgo.InteractionCreate) string {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name
	}
	return ""
}

// GetSubCommandOptions returns the options of the invoked subcommand, or the
// top-level options when there is none.
func GetSubCommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Options
	}
	return options
}

// GetCommandPath returns the full command path (command + subcommand if present)
func GetCommandPath(i *discordgo.InteractionCreate) string {
	path := i.ApplicationCommandData().Name
	if subCmd := GetSubCommandName(i); subCmd != "" {
		path += " " + subCmd
	}
	return path
}

func IsSlashCommandInteraction(i *discordgo.InteractionCreate) bool {
	return i.Type == discordgo.InteractionApplicationCommand
}

// StringOption returns a string option by name, or "".
func StringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// CompareCommands compares two commands to check if they are semantically equal
func CompareCommands(a, b *discordgo.ApplicationCommand) bool {
	type shape struct {
		Name        string                                `json:"name"`
		Description string                                `json:"description"`
		Options     []*discordgo.ApplicationCommandOption `json:"options"`
		Permissions *int64                                `json:"default_member_permissions"`
	}
	ba, _ := json.Marshal(shape{a.Name, a.Description, a.Options, a.DefaultMemberPermissions})
	bb, _ := json.Marshal(shape{b.Name, b.Description, b.Options, b.DefaultMemberPermissions})
	return string(ba) == string(bb)
}

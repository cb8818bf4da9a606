package interactions

import "github.com/bwmarrin/discordgo"

// Kind is the shape of an inbound component or modal interaction.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindButton
	KindSelect
	KindChannelSelect
	KindRoleSelect
	KindModalSubmit
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindSelect:
		return "select"
	case KindChannelSelect:
		return "channel-select"
	case KindRoleSelect:
		return "role-select"
	case KindModalSubmit:
		return "modal-submit"
	default:
		return "unknown"
	}
}

// KindOf classifies a gateway interaction. Slash commands and autocomplete
// are KindUnknown; they go through the command router instead.
func KindOf(i *discordgo.InteractionCreate) Kind {
	if i == nil || i.Interaction == nil {
		return KindUnknown
	}
	switch i.Type {
	case discordgo.InteractionModalSubmit:
		return KindModalSubmit
	case discordgo.InteractionMessageComponent:
		switch i.MessageComponentData().ComponentType {
		case discordgo.ButtonComponent:
			return KindButton
		case discordgo.SelectMenuComponent:
			return KindSelect
		case discordgo.ChannelSelectMenuComponent:
			return KindChannelSelect
		case discordgo.RoleSelectMenuComponent:
			return KindRoleSelect
		}
	}
	return KindUnknown
}

package interactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/theme"
)

// NoticeLevel selects the color and icon of a notice.
type NoticeLevel uint8

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// Notice is a short ephemeral message for the user who clicked.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier delivers notices to the user behind an interaction.
type Notifier interface {
	Notify(ctx context.Context, in *Interaction, n Notice) error
}

const (
	msgSessionConflict = "You already have a configuration panel open. Close it before opening a new one."
	msgSessionExpired  = "Your configuration session has expired. Run `/config` to open a new panel."
	msgRoutingMiss     = "This action is not recognized."
	msgPersistence     = "Saving the configuration failed, so nothing was changed. Please try again."
	msgHandler         = "Something went wrong while handling this action. Your panel is still open."
)

// NoticeFor returns the notice for an error class. Patch rejections and
// duplicates are silent.
func NoticeFor(err error, class ErrorClass) (Notice, bool) {
	switch class {
	case ClassSessionConflict:
		return Notice{Level: NoticeWarning, Message: msgSessionConflict}, true
	case ClassSessionExpired:
		return Notice{Level: NoticeWarning, Message: msgSessionExpired}, true
	case ClassRoutingMiss:
		return Notice{Level: NoticeWarning, Message: msgRoutingMiss}, true
	case ClassInvalidInput:
		var ue *UserError
		if errors.As(err, &ue) {
			return Notice{Level: NoticeWarning, Message: ue.Message}, true
		}
		return Notice{Level: NoticeWarning, Message: msgHandler}, true
	case ClassPersistence:
		return Notice{Level: NoticeError, Message: msgPersistence}, true
	case ClassHandler:
		return Notice{Level: NoticeError, Message: msgHandler}, true
	default:
		return Notice{}, false
	}
}

// DiscordNotifier sends notices as ephemeral messages, or as ephemeral
// follow-ups when the interaction was already acknowledged.
type DiscordNotifier struct {
	session *discordgo.Session
}

func NewDiscordNotifier(s *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{session: s}
}

func (d *DiscordNotifier) Notify(ctx context.Context, in *Interaction, n Notice) error {
	if in == nil || in.Raw == nil || in.Raw.Interaction == nil {
		return fmt.Errorf("notify: interaction has no gateway payload")
	}
	embed := NoticeEmbed(n)

	if in.Acked {
		_, err := d.session.FollowupMessageCreate(in.Raw.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		return err
	}
	err := d.session.InteractionRespond(in.Raw.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		in.Acked = true
	}
	return err
}

// NoticeEmbed renders a notice with the current theme.
func NoticeEmbed(n Notice) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Description: n.Message}
	switch n.Level {
	case NoticeError:
		embed.Color = theme.Error()
		embed.Description = "❌ " + n.Message
	case NoticeWarning:
		embed.Color = theme.Warning()
		embed.Description = "⚠️ " + n.Message
	default:
		embed.Color = theme.Info()
		embed.Description = "ℹ️ " + n.Message
	}
	return embed
}

package core

import "github.com/bwmarrin/discordgo"

// ResponseType selects icon and color of a standard reply.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseError
	ResponseWarning
	ResponseInfo
)

// Responder wraps the interaction response endpoints.
type Responder struct {
	session *discordgo.Session
}

func NewResponder(session *discordgo.Session) *Responder {
	return &Responder{session: session}
}

func (r *Responder) Success(i *discordgo.InteractionCreate, message string) error {
	return r.send(i, message, ResponseSuccess, true)
}

func (r *Responder) Error(i *discordgo.InteractionCreate, message string) error {
	return r.send(i, message, ResponseError, true)
}

func (r *Responder) Warning(i *discordgo.InteractionCreate, message string) error {
	return r.send(i, message, ResponseWarning, true)
}

// Ephemeral sends a plain informational reply visible only to the caller.
func (r *Responder) Ephemeral(i *discordgo.InteractionCreate, message string) error {
	return r.send(i, message, ResponseInfo, true)
}

// Public sends an informational reply visible to the channel.
func (r *Responder) Public(i *discordgo.InteractionCreate, message string) error {
	return r.send(i, message, ResponseInfo, false)
}

func (r *Responder) send(i *discordgo.InteractionCreate, message string, kind ResponseType, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: formatTextMessage(message, kind),
			Flags:   flags,
		},
	})
}

// Message replies with embeds and components.
func (r *Responder) Message(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      flags,
		},
	})
}

// DeferUpdate acknowledges a component interaction without changing the message yet.
func (r *Responder) DeferUpdate(i *discordgo.InteractionCreate) error {
	return r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// EditOriginal replaces the embeds and components of the message the
// interaction belongs to.
func (r *Responder) EditOriginal(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	embeds := []*discordgo.MessageEmbed{embed}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := r.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

// Followup sends an ephemeral message after the interaction was acknowledged.
func (r *Responder) Followup(i *discordgo.InteractionCreate, message string) error {
	_, err := r.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: formatTextMessage(message, ResponseSuccess),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}

// Modal opens a modal dialog.
func (r *Responder) Modal(i *discordgo.InteractionCreate, customID, title string, components []discordgo.MessageComponent) error {
	return r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: components,
		},
	})
}

func formatTextMessage(message string, kind ResponseType) string {
	switch kind {
	case ResponseSuccess:
		return "✅ " + message
	case ResponseError:
		return "❌ " + message
	case ResponseWarning:
		return "⚠️ " + message
	default:
		return message
	}
}

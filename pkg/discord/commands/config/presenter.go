package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/webhook"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/theme"
)

const (
	buttonsPerRow = 5
	maxFieldRows  = 3
	notSet        = "*Not set*"
)

// Presenter turns a session and the guild's document into the panel
// message.
type Presenter struct {
	catalog *panel.Catalog
	schema  *Schema
	timeout time.Duration
}

func NewPresenter(catalog *panel.Catalog, schema *Schema, timeout time.Duration) *Presenter {
	if catalog == nil {
		catalog = panel.DefaultCatalog()
	}
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Presenter{catalog: catalog, schema: schema, timeout: timeout}
}

// Render builds the embed and components for the session's current view.
func (p *Presenter) Render(s panel.Session, doc document.Map) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	switch {
	case s.CurrentCategory == panel.ViewMain || s.CurrentCategory == "":
		return p.main(s)
	case s.CurrentCategory == panel.ViewWebhooks:
		return p.webhooks(s, doc)
	case s.CurrentCategory == panel.ViewFieldEditor:
		if f, ok := p.schema.Field(s.EditingField); ok {
			return p.editor(s, f, doc)
		}
		return p.main(s)
	case p.catalog.IsCategory(s.CurrentCategory):
		return p.category(s, doc)
	default:
		return p.main(s)
	}
}

// Closed is shown once a panel was closed by its owner.
func (p *Presenter) Closed() (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       "Configuration closed",
		Description: "Your changes were saved as you made them.",
		Color:       theme.PanelClosed(),
	}
	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Reopen", Style: discordgo.SecondaryButton, CustomID: ID(ActionOpen)},
		}},
	}
}

func (p *Presenter) header(s panel.Session, color int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: strings.Join(s.Breadcrumb, " › "),
		Color: color,
	}
	if p.timeout > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("This panel closes after %s without activity.", p.timeout),
		}
	}
	return embed
}

func (p *Presenter) main(s panel.Session) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := p.header(s, theme.PanelHome())
	embed.Description = "Pick a category to review and change its settings."

	options := make([]discordgo.SelectMenuOption, 0, len(p.catalog.Categories()))
	for _, cat := range p.catalog.Categories() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   strings.TrimSpace(cat.Emoji + " " + cat.Label),
			Value:  cat.Description,
			Inline: true,
		})
		options = append(options, discordgo.SelectMenuOption{
			Label:       cat.Label,
			Value:       cat.Key,
			Description: cat.Description,
		})
	}

	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    ID(ActionCategory),
				Placeholder: "Choose a category",
				Options:     options,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			closeButton(),
		}},
	}
}

func (p *Presenter) category(s panel.Session, doc document.Map) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	cat, _ := p.catalog.Category(s.CurrentCategory)
	embed := p.header(s, theme.PanelCategory())
	embed.Description = cat.Description

	fields := p.schema.Fields(cat.Key)
	var buttons []discordgo.MessageComponent
	for _, f := range fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Label,
			Value:  displayValue(f, doc),
			Inline: true,
		})
		if len(buttons) < buttonsPerRow*maxFieldRows {
			buttons = append(buttons, discordgo.Button{
				Label:    f.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: ID(ActionEdit, f.Key),
			})
		}
	}

	rows := chunkButtons(buttons)
	nav := []discordgo.MessageComponent{backButton(), homeButton()}
	for _, sv := range cat.SubViews {
		if sv == panel.ViewWebhooks {
			nav = append(nav, discordgo.Button{Label: p.catalog.Label(sv), Style: discordgo.SecondaryButton, CustomID: ID(ActionWebhooks)})
		}
	}
	nav = append(nav, closeButton())
	rows = append(rows, discordgo.ActionsRow{Components: nav})
	return embed, rows
}

func (p *Presenter) webhooks(s panel.Session, doc document.Map) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := p.header(s, theme.PanelSubView())
	embed.Description = "Log messages are delivered through these webhooks. Use Test to post a sample message."

	var rows []discordgo.MessageComponent
	for _, f := range p.schema.Fields(panel.ViewWebhooks) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  f.Label,
			Value: displayValue(f, doc),
		})
		_, set := doc.Lookup(f.Path)
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Set " + f.Label, Style: discordgo.PrimaryButton, CustomID: ID(ActionModal, f.Key)},
			discordgo.Button{Label: "Test", Style: discordgo.SecondaryButton, CustomID: ID(ActionWebhookTest, f.Key), Disabled: !set},
			discordgo.Button{Label: "Clear", Style: discordgo.DangerButton, CustomID: ID(ActionClear, f.Key), Disabled: !set},
		}})
	}
	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		backButton(), homeButton(), closeButton(),
	}})
	return embed, rows
}

func (p *Presenter) editor(s panel.Session, f Field, doc document.Map) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := p.header(s, theme.PanelEditor())
	embed.Description = fmt.Sprintf("**%s**", f.Label)
	if f.Description != "" {
		embed.Description += "\n" + f.Description
	}
	embed.Fields = []*discordgo.MessageEmbedField{{Name: "Current value", Value: displayValue(f, doc)}}

	var input discordgo.MessageComponent
	switch f.Kind {
	case FieldBool:
		on := boolValue(doc, f)
		label, style := "Enable", discordgo.SuccessButton
		if on {
			label, style = "Disable", discordgo.DangerButton
		}
		input = discordgo.Button{Label: label, Style: style, CustomID: ID(ActionToggle, f.Key)}
	case FieldChannel:
		types := f.ChannelTypes
		if len(types) == 0 {
			types = []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
		}
		input = discordgo.SelectMenu{
			MenuType:     discordgo.ChannelSelectMenu,
			CustomID:     ID(ActionChannel, f.Key),
			Placeholder:  "Pick a channel",
			ChannelTypes: types,
		}
	case FieldRole:
		input = discordgo.SelectMenu{
			MenuType:    discordgo.RoleSelectMenu,
			CustomID:    ID(ActionRole, f.Key),
			Placeholder: "Pick a role",
		}
	case FieldRoleList:
		minValues := 1
		input = discordgo.SelectMenu{
			MenuType:    discordgo.RoleSelectMenu,
			CustomID:    ID(ActionRoles, f.Key),
			Placeholder: "Pick roles",
			MinValues:   &minValues,
			MaxValues:   25,
		}
	default:
		input = discordgo.Button{Label: "Set value", Style: discordgo.PrimaryButton, CustomID: ID(ActionModal, f.Key)}
	}

	_, set := doc.Lookup(f.Path)
	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Clear", Style: discordgo.DangerButton, CustomID: ID(ActionClear, f.Key), Disabled: !set},
			backButton(), homeButton(), closeButton(),
		}},
	}
}

// ValueModal builds the text-entry modal for f.
func (p *Presenter) ValueModal(f Field, doc document.Map) (customID, title string, components []discordgo.MessageComponent) {
	current := ""
	if v, ok := doc.Lookup(f.Path); ok && f.Kind != FieldURL {
		current = v.Text()
	}
	style := discordgo.TextInputShort
	if f.Kind == FieldText && len(current) > 80 {
		style = discordgo.TextInputParagraph
	}
	placeholder := ""
	switch f.Kind {
	case FieldNumber:
		placeholder = "A whole number"
		if f.Max > f.Min {
			placeholder = fmt.Sprintf("%d to %d", f.Min, f.Max)
		}
	case FieldURL:
		placeholder = "https://discord.com/api/webhooks/..."
	}

	title = "Edit " + f.Label
	if len(title) > 45 {
		title = title[:45]
	}
	return ID(ActionModal, f.Key), title, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    modalInputID,
				Label:       f.Label,
				Style:       style,
				Placeholder: placeholder,
				Value:       current,
				Required:    true,
				MaxLength:   maxModalLength(f),
			},
		}},
	}
}

func maxModalLength(f Field) int {
	if f.Kind == FieldURL {
		return 512
	}
	return maxTextLength
}

// WebhookTestEmbed is posted through a webhook by the Test button.
func WebhookTestEmbed(f Field, guildID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Webhook test",
		Description: fmt.Sprintf("%s for this server will be delivered here.", f.Label),
		Color:       theme.Info(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Guild " + guildID},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func displayValue(f Field, doc document.Map) string {
	v, ok := doc.Lookup(f.Path)
	if !ok || v.IsNull() {
		return notSet
	}
	switch f.Kind {
	case FieldBool:
		if b, _ := v.AsBool(); b {
			return "Enabled"
		}
		return "Disabled"
	case FieldChannel:
		return "<#" + v.Text() + ">"
	case FieldRole:
		return "<@&" + v.Text() + ">"
	case FieldRoleList:
		ids := v.StringSlice()
		if len(ids) == 0 {
			return notSet
		}
		mentions := make([]string, len(ids))
		for i, id := range ids {
			mentions[i] = "<@&" + id + ">"
		}
		return strings.Join(mentions, " ")
	case FieldURL:
		return maskWebhook(v.Text())
	default:
		text := v.Text()
		if text == "" {
			return notSet
		}
		return "`" + text + "`"
	}
}

func boolValue(doc document.Map, f Field) bool {
	v, ok := doc.Lookup(f.Path)
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

// maskWebhook hides the token of a webhook URL.
func maskWebhook(raw string) string {
	id, _, err := webhook.ParseURL(raw)
	if err != nil {
		return "`invalid URL`"
	}
	return fmt.Sprintf("Webhook `%s` (token hidden)", id)
}

func chunkButtons(buttons []discordgo.MessageComponent) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for len(buttons) > 0 {
		n := min(buttonsPerRow, len(buttons))
		rows = append(rows, discordgo.ActionsRow{Components: buttons[:n]})
		buttons = buttons[n:]
	}
	return rows
}

func backButton() discordgo.Button {
	return discordgo.Button{Label: "Back", Style: discordgo.SecondaryButton, CustomID: ID(ActionBack)}
}

func homeButton() discordgo.Button {
	return discordgo.Button{Label: "Home", Style: discordgo.SecondaryButton, CustomID: ID(ActionHome)}
}

func closeButton() discordgo.Button {
	return discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: ID(ActionClose)}
}

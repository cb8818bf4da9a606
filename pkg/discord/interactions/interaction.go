package interactions

import (
	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

// Interaction is the platform-neutral view of a component click, select or
// modal submit that routes and handlers work with.
type Interaction struct {
	ID        string
	Kind      Kind
	CustomID  string
	UserID    string
	GuildID   string
	ChannelID string
	MessageID string

	// Selected values for selects, text input values by custom ID for modals.
	Values []string
	Fields map[string]string

	Raw *discordgo.InteractionCreate

	// Session is set by the router before a session-gated handler runs.
	Session *panel.Session

	// Answered marks an interaction the presentation layer already handled.
	Answered bool
	// Acked is set once a response (deferred or not) was sent, so later
	// notices go out as follow-ups.
	Acked bool
}

// Field returns a modal text input value.
func (in *Interaction) Field(id string) string {
	if in.Fields == nil {
		return ""
	}
	return in.Fields[id]
}

// FirstValue returns the first selected value, or "".
func (in *Interaction) FirstValue() string {
	if len(in.Values) == 0 {
		return ""
	}
	return in.Values[0]
}

// FromDiscord converts a gateway interaction. It returns nil for
// interactions that are not components or modal submits.
func FromDiscord(i *discordgo.InteractionCreate) *Interaction {
	kind := KindOf(i)
	if kind == KindUnknown {
		return nil
	}

	in := &Interaction{
		ID:        i.ID,
		Kind:      kind,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    core.ExtractUserID(i),
		Raw:       i,
	}
	if i.Message != nil {
		in.MessageID = i.Message.ID
	}

	switch kind {
	case KindModalSubmit:
		data := i.ModalSubmitData()
		in.CustomID = data.CustomID
		in.Fields = textInputs(data.Components)
	default:
		data := i.MessageComponentData()
		in.CustomID = data.CustomID
		in.Values = append([]string(nil), data.Values...)
	}
	return in
}

func textInputs(components []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok {
				fields[ti.CustomID] = ti.Value
			}
		}
	}
	return fields
}

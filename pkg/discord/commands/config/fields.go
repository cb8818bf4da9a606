package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/interactions"
	"github.com/small-frappuccino/guildpanel/pkg/discord/webhook"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

// FieldKind decides how a field is edited and validated.
type FieldKind uint8

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldBool
	FieldChannel
	FieldRole
	FieldRoleList
	FieldURL
)

func (k FieldKind) String() string {
	switch k {
	case FieldText:
		return "text"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldChannel:
		return "channel"
	case FieldRole:
		return "role"
	case FieldRoleList:
		return "role list"
	case FieldURL:
		return "url"
	default:
		return "unknown"
	}
}

const maxTextLength = 200

// Field is one editable setting of the configuration document.
type Field struct {
	Key   string
	Path  document.Path
	Label string
	Kind  FieldKind
	// View is the category or sub-view that lists the field.
	View        string
	Description string
	// Min and Max bound numbers when Max > Min.
	Min, Max int64
	// ChannelTypes limits channel pickers; text channels when empty.
	ChannelTypes []discordgo.ChannelType
}

func field(view, key, label string, kind FieldKind) Field {
	return Field{Key: key, Path: document.MustPath(key), Label: label, Kind: kind, View: view}
}

func (f Field) withBounds(lo, hi int64) Field {
	f.Min, f.Max = lo, hi
	return f
}

func (f Field) categoryChannel() Field {
	f.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory}
	return f
}

func (f Field) withDescription(d string) Field {
	f.Description = d
	return f
}

// Schema lists the editable fields in display order.
type Schema struct {
	fields []Field
	byKey  map[string]int
}

func NewSchema(fields ...Field) *Schema {
	s := &Schema{byKey: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := s.byKey[f.Key]; dup {
			panic(fmt.Sprintf("config: duplicate field %q", f.Key))
		}
		s.byKey[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// DefaultSchema is the field set of the stock panel.
func DefaultSchema() *Schema {
	return NewSchema(
		field("general", "general.prefix", "Command Prefix", FieldText),
		field("general", "general.language", "Language", FieldText),
		field("general", "general.deleteCommands", "Delete Command Messages", FieldBool),

		field("entry", "entry.welcomeChannel", "Welcome Channel", FieldChannel),
		field("entry", "entry.welcomeMessage", "Welcome Message", FieldText).
			withDescription("Use {user} for a mention of the new member."),
		field("entry", "entry.autoRole", "Auto Role", FieldRole),
		field("entry", "entry.verification.enabled", "Verification", FieldBool),

		field("logging", "logging.modLogs.enabled", "Moderation Logs", FieldBool),
		field("logging", "logging.modLogs.channelId", "Moderation Log Channel", FieldChannel),
		field("logging", "logging.messageLogs.enabled", "Message Logs", FieldBool),
		field("logging", "logging.messageLogs.channelId", "Message Log Channel", FieldChannel),
		field(panel.ViewWebhooks, "logging.modLogs.webhookUrl", "Moderation Log Webhook", FieldURL),
		field(panel.ViewWebhooks, "logging.messageLogs.webhookUrl", "Message Log Webhook", FieldURL),

		field("economy", "economy.enabled", "Economy", FieldBool),
		field("economy", "economy.currencyName", "Currency Name", FieldText),
		field("economy", "economy.dailyAmount", "Daily Reward", FieldNumber).withBounds(0, 1_000_000),
		field("economy", "economy.startingBalance", "Starting Balance", FieldNumber).withBounds(0, 1_000_000),

		field("games", "games.enabled", "Games", FieldBool),
		field("games", "games.channelId", "Games Channel", FieldChannel),
		field("games", "games.cooldownSeconds", "Cooldown (seconds)", FieldNumber).withBounds(0, 86_400),

		field("tickets", "tickets.ticketCategory", "Ticket Category", FieldChannel).categoryChannel(),
		field("tickets", "tickets.supportRole", "Support Role", FieldRole),
		field("tickets", "tickets.authorizedRoles", "Authorized Roles", FieldRoleList),
		field("tickets", "tickets.logChannel", "Ticket Log Channel", FieldChannel),
		field("tickets", "tickets.maxOpen", "Max Open Tickets", FieldNumber).withBounds(1, 25),

		field("levels", "levels.enabled", "Levels", FieldBool),
		field("levels", "levels.announceChannel", "Level-up Channel", FieldChannel),
		field("levels", "levels.xpPerMessage", "XP per Message", FieldNumber).withBounds(1, 1_000),
		field("levels", "levels.ignoredRoles", "Ignored Roles", FieldRoleList),

		field("modmail", "modmail.enabled", "Modmail", FieldBool),
		field("modmail", "modmail.categoryId", "Modmail Category", FieldChannel).categoryChannel(),
		field("modmail", "modmail.staffRole", "Staff Role", FieldRole),

		field("confession", "confession.enabled", "Confessions", FieldBool),
		field("confession", "confession.channelId", "Confession Channel", FieldChannel),
		field("confession", "confession.logChannel", "Confession Log Channel", FieldChannel),
	)
}

// Field looks a field up by key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Fields returns the fields listed on view, in display order.
func (s *Schema) Fields(view string) []Field {
	var out []Field
	for _, f := range s.fields {
		if f.View == view {
			out = append(out, f)
		}
	}
	return out
}

// All returns every field.
func (s *Schema) All() []Field {
	return append([]Field(nil), s.fields...)
}

// Parse validates raw user input for f and converts it to a document value.
// Invalid input yields a UserError carrying the message shown to the user,
// wrapping a files.ValidationError for the field path.
func (f Field) Parse(raw string) (document.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return document.Value{}, f.invalid(raw, "%s cannot be empty. Use Clear to remove it.", f.Label)
	}

	switch f.Kind {
	case FieldText:
		if utf8.RuneCountInString(raw) > maxTextLength {
			return document.Value{}, f.invalid(raw, "%s must be at most %d characters.", f.Label, maxTextLength)
		}
		return document.String(raw), nil
	case FieldNumber:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return document.Value{}, f.invalid(raw, "%s must be a whole number.", f.Label)
		}
		if f.Max > f.Min && (n < f.Min || n > f.Max) {
			return document.Value{}, f.invalid(raw, "%s must be between %d and %d.", f.Label, f.Min, f.Max)
		}
		return document.Int(n), nil
	case FieldBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return document.Value{}, f.invalid(raw, "%s must be true or false.", f.Label)
		}
		return document.Bool(b), nil
	case FieldChannel, FieldRole:
		if !IsSnowflake(raw) {
			return document.Value{}, f.invalid(raw, "%s must be a valid Discord ID.", f.Label)
		}
		return document.String(raw), nil
	case FieldRoleList:
		return f.ParseIDs(strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }))
	case FieldURL:
		if err := webhook.ValidateURL(raw); err != nil {
			return document.Value{}, f.invalid(raw, "%s is not a valid Discord webhook URL: %v.", f.Label, err)
		}
		return document.String(raw), nil
	default:
		return document.Value{}, fmt.Errorf("field %s has unsupported kind %s", f.Key, f.Kind)
	}
}

// ParseIDs validates values picked in a channel or role select.
func (f Field) ParseIDs(ids []string) (document.Value, error) {
	switch f.Kind {
	case FieldChannel, FieldRole:
		if len(ids) != 1 {
			return document.Value{}, f.invalid(ids, "Pick exactly one value for %s.", f.Label)
		}
		return f.Parse(ids[0])
	case FieldRoleList:
		if len(ids) == 0 {
			return document.Value{}, f.invalid(ids, "Pick at least one role for %s.", f.Label)
		}
		seen := make(map[string]struct{}, len(ids))
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if !IsSnowflake(id) {
				return document.Value{}, f.invalid(id, "%q is not a valid role ID.", id)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return document.Strings(out...), nil
	default:
		return document.Value{}, fmt.Errorf("field %s does not take IDs", f.Key)
	}
}

// IsSnowflake reports whether s looks like a Discord ID.
func IsSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// invalid builds the user-facing rejection for value.
func (f Field) invalid(value any, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &interactions.UserError{Message: msg, Cause: files.NewValidationError(f.Path.String(), value, msg)}
}

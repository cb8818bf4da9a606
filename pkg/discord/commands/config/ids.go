package config

import "strings"

// Custom IDs on panel components follow cfg:<action>[:<arg>]. The argument
// is a field key and may itself contain dots but never colons.
const idPrefix = "cfg"

const (
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionBack        = "back"
	ActionHome        = "home"
	ActionCategory    = "category"
	ActionEdit        = "edit"
	ActionToggle      = "toggle"
	ActionClear       = "clear"
	ActionModal       = "modal"
	ActionChannel     = "channel"
	ActionRole        = "role"
	ActionRoles       = "roles"
	ActionWebhooks    = "webhooks"
	ActionWebhookTest = "webhooktest"
)

// modalInputID is the text input inside every value modal.
const modalInputID = "value"

// ID builds a custom ID for action, with an optional argument.
func ID(action string, arg ...string) string {
	parts := append([]string{idPrefix, action}, arg...)
	return strings.Join(parts, ":")
}

// actionPrefix matches every custom ID of an action that takes an argument.
func actionPrefix(action string) string {
	return idPrefix + ":" + action + ":"
}

// ParseID splits a panel custom ID into action and argument.
func ParseID(customID string) (action, arg string, ok bool) {
	rest, found := strings.CutPrefix(customID, idPrefix+":")
	if !found || rest == "" {
		return "", "", false
	}
	action, arg, _ = strings.Cut(rest, ":")
	return action, arg, action != ""
}

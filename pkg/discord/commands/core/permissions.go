package core

import (
	"github.com/bwmarrin/discordgo"
)

// ConfigPermission is what members need to open the configuration panel.
const ConfigPermission int64 = discordgo.PermissionManageGuild

// PermissionChecker decides who may run permission-gated commands: the
// guild owner and members holding Manage Server or Administrator.
type PermissionChecker struct {
	session *discordgo.Session
}

func NewPermissionChecker(session *discordgo.Session) *PermissionChecker {
	return &PermissionChecker{session: session}
}

// getOwnerID resolves the guild owner through state, then REST.
func (pc *PermissionChecker) getOwnerID(guildID string) (string, bool) {
	if pc.session == nil {
		return "", false
	}
	if pc.session.State != nil {
		if g, _ := pc.session.State.Guild(guildID); g != nil {
			return g.OwnerID, true
		}
	}
	if g, err := pc.session.Guild(guildID); err == nil && g != nil {
		return g.OwnerID, true
	}
	return "", false
}

// IsOwner checks whether the user is the server owner
func (pc *PermissionChecker) IsOwner(guildID, userID string) bool {
	if guildID == "" || userID == "" {
		return false
	}
	ownerID, ok := pc.getOwnerID(guildID)
	return ok && ownerID == userID
}

// HasPermission reports whether the invoking member may manage the guild.
// Interaction members carry their resolved channel permissions.
func (pc *PermissionChecker) HasPermission(ctx *Context) bool {
	if ctx == nil || ctx.GuildID == "" {
		return false
	}
	if ctx.IsOwner {
		return true
	}
	if ctx.Member == nil {
		return false
	}
	perms := ctx.Member.Permissions
	return perms&discordgo.PermissionAdministrator != 0 || perms&ConfigPermission != 0
}

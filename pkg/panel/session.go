package panel

import "time"

// Session is one administrator's open configuration panel.
type Session struct {
	ID              string
	UserID          string
	GuildID         string
	CurrentCategory string
	Breadcrumb      []string
	StartTime       time.Time
	LastActivity    time.Time

	// Panel message the session renders into.
	MessageID string
	ChannelID string

	// Field key open in the field editor, empty otherwise.
	EditingField string
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	s.Breadcrumb = append([]string(nil), s.Breadcrumb...)
	return s
}

// Depth is the number of breadcrumb entries.
func (s Session) Depth() int { return len(s.Breadcrumb) }

// CurrentLabel returns the last breadcrumb entry.
func (s Session) CurrentLabel() string {
	if len(s.Breadcrumb) == 0 {
		return ""
	}
	return s.Breadcrumb[len(s.Breadcrumb)-1]
}

// Idle reports how long the session has been inactive at now.
func (s Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

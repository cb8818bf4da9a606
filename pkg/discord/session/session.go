package session

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/errutil"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// Error messages
const (
	ErrSessionCreationFailed   = "failed to create Discord session: %w"
	ErrSessionConnectionFailed = "failed to connect to Discord: %w"
)

// Intents the panel needs: interactions arrive regardless, guild state
// answers owner lookups without a REST call.
const Intents = discordgo.IntentsGuilds

var (
	newSession   = func(token string) (*discordgo.Session, error) { return discordgo.New("Bot " + token) }
	openSession  = func(s *discordgo.Session) error { return s.Open() }
	closeSession = func(s *discordgo.Session) error { return s.Close() }
)

// NewDiscordSession creates a gateway session and connects it.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	if token == "" {
		log.ErrorLoggerRaw().Error("Discord bot token is empty. Set GUILDPANEL_BOT_TOKEN before starting the bot.")
		return nil, errors.New("discord bot token is empty")
	}

	log.DiscordLogger().Info("Creating Discord session")
	var s *discordgo.Session
	if err := errutil.HandleDiscordError("create_session", func() error {
		var err error
		s, err = newSession(token)
		return err
	}); err != nil {
		return nil, fmt.Errorf(ErrSessionCreationFailed, err)
	}
	s.Identify.Intents = Intents

	log.DiscordLogger().Info("Connecting to Discord...")
	if err := errutil.HandleDiscordError("connect", func() error {
		return openSession(s)
	}); err != nil {
		if cerr := closeSession(s); cerr != nil {
			log.DiscordLogger().Warn("Failed to close session after connect error", "err", cerr)
		}
		return nil, fmt.Errorf(ErrSessionConnectionFailed, err)
	}

	log.DiscordLogger().Info("Connected to Discord")
	return s, nil
}

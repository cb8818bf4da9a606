package webhook

import (
	"errors"
	"net/url"
	"strings"
)

var discordHosts = map[string]struct{}{
	"discord.com":           {},
	"ptb.discord.com":       {},
	"canary.discord.com":    {},
	"discordapp.com":        {},
	"ptb.discordapp.com":    {},
	"canary.discordapp.com": {},
}

// ParseURL extracts the webhook ID and token from a Discord webhook URL such
// as https://discord.com/api/webhooks/<id>/<token>. Versioned API paths are
// accepted.
func ParseURL(rawURL string) (id, token string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", errors.New("missing webhook URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.New("invalid webhook URL format")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts); i++ {
		if parts[i] != "webhooks" {
			continue
		}
		if i+2 >= len(parts) {
			return "", "", errors.New("invalid webhook URL path")
		}
		id = strings.TrimSpace(parts[i+1])
		token = strings.TrimSpace(parts[i+2])
		if id == "" || token == "" {
			return "", "", errors.New("invalid webhook URL credentials")
		}
		return id, token, nil
	}

	return "", "", errors.New("invalid webhook URL path")
}

// ValidateURL checks that rawURL is an https Discord webhook URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return errors.New("invalid webhook URL format")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return errors.New("webhook URL must use https")
	}
	if _, ok := discordHosts[strings.ToLower(u.Hostname())]; !ok {
		return errors.New("webhook URL must point to discord.com")
	}
	_, _, err = ParseURL(rawURL)
	return err
}

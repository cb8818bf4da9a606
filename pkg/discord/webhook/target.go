package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const defaultTargetTimeout = 3 * time.Second

// TargetClass classifies webhook check failures.
type TargetClass string

const (
	TargetClassAuthDenied         TargetClass = "auth_denied"
	TargetClassNotFound           TargetClass = "not_found"
	TargetClassRateLimited        TargetClass = "rate_limited"
	TargetClassDiscordUnavailable TargetClass = "discord_unavailable"
	TargetClassUnknown            TargetClass = "unknown"
)

// TargetError is a classified failure talking to a configured webhook.
type TargetError struct {
	Operation  string
	StatusCode int
	Class      TargetClass
	Temporary  bool
	Cause      error
}

func (e *TargetError) Error() string {
	statusLabel := "status unknown"
	if e.StatusCode > 0 {
		statusLabel = fmt.Sprintf("status %d", e.StatusCode)
	}

	var base string
	switch e.Class {
	case TargetClassAuthDenied:
		base = fmt.Sprintf("%s denied (%s: invalid token or missing permission)", e.Operation, statusLabel)
	case TargetClassNotFound:
		base = fmt.Sprintf("%s failed (%s: webhook not found)", e.Operation, statusLabel)
	case TargetClassRateLimited:
		base = fmt.Sprintf("%s failed (%s: rate limited; temporary)", e.Operation, statusLabel)
	case TargetClassDiscordUnavailable:
		base = fmt.Sprintf("%s failed (%s: Discord API unavailable; temporary)", e.Operation, statusLabel)
	default:
		base = fmt.Sprintf("%s failed (%s)", e.Operation, statusLabel)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *TargetError) Unwrap() error { return e.Cause }

// Hint is a short explanation suitable for the panel.
func (e *TargetError) Hint() string {
	switch e.Class {
	case TargetClassAuthDenied:
		return "Discord rejected the webhook token."
	case TargetClassNotFound:
		return "The webhook no longer exists."
	case TargetClassRateLimited, TargetClassDiscordUnavailable:
		return "Discord is busy right now, try again in a moment."
	default:
		return "The webhook could not be reached."
	}
}

func requestOptions(ctx context.Context) []discordgo.RequestOption {
	return []discordgo.RequestOption{
		discordgo.WithContext(ctx),
		discordgo.WithRestRetries(0),
		discordgo.WithRetryOnRatelimit(false),
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultTargetTimeout)
}

// CheckTarget verifies that the webhook behind rawURL exists and its token
// is accepted.
func CheckTarget(ctx context.Context, session *discordgo.Session, rawURL string) (*discordgo.Webhook, error) {
	if session == nil {
		return nil, errors.New("check webhook: nil discord session")
	}
	id, token, err := ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("check webhook: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	hook, err := session.WebhookWithToken(id, token, requestOptions(ctx)...)
	if err != nil {
		return nil, classify("webhook lookup", err)
	}
	return hook, nil
}

// SendTest posts embed through the webhook so administrators can confirm
// where log messages will land.
func SendTest(ctx context.Context, session *discordgo.Session, rawURL string, embed *discordgo.MessageEmbed) error {
	if session == nil {
		return errors.New("send test message: nil discord session")
	}
	id, token, err := ParseURL(rawURL)
	if err != nil {
		return fmt.Errorf("send test message: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err = session.WebhookExecute(id, token, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	}, requestOptions(ctx)...)
	if err != nil {
		return classify("webhook execute", err)
	}
	return nil
}

func classify(operation string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		status := restErr.Response.StatusCode
		te := &TargetError{Operation: operation, StatusCode: status, Class: TargetClassUnknown, Cause: err}
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			te.Class = TargetClassAuthDenied
		case status == http.StatusNotFound:
			te.Class = TargetClassNotFound
		case status == http.StatusTooManyRequests:
			te.Class = TargetClassRateLimited
			te.Temporary = true
		case status >= 500 && status < 600:
			te.Class = TargetClassDiscordUnavailable
			te.Temporary = true
		}
		return te
	}
	if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return &TargetError{
			Operation:  operation,
			StatusCode: http.StatusTooManyRequests,
			Class:      TargetClassRateLimited,
			Temporary:  true,
			Cause:      err,
		}
	}
	return &TargetError{Operation: operation, Class: TargetClassUnknown, Cause: err}
}

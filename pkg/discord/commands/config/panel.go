package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/discord/commands/core"
	"github.com/small-frappuccino/guildpanel/pkg/discord/interactions"
	"github.com/small-frappuccino/guildpanel/pkg/discord/webhook"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

const (
	msgGuildOnly    = "The configuration panel is only available in a server."
	msgNoPermission = "You need the Manage Server permission to configure this server."
	msgConflict     = "You already have a configuration panel open. Close it or run `/config restart:true`."
)

// Panel handles every interaction on the configuration panel message.
type Panel struct {
	session   *discordgo.Session
	store     *files.ConfigStore
	sessions  *panel.SessionManager
	nav       *panel.Navigator
	schema    *Schema
	presenter *Presenter
	responder *core.Responder
	checker   *core.PermissionChecker
	builder   *core.ContextBuilder
}

type Option func(*Panel)

// WithSchema replaces the stock field set.
func WithSchema(s *Schema) Option {
	return func(p *Panel) {
		if s != nil {
			p.schema = s
		}
	}
}

// WithNavigator replaces the stock catalog and root label.
func WithNavigator(n *panel.Navigator) Option {
	return func(p *Panel) {
		if n != nil {
			p.nav = n
		}
	}
}

func NewPanel(session *discordgo.Session, store *files.ConfigStore, sessions *panel.SessionManager, opts ...Option) *Panel {
	p := &Panel{
		session:  session,
		store:    store,
		sessions: sessions,
		schema:   DefaultSchema(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.nav == nil {
		p.nav = panel.NewNavigator(nil, sessions.Config().RootLabel)
	}
	p.presenter = NewPresenter(p.nav.Catalog(), p.schema, sessions.Config().Timeout)
	p.responder = core.NewResponder(session)
	p.checker = core.NewPermissionChecker(session)
	p.builder = core.NewContextBuilder(session, store, p.checker, p.responder)
	return p
}

func (p *Panel) Presenter() *Presenter { return p.presenter }

// Register adds the /config command and the panel routes.
func (p *Panel) Register(commands *core.CommandRouter, router *interactions.Router) {
	commands.RegisterCommand(NewCommand(p))
	router.Register(p.Routes()...)
}

// Routes returns the panel's dispatch table. More specific prefixes come
// before shorter ones that would shadow them.
func (p *Panel) Routes() []interactions.Route {
	button := []interactions.Kind{interactions.KindButton}
	return []interactions.Route{
		{Name: "open", Kinds: button, Match: interactions.Exact(ID(ActionOpen)), Handler: p.handleOpen, OpensSession: true},
		{Name: "close", Kinds: button, Match: interactions.Exact(ID(ActionClose)), Handler: p.handleClose},
		{Name: "back", Kinds: button, Match: interactions.Exact(ID(ActionBack)), Handler: p.handleBack},
		{Name: "home", Kinds: button, Match: interactions.Exact(ID(ActionHome)), Handler: p.handleHome},
		{Name: "category", Kinds: []interactions.Kind{interactions.KindSelect}, Match: interactions.Exact(ID(ActionCategory)), Handler: p.handleCategory},
		{Name: "webhooks", Kinds: button, Match: interactions.Exact(ID(ActionWebhooks)), Handler: p.handleWebhooks},
		{Name: "webhook-test", Kinds: button, Match: interactions.Prefix(actionPrefix(ActionWebhookTest)), Handler: p.handleWebhookTest},
		{Name: "edit", Kinds: button, Match: interactions.Prefix(actionPrefix(ActionEdit)), Handler: p.handleEdit},
		{Name: "toggle", Kinds: button, Match: interactions.Prefix(actionPrefix(ActionToggle)), Handler: p.handleToggle},
		{Name: "clear", Kinds: button, Match: interactions.Prefix(actionPrefix(ActionClear)), Handler: p.handleClear},
		{Name: "modal-open", Kinds: button, Match: interactions.Prefix(actionPrefix(ActionModal)), Handler: p.handleModalOpen},
		{Name: "modal-submit", Kinds: []interactions.Kind{interactions.KindModalSubmit}, Match: interactions.Prefix(actionPrefix(ActionModal)), Handler: p.handleModalSubmit},
		{Name: "channel", Kinds: []interactions.Kind{interactions.KindChannelSelect}, Match: interactions.Prefix(actionPrefix(ActionChannel)), Handler: p.handleSelectIDs},
		{Name: "roles", Kinds: []interactions.Kind{interactions.KindRoleSelect}, Match: interactions.Prefix(actionPrefix(ActionRoles)), Handler: p.handleSelectIDs},
		{Name: "role", Kinds: []interactions.Kind{interactions.KindRoleSelect}, Match: interactions.Prefix(actionPrefix(ActionRole)), Handler: p.handleSelectIDs},
	}
}

// Open starts a session for the invoking member. It returns
// panel.ErrSessionConflict when one is already open.
func (p *Panel) Open(userID, guildID, channelID, messageID string) (panel.Session, error) {
	s, created := p.sessions.Start(userID, guildID)
	if !created {
		return s, panel.ErrSessionConflict
	}
	if channelID != "" || messageID != "" {
		s, _ = p.sessions.Update(userID, func(s *panel.Session) error {
			s.ChannelID, s.MessageID = channelID, messageID
			return nil
		})
	}
	log.DiscordLogger().Info("Configuration session opened", "user", userID, "guild", guildID, "session", s.ID)
	return s, nil
}

// View renders the panel for s.
func (p *Panel) View(ctx context.Context, s panel.Session) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	doc, err := p.store.Get(ctx, s.GuildID)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration for %s: %w", s.GuildID, err)
	}
	embed, components := p.presenter.Render(s, doc)
	return embed, components, nil
}

func (p *Panel) ack(in *interactions.Interaction) error {
	if in.Acked {
		return nil
	}
	if err := p.responder.DeferUpdate(in.Raw); err != nil {
		return fmt.Errorf("acknowledge %s: %w", in.CustomID, err)
	}
	in.Acked = true
	return nil
}

func (p *Panel) refresh(ctx context.Context, in *interactions.Interaction, s panel.Session) error {
	embed, components, err := p.View(ctx, s)
	if err != nil {
		return err
	}
	return p.responder.EditOriginal(in.Raw, embed, components)
}

// update mutates the caller's session, recording the panel message, and
// redraws the panel.
func (p *Panel) update(ctx context.Context, in *interactions.Interaction, fn func(*panel.Session) error) error {
	if err := p.ack(in); err != nil {
		return err
	}
	s, err := p.sessions.Update(in.UserID, func(s *panel.Session) error {
		if in.MessageID != "" {
			s.MessageID = in.MessageID
		}
		if in.ChannelID != "" {
			s.ChannelID = in.ChannelID
		}
		if fn == nil {
			return nil
		}
		return fn(s)
	})
	if errors.Is(err, panel.ErrInvalidTransition) || errors.Is(err, panel.ErrUnknownView) {
		return interactions.NewUserError("That view is not available from here.")
	}
	if err != nil {
		return err
	}
	return p.refresh(ctx, in, s)
}

func (p *Panel) fieldFor(in *interactions.Interaction) (Field, error) {
	_, key, _ := ParseID(in.CustomID)
	f, ok := p.schema.Field(key)
	if !ok {
		return Field{}, fmt.Errorf("field %q: %w", key, interactions.ErrRoutingMiss)
	}
	return f, nil
}

func (p *Panel) handleOpen(ctx context.Context, in *interactions.Interaction) error {
	if in.GuildID == "" {
		return interactions.NewUserError(msgGuildOnly)
	}
	if !p.checker.HasPermission(p.builder.BuildContext(in.Raw)) {
		return interactions.NewUserError(msgNoPermission)
	}
	s, err := p.Open(in.UserID, in.GuildID, in.ChannelID, in.MessageID)
	if err != nil {
		return err
	}
	err = p.ack(in)
	if err == nil {
		err = p.refresh(ctx, in, s)
	}
	if err != nil {
		// Nothing is on screen, so the session would only block a retry.
		p.sessions.End(in.UserID)
		return err
	}
	return nil
}

func (p *Panel) handleClose(_ context.Context, in *interactions.Interaction) error {
	if err := p.ack(in); err != nil {
		return err
	}
	if p.sessions.End(in.UserID) {
		log.DiscordLogger().Info("Configuration session closed", "user", in.UserID, "guild", in.GuildID)
	}
	embed, components := p.presenter.Closed()
	return p.responder.EditOriginal(in.Raw, embed, components)
}

func (p *Panel) handleBack(ctx context.Context, in *interactions.Interaction) error {
	return p.update(ctx, in, func(s *panel.Session) error {
		p.nav.NavigateBack(s)
		return nil
	})
}

func (p *Panel) handleHome(ctx context.Context, in *interactions.Interaction) error {
	return p.update(ctx, in, func(s *panel.Session) error {
		p.nav.NavigateHome(s)
		return nil
	})
}

func (p *Panel) handleCategory(ctx context.Context, in *interactions.Interaction) error {
	target := in.FirstValue()
	if !p.nav.Catalog().IsCategory(target) {
		return fmt.Errorf("category %q: %w", target, interactions.ErrRoutingMiss)
	}
	return p.update(ctx, in, func(s *panel.Session) error {
		return p.nav.NavigateTo(s, target, "")
	})
}

func (p *Panel) handleWebhooks(ctx context.Context, in *interactions.Interaction) error {
	return p.update(ctx, in, func(s *panel.Session) error {
		return p.nav.NavigateTo(s, panel.ViewWebhooks, "")
	})
}

func (p *Panel) handleEdit(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	return p.update(ctx, in, func(s *panel.Session) error {
		if err := p.nav.NavigateTo(s, panel.ViewFieldEditor, ""); err != nil {
			return err
		}
		s.EditingField = f.Key
		return nil
	})
}

// apply merges a single-field patch into the guild document and redraws.
func (p *Panel) apply(ctx context.Context, in *interactions.Interaction, f Field, v document.Value) error {
	if err := p.ack(in); err != nil {
		return err
	}
	res, err := p.store.Apply(ctx, in.Session.GuildID, document.PatchAt(f.Path, v))
	if err != nil {
		return err
	}
	if res.Changed {
		log.DiscordLogger().Info("Configuration field updated", "guild", in.Session.GuildID, "user", in.UserID, "field", f.Key)
	}
	return p.update(ctx, in, nil)
}

func (p *Panel) mutate(ctx context.Context, in *interactions.Interaction, f Field, fn func(document.Map) (document.Map, error)) error {
	if err := p.ack(in); err != nil {
		return err
	}
	res, err := p.store.Mutate(ctx, in.Session.GuildID, fn)
	if err != nil {
		return err
	}
	if res.Changed {
		log.DiscordLogger().Info("Configuration field updated", "guild", in.Session.GuildID, "user", in.UserID, "field", f.Key)
	}
	return p.update(ctx, in, nil)
}

func (p *Panel) handleToggle(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	if f.Kind != FieldBool {
		return fmt.Errorf("toggle on %s field %s: %w", f.Kind, f.Key, interactions.ErrRoutingMiss)
	}
	// Flip against the committed document so concurrent toggles serialize.
	return p.mutate(ctx, in, f, func(doc document.Map) (document.Map, error) {
		return document.DeepMerge(doc, document.PatchAt(f.Path, document.Bool(!boolValue(doc, f)))), nil
	})
}

func (p *Panel) handleClear(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	return p.mutate(ctx, in, f, func(doc document.Map) (document.Map, error) {
		return doc.Without(f.Path), nil
	})
}

func (p *Panel) handleModalOpen(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	switch f.Kind {
	case FieldText, FieldNumber, FieldURL:
	default:
		return fmt.Errorf("modal for %s field %s: %w", f.Kind, f.Key, interactions.ErrRoutingMiss)
	}
	doc, err := p.store.Get(ctx, in.Session.GuildID)
	if err != nil {
		return err
	}
	customID, title, components := p.presenter.ValueModal(f, doc)
	if err := p.responder.Modal(in.Raw, customID, title, components); err != nil {
		return fmt.Errorf("open modal for %s: %w", f.Key, err)
	}
	in.Acked = true
	return nil
}

func (p *Panel) handleModalSubmit(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	v, err := f.Parse(in.Field(modalInputID))
	if err != nil {
		return err
	}
	if f.Kind == FieldURL {
		if err := p.ack(in); err != nil {
			return err
		}
		raw, _ := v.AsString()
		if _, err := webhook.CheckTarget(ctx, p.session, raw); err != nil {
			return targetUserError(err)
		}
	}
	return p.apply(ctx, in, f, v)
}

func (p *Panel) handleSelectIDs(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	v, err := f.ParseIDs(in.Values)
	if err != nil {
		return err
	}
	return p.apply(ctx, in, f, v)
}

func (p *Panel) handleWebhookTest(ctx context.Context, in *interactions.Interaction) error {
	f, err := p.fieldFor(in)
	if err != nil {
		return err
	}
	if f.Kind != FieldURL {
		return fmt.Errorf("webhook test on %s field %s: %w", f.Kind, f.Key, interactions.ErrRoutingMiss)
	}
	v, ok, err := p.store.Lookup(ctx, in.Session.GuildID, f.Key)
	if err != nil {
		return err
	}
	raw, _ := v.AsString()
	if !ok || raw == "" {
		return interactions.NewUserError("%s is not set.", f.Label)
	}
	if err := p.ack(in); err != nil {
		return err
	}
	if err := webhook.SendTest(ctx, p.session, raw, WebhookTestEmbed(f, in.Session.GuildID)); err != nil {
		return targetUserError(err)
	}
	if err := p.responder.Followup(in.Raw, "Test message sent to "+f.Label+"."); err != nil {
		log.DiscordLogger().Warn("Failed to confirm webhook test", "user", in.UserID, "field", f.Key, "err", err)
	}
	return p.update(ctx, in, nil)
}

// targetUserError turns classified webhook failures into notices. Anything
// else stays a handler error.
func targetUserError(err error) error {
	var te *webhook.TargetError
	if errors.As(err, &te) {
		log.DiscordLogger().Info("Webhook target rejected", "class", string(te.Class), "status", te.StatusCode, "err", err)
		return interactions.NewUserError("%s", te.Hint())
	}
	return err
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/guildpanel/pkg/control"
	"github.com/small-frappuccino/guildpanel/pkg/discord/commands"
	"github.com/small-frappuccino/guildpanel/pkg/discord/session"
	"github.com/small-frappuccino/guildpanel/pkg/events"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/task"
	"github.com/small-frappuccino/guildpanel/pkg/theme"
)

// App holds the long-lived components of one bot process.
type App struct {
	settings Settings

	Store    *files.ConfigStore
	Sessions *panel.SessionManager
	Bus      *events.Bus
	Tasks    *task.TaskRouter

	publisher *events.NATSPublisher
	control   *control.Server
	discord   *discordgo.Session
	commands  *commands.CommandHandler
	stopSweep func()
}

// Option customizes New.
type Option func(*options)

type options struct {
	backend   files.Backend
	publisher ChangePublisher
}

// WithBackend uses b instead of the backend selected by the settings.
func WithBackend(b files.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithPublisher forwards changes to p instead of dialing GUILDPANEL_NATS_URL.
func WithPublisher(p ChangePublisher) Option {
	return func(o *options) { o.publisher = p }
}

// New builds the store, session manager, event bus and task router and wires
// them together. Nothing talks to Discord until ConnectDiscord.
func New(ctx context.Context, s Settings, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		var err error
		if backend, err = OpenBackend(ctx, s); err != nil {
			return nil, err
		}
	}

	a := &App{
		settings: s,
		Store:    files.NewConfigStore(backend),
		Sessions: panel.NewSessionManager(s.SessionConfig()),
		Bus:      events.NewBus(),
		Tasks:    task.NewRouter(task.Defaults()),
	}
	wireEvents(ctx, a.Store, a.Sessions, a.Bus)

	pub := o.publisher
	if pub == nil && s.NATSURL != "" {
		a.publisher = events.NewNATSPublisher(s.NATSURL, s.Instance)
		if err := a.publisher.Connect(ctx); err != nil {
			a.publisher = nil
			a.abort()
			return nil, fmt.Errorf("connect NATS: %w", err)
		}
		if err := wireRemoteChanges(a.publisher, a.Store); err != nil {
			a.abort()
			return nil, err
		}
		pub = a.publisher
	}
	if pub != nil {
		wirePublisher(a.Bus, a.Tasks, pub)
	}

	a.stopSweep = scheduleSweep(a.Tasks, a.Sessions)

	log.ApplicationLogger().Info("Core components ready",
		"store", backend.Name(),
		"session_timeout", s.SessionTimeout.String(),
		"sweep_interval", s.SweepInterval.String(),
		"nats", pub != nil,
	)
	return a, nil
}

// ConnectDiscord opens the gateway session and registers commands and
// component routes.
func (a *App) ConnectDiscord() error {
	if err := a.settings.RequireToken(); err != nil {
		return err
	}
	log.DiscordLogger().Info("🔑 Attempting to authenticate with Discord API...")
	ds, err := session.NewDiscordSession(a.settings.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	if ds.State == nil || ds.State.User == nil {
		_ = ds.Close()
		return errors.New("discord session state not properly initialized")
	}
	a.discord = ds
	log.DiscordLogger().Info("✅ Authenticated", "user", ds.State.User.Username)

	a.commands = commands.NewCommandHandler(ds, a.Store, a.Sessions)
	if err := a.commands.SetupCommands(); err != nil {
		return fmt.Errorf("configure slash commands: %w", err)
	}
	return nil
}

// StartControl starts the admin API when GUILDPANEL_CONTROL_ADDR is set.
func (a *App) StartControl() error {
	deps := control.Deps{Store: a.Store, Sessions: a.Sessions, Tasks: a.Tasks}
	if a.commands != nil {
		deps.Outcomes = a.commands.Router()
	}
	a.control = control.NewServer(a.settings.ControlAddr, deps)
	return a.control.Start()
}

// Shutdown stops intake first, then background work, then storage.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.discord != nil {
		if err := a.discord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close discord session: %w", err))
		}
	}
	if err := a.control.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.closeCore(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// closeCore stops the sweep, drains the task router and ends every session.
// Queued change publishes still reach NATS unless ctx ends first.
func (a *App) closeCore(ctx context.Context) error {
	if a.stopSweep != nil {
		a.stopSweep()
	}
	var drainErr error
	if err := a.Tasks.Shutdown(ctx); err != nil {
		drainErr = fmt.Errorf("drain task router: %w", err)
	}
	if a.commands != nil {
		_ = a.commands.Shutdown()
	} else if n := a.Sessions.Close(); n > 0 {
		log.ApplicationLogger().Info("Open configuration sessions closed", "count", n)
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.ApplicationLogger().Warn("NATS close failed", "err", err)
		}
	}
	return drainErr
}

func (a *App) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.closeCore(ctx)
	_ = a.Store.Close()
}

// Run bootstraps the bot and blocks until ctx is cancelled.
func Run(ctx context.Context, s Settings) error {
	started := time.Now()

	if err := log.SetupLogger(log.Options{
		Dir:     s.Paths().LogDir,
		Level:   s.LogLevel,
		Console: s.LogConsole,
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer log.Sync()

	if s.Theme != "" {
		if err := theme.SetCurrent(s.Theme); err != nil {
			log.ApplicationLogger().Warn("Failed to set theme", "theme", s.Theme, "err", err)
		}
	}
	if err := s.RequireToken(); err != nil {
		return err
	}

	log.ApplicationLogger().Info(FormatStartupMessage(AppName, Version), "env_files", s.EnvFiles)

	a, err := New(ctx, s)
	if err != nil {
		return err
	}
	shutdown := func() error {
		sctx, cancel := context.WithTimeoutCause(context.Background(), 30*time.Second, errors.New("application shutdown"))
		defer cancel()
		return a.Shutdown(sctx)
	}

	if err := a.ConnectDiscord(); err != nil {
		_ = shutdown()
		return err
	}
	if err := a.StartControl(); err != nil {
		_ = shutdown()
		return err
	}

	log.ApplicationLogger().Info(fmt.Sprintf("🎯 %s initialized successfully in %s", AppName, time.Since(started).Round(time.Millisecond)))
	log.ApplicationLogger().Info(fmt.Sprintf("🤖 %s running. Press Ctrl+C to stop...", AppName))

	<-ctx.Done()
	log.ApplicationLogger().Info(fmt.Sprintf("🛑 Stopping %s...", AppName))

	if err := shutdown(); err != nil {
		log.ErrorLoggerRaw().Error("Shutdown finished with errors", "err", err)
		return err
	}
	return nil
}

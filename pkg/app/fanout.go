package app

import (
	"context"
	"fmt"

	"github.com/small-frappuccino/guildpanel/pkg/events"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/task"
)

// Task types registered on the router.
const (
	TaskPublishChange = "config.publish"
	TaskSweepSessions = "panel.sweep"
)

// ChangePublisher sends committed changes to other instances.
type ChangePublisher interface {
	PublishConfigChange(ctx context.Context, evt events.ConfigChangedEvent) error
}

// wireEvents turns store commits and session lifecycle into bus events.
func wireEvents(ctx context.Context, store *files.ConfigStore, sessions *panel.SessionManager, bus *events.Bus) {
	store.AddChangeHook(func(c files.ConfigChange) {
		bus.Emit(ctx, events.ConfigChangedEvent{Scope: c.Scope, Patch: c.Patch, Document: c.Document, At: c.At})
	})
	sessions.OnStart(func(s panel.Session) {
		bus.Emit(ctx, events.SessionStartedEvent{SessionID: s.ID, UserID: s.UserID, GuildID: s.GuildID, At: s.StartTime})
	})
	sessions.OnEnd(func(s panel.Session, reason panel.EndReason) {
		bus.Emit(ctx, events.SessionEndedEvent{
			SessionID: s.ID,
			UserID:    s.UserID,
			GuildID:   s.GuildID,
			Reason:    string(reason),
			Duration:  s.LastActivity.Sub(s.StartTime),
		})
	})

	bus.Subscribe(events.EventTypeSessionEnded, func(_ context.Context, e events.Event) {
		evt := e.(events.SessionEndedEvent)
		log.DiscordLogger().Info("Configuration panel closed",
			"guild", evt.GuildID, "user", evt.UserID, "reason", evt.Reason, "duration", evt.Duration.String())
	})
}

// wirePublisher forwards config changes to pub through the task router, one
// group per scope so changes for a guild leave in commit order.
func wirePublisher(bus *events.Bus, tasks *task.TaskRouter, pub ChangePublisher) {
	tasks.RegisterHandler(TaskPublishChange, func(ctx context.Context, payload any) error {
		evt, ok := payload.(events.ConfigChangedEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		return pub.PublishConfigChange(ctx, evt)
	})

	bus.Subscribe(events.EventTypeConfigChanged, func(ctx context.Context, e events.Event) {
		evt := e.(events.ConfigChangedEvent)
		err := tasks.Dispatch(ctx, task.Task{
			Type:    TaskPublishChange,
			Payload: evt,
			Options: task.TaskOptions{GroupKey: evt.Scope},
		})
		if err != nil {
			log.ApplicationLogger().Warn("Config change not forwarded", "scope", evt.Scope, "err", err)
		}
	})
}

// wireRemoteChanges drops cached documents that another instance changed.
func wireRemoteChanges(pub *events.NATSPublisher, store *files.ConfigStore) error {
	return pub.SubscribeRemoteChanges(func(msg events.ConfigChangeMessage) {
		store.Invalidate(msg.Scope)
		log.ApplicationLogger().Debug("Config invalidated by remote change", "scope", msg.Scope, "instance", msg.Instance)
	})
}

// scheduleSweep reclaims expired sessions on the task router. The returned
// func stops the schedule.
func scheduleSweep(tasks *task.TaskRouter, sessions *panel.SessionManager) func() {
	tasks.RegisterHandler(TaskSweepSessions, func(context.Context, any) error {
		if n := sessions.Sweep(); n > 0 {
			log.DiscordLogger().Info("Expired configuration sessions swept", "count", n)
		}
		return nil
	})
	return tasks.ScheduleEvery(sessions.Config().SweepInterval, task.Task{
		Type:    TaskSweepSessions,
		Options: task.TaskOptions{GroupKey: "sessions", MaxAttempts: 1},
	})
}

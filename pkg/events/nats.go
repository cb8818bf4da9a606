package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// ConfigSubjectPrefix prefixes the per-scope subjects, e.g. guildpanel.config.123.
const ConfigSubjectPrefix = "guildpanel.config."

// ConfigChangeMessage is the wire form of ConfigChangedEvent.
type ConfigChangeMessage struct {
	Instance string       `json:"instance"`
	Scope    string       `json:"scope"`
	Patch    document.Map `json:"patch"`
	At       time.Time    `json:"at"`
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
	Close()
}

// NATSPublisher mirrors committed configuration changes to NATS so other
// bot instances sharing the same backend can drop stale cached documents.
type NATSPublisher struct {
	servers  string
	instance string

	mu   sync.Mutex
	conn Conn
	subs []*nats.Subscription
}

func NewNATSPublisher(servers, instance string) *NATSPublisher {
	return &NATSPublisher{servers: servers, instance: instance}
}

// NewNATSPublisherWithConn wraps an existing connection, mainly for tests.
func NewNATSPublisherWithConn(conn Conn, instance string) *NATSPublisher {
	return &NATSPublisher{conn: conn, instance: instance}
}

func (p *NATSPublisher) Instance() string { return p.instance }

// Connect dials the configured servers with reconnect handling.
func (p *NATSPublisher) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := []nats.Option{
		nats.Name("guildpanel-" + p.instance),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.ApplicationLogger().Warn("NATS disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.ApplicationLogger().Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(p.servers, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	p.mu.Lock()
	p.conn = nc
	p.mu.Unlock()
	log.ApplicationLogger().Info("Connected to NATS", "servers", p.servers, "instance", p.instance)
	return nil
}

// Subject returns the subject used for scope.
func Subject(scope string) string { return ConfigSubjectPrefix + scope }

// PublishConfigChange publishes evt and waits for the server to acknowledge
// the flush, so a failure surfaces to the caller for retry.
func (p *NATSPublisher) PublishConfigChange(ctx context.Context, evt ConfigChangedEvent) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("NATS publisher not connected")
	}

	data, err := json.Marshal(ConfigChangeMessage{
		Instance: p.instance,
		Scope:    evt.Scope,
		Patch:    evt.Patch,
		At:       evt.At.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode config change: %w", err)
	}
	if err := conn.Publish(Subject(evt.Scope), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(evt.Scope), err)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", Subject(evt.Scope), err)
	}
	return nil
}

// SubscribeRemoteChanges calls fn for changes published by other instances.
func (p *NATSPublisher) SubscribeRemoteChanges(fn func(ConfigChangeMessage)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("NATS publisher not connected")
	}
	sub, err := p.conn.Subscribe(ConfigSubjectPrefix+"*", func(msg *nats.Msg) {
		p.handleRemote(msg.Subject, msg.Data, fn)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s*: %w", ConfigSubjectPrefix, err)
	}
	p.subs = append(p.subs, sub)
	return nil
}

func (p *NATSPublisher) handleRemote(subject string, data []byte, fn func(ConfigChangeMessage)) {
	var msg ConfigChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.ApplicationLogger().Warn("Dropping malformed config change message", "subject", subject, "err", err)
		return
	}
	if msg.Instance == p.instance {
		return
	}
	if msg.Scope == "" {
		msg.Scope = strings.TrimPrefix(subject, ConfigSubjectPrefix)
	}
	fn(msg)
}

// Close drains subscriptions and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn.Close()
	p.conn = nil
	p.subs = nil
	return err
}

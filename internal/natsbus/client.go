package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/evomap/internal/dashboard"
	"github.com/nats-io/nats.go"
)

type Client struct {
	conn *nats.Conn
}

func NewClient(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("evomap-dashboard"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.conn.Publish(topic, data)
}

func (c *Client) Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, handler)
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

func (c *Client) Close() {
	c.conn.Close()
}

// Sink publishes dashboard events on per-session topics.
type Sink struct {
	client *Client
}

func NewSink(c *Client) *Sink {
	return &Sink{client: c}
}

func (s *Sink) Name() string {
	return "nats"
}

func (s *Sink) Publish(_ context.Context, event dashboard.Event) error {
	var topic string
	switch event.Type {
	case dashboard.EventActivity:
		topic = TopicDashboardActivity(event.SessionID)
	case dashboard.EventConnection:
		topic = TopicDashboardConnection(event.SessionID)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}
	if err := s.client.PublishJSON(topic, event); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

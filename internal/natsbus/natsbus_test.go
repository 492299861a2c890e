package natsbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mtzanidakis/evomap/internal/activity"
	"github.com/mtzanidakis/evomap/internal/dashboard"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func newTestServer(t *testing.T) *natsserver.Server {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   natsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("failed to create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ns := newTestServer(t)
	client, err := NewClient(ns.ClientURL())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestPublishJSON(t *testing.T) {
	client := newTestClient(t)

	received := make(chan string, 1)
	_, err := client.Subscribe("test.json", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	payload := map[string]string{"key": "value"}
	if err := client.PublishJSON("test.json", payload); err != nil {
		t.Fatalf("publish json error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != `{"key":"value"}` {
			t.Errorf("expected json, got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSinkTopics(t *testing.T) {
	client := newTestClient(t)

	received := make(chan *nats.Msg, 2)
	_, err := client.Subscribe(TopicDashboardAll, func(msg *nats.Msg) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	client.Flush()

	sink := NewSink(client)
	ctx := context.Background()
	err = sink.Publish(ctx, dashboard.Event{
		Type:      dashboard.EventActivity,
		SessionID: "s1",
		Payload:   activity.Message{ID: 7, AgentName: "Scout", Text: "crawling", Status: "busy"},
	})
	if err != nil {
		t.Fatalf("publish activity: %v", err)
	}
	err = sink.Publish(ctx, dashboard.Event{
		Type:      dashboard.EventConnection,
		SessionID: "s1",
		Payload:   dashboard.ConnectionPayload{State: "connected", Connected: true},
	})
	if err != nil {
		t.Fatalf("publish connection: %v", err)
	}
	client.Flush()

	want := []string{"events.dashboard.s1.activity", "events.dashboard.s1.connection"}
	for i, topic := range want {
		select {
		case msg := <-received:
			if msg.Subject != topic {
				t.Errorf("message %d: expected subject %s, got %s", i, topic, msg.Subject)
			}
			var decoded struct {
				Type      string         `json:"type"`
				SessionID string         `json:"session_id"`
				Payload   map[string]any `json:"payload"`
			}
			if err := json.Unmarshal(msg.Data, &decoded); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if decoded.SessionID != "s1" {
				t.Errorf("expected session s1, got %s", decoded.SessionID)
			}
			if i == 0 && decoded.Payload["agentName"] != "Scout" {
				t.Errorf("expected agentName Scout, got %v", decoded.Payload["agentName"])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", topic)
		}
	}
}

func TestSinkRejectsUnknownType(t *testing.T) {
	client := newTestClient(t)
	sink := NewSink(client)
	if err := sink.Publish(context.Background(), dashboard.Event{Type: "bogus"}); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicDashboardActivity("s1"); got != "events.dashboard.s1.activity" {
		t.Errorf("expected events.dashboard.s1.activity, got %s", got)
	}
	if got := TopicDashboardConnection("s1"); got != "events.dashboard.s1.connection" {
		t.Errorf("expected events.dashboard.s1.connection, got %s", got)
	}
}

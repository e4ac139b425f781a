package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
)

const DefaultTopic = "foodctl.session.ended"

// Event describes a session that just ended.
type Event struct {
	Reason   Reason
	Username string
	At       time.Time
	Cause    error
}

// Sink is told when a session ends so the host can send the user back to a
// login surface.
type Sink interface {
	SessionEnded(ctx context.Context, ev Event)
}

type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) SessionEnded(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) SessionEnded(ctx context.Context, ev Event) {
	for _, sink := range m {
		if sink != nil {
			sink.SessionEnded(ctx, ev)
		}
	}
}

// WriterSink prints a login hint for expired sessions. Logouts are silent.
type WriterSink struct {
	W    io.Writer
	Hint string
}

func (w WriterSink) SessionEnded(_ context.Context, ev Event) {
	if ev.Reason != ReasonExpired || w.W == nil {
		return
	}
	hint := w.Hint
	if hint == "" {
		hint = "run 'foodctl auth login'"
	}
	_, _ = fmt.Fprintf(w.W, "Session expired; %s\n", hint)
}

// EventPayload is the JSON body published for each ended session.
type EventPayload struct {
	Reason   Reason    `json:"reason"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
	Cause    string    `json:"cause,omitempty"`
}

// PublisherSink publishes session events to a watermill topic.
type PublisherSink struct {
	publisher message.Publisher
	topic     string
	log       *zap.SugaredLogger
}

func NewPublisherSink(publisher message.Publisher, topic string, log *zap.SugaredLogger) *PublisherSink {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PublisherSink{publisher: publisher, topic: topic, log: log}
}

func (p *PublisherSink) SessionEnded(ctx context.Context, ev Event) {
	payload := EventPayload{Reason: ev.Reason, Username: ev.Username, At: ev.At.UTC()}
	if ev.Cause != nil {
		payload.Cause = ev.Cause.Error()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Warnw("Failed to marshal session event", "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	msg.Metadata.Set("reason", string(ev.Reason))
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.log.Warnw("Failed to publish session event", "topic", p.topic, "error", err)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// QueueTopic is the topic of queue snapshots.
const QueueTopic = "queue"

// ProposalTopic is the topic of one proposal's snapshots.
func ProposalTopic(id uuid.UUID) string { return "proposal:" + id.String() }

// MatchTopic is the topic of one match's snapshots.
func MatchTopic(id uuid.UUID) string { return "match:" + id.String() }

// ParseTopic validates a subscription topic.
func ParseTopic(topic string) (scope string, id uuid.UUID, err error) {
	if topic == QueueTopic {
		return QueueTopic, uuid.Nil, nil
	}
	scope, raw, ok := strings.Cut(topic, ":")
	if !ok || (scope != "proposal" && scope != "match") {
		return "", uuid.Nil, fmt.Errorf("unknown topic %q", topic)
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("topic %q: invalid id: %w", topic, err)
	}
	return scope, id, nil
}

// Snapshotter reads the current state behind a topic.
type Snapshotter interface {
	QueueSnapshot() models.QueueSnapshot
	Proposal(id uuid.UUID) (models.Proposal, error)
	Match(id uuid.UUID) (models.Match, error)
}

// PushMessage is what websocket subscribers receive.
type PushMessage struct {
	Topic     string           `json:"topic"`
	EventType events.EventType `json:"event_type,omitempty"`
	Snapshot  any              `json:"snapshot"`
}

// Pusher turns lifecycle events into fresh snapshots for websocket
// subscribers. It is an events.Publisher fed by the relay.
type Pusher struct {
	cm    *ConnectionManager
	snaps Snapshotter
}

// NewPusher creates a pusher.
func NewPusher(cm *ConnectionManager, snaps Snapshotter) *Pusher {
	return &Pusher{cm: cm, snaps: snaps}
}

// Publish implements events.Publisher. Events for topics nobody watches
// are skipped without reading state.
func (p *Pusher) Publish(_ context.Context, ev events.Event) error {
	topic, err := topicOf(ev)
	if err != nil {
		return err
	}
	if p.cm.Subscribers(topic) == 0 {
		return nil
	}
	data, err := p.Render(topic, ev.Type)
	if err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("skipping push")
		return nil
	}
	p.cm.Broadcast(topic, data)
	return nil
}

// Render encodes the current snapshot of topic.
func (p *Pusher) Render(topic string, typ events.EventType) ([]byte, error) {
	scope, id, err := ParseTopic(topic)
	if err != nil {
		return nil, err
	}

	var snap any
	switch scope {
	case QueueTopic:
		snap = p.snaps.QueueSnapshot()
	case "proposal":
		snap, err = p.snaps.Proposal(id)
	case "match":
		snap, err = p.snaps.Match(id)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", topic, err)
	}

	data, err := json.Marshal(PushMessage{Topic: topic, EventType: typ, Snapshot: snap})
	if err != nil {
		return nil, fmt.Errorf("marshal push for %s: %w", topic, err)
	}
	return data, nil
}

func topicOf(ev events.Event) (string, error) {
	switch ev.Type.Scope() {
	case "queue":
		return QueueTopic, nil
	case "proposal", "match":
		return ev.Type.Scope() + ":" + ev.AggregateID, nil
	}
	return "", fmt.Errorf("no topic for event %s", ev.Type)
}

// Package events carries lifecycle notifications out of the engine.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventTypeQueueUpdated       EventType = "QueueUpdated"
	EventTypeCohortFormed       EventType = "QueueCohortFormed"
	EventTypeProposalCreated    EventType = "ProposalCreated"
	EventTypeProposalUpdated    EventType = "ProposalUpdated"
	EventTypeProposalReady      EventType = "ProposalReady"
	EventTypeProposalCancelled  EventType = "ProposalCancelled"
	EventTypeMatchCreated       EventType = "MatchCreated"
	EventTypeMatchPhaseChanged  EventType = "MatchPhaseChanged"
	EventTypeMatchActionApplied EventType = "MatchActionApplied"
	EventTypeMatchAutoResolved  EventType = "MatchAutoResolved"
	EventTypeMatchFinished      EventType = "MatchFinished"
)

// Scope returns the aggregate family the event belongs to.
func (t EventType) Scope() string {
	s := string(t)
	switch {
	case strings.HasPrefix(s, "Queue"):
		return "queue"
	case strings.HasPrefix(s, "Proposal"):
		return "proposal"
	case strings.HasPrefix(s, "Match"):
		return "match"
	}
	return ""
}

// QueueAggregateID is the aggregate id used for queue events.
const QueueAggregateID = "queue"

// Event is the envelope handed to publishers.
type Event struct {
	ID          uuid.UUID       `json:"event_id"`
	Type        EventType       `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// New builds an event, marshalling payload to JSON.
func New(typ EventType, aggregateID string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:          uuid.New(),
		Type:        typ,
		AggregateID: aggregateID,
		Timestamp:   at.UTC(),
		Payload:     data,
	}, nil
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(Event)
}

// Emit builds and hands an event to em. Marshal failures are logged and
// dropped; a notification must never fail a committed command.
func Emit(em Emitter, typ EventType, aggregateID string, at time.Time, payload any) {
	if em == nil {
		return
	}
	ev, err := New(typ, aggregateID, at, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	em.Emit(ev)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

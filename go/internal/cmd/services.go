package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/archive"
	"github.com/mcdev12/matchroom/go/internal/config"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/gateway"
)

type Services struct {
	Engine      *gateway.Engine
	Relay       *events.Relay
	Connections *gateway.ConnectionManager
	Pusher      *gateway.Pusher
	Archive     *archive.Store

	closers []func() error
}

// setupServices wires the engine and its event sinks. The relay feeds the
// log, NATS and the archive when enabled, and the websocket pusher.
func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	s := &Services{
		Connections: gateway.NewConnectionManager(gateway.DefaultConnectionConfig()),
	}

	sinks := []events.Sink{{Name: "log", Publisher: events.LogPublisher{}}}

	if cfg.NATS.Enabled {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.Stream
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		js, err := events.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("setup nats: %w", err)
		}
		s.closers = append(s.closers, js.Close)
		sinks = append(sinks, events.Sink{Name: "nats", Publisher: js})
	}

	if cfg.Archive.Enabled {
		db, err := archive.Open(ctx, cfg.Archive.DB)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("setup archive: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.Archive = archive.NewStore(db)
		sinks = append(sinks, events.Sink{Name: "archive", Publisher: s.Archive})
	}

	// The pusher reads snapshots from the engine, which needs the relay
	// first; the sink resolves it at delivery time.
	sinks = append(sinks, events.Sink{Name: "push", Publisher: events.PublisherFunc(func(ctx context.Context, ev events.Event) error {
		return s.Pusher.Publish(ctx, ev)
	})})
	s.Relay = events.NewRelay(events.DefaultRelayConfig(), sinks...)

	s.Engine = gateway.NewEngine(gateway.Options{
		Queue:    cfg.Rules.Queue(),
		Proposal: cfg.Rules.Proposal(),
		Match:    cfg.Rules.Match(),
		Policy:   cfg.Rules.Policy(),
		Clock:    clockwork.NewRealClock(),
		Events:   s.Relay,
	})
	s.Pusher = gateway.NewPusher(s.Connections, s.Engine)

	names := make([]string, len(sinks))
	for i, sink := range sinks {
		names[i] = sink.Name
	}
	log.Info().Strs("sinks", names).Msg("services ready")
	return s, nil
}

// Close stops the engine and releases external connections.
func (s *Services) Close() error {
	if s.Engine != nil {
		s.Engine.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

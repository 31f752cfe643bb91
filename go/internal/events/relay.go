package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RelayConfig tunes delivery to sinks.
type RelayConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRelayConfig returns sensible delivery settings.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BufferSize: 1024,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Sink is a named publisher fed by the relay.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Relay fans emitted events out to sinks asynchronously. Each sink has its
// own buffer so a slow sink only delays itself; when a buffer is full the
// event is dropped for that sink.
type Relay struct {
	config RelayConfig
	sinks  []Sink
	queues []chan Event
}

// NewRelay creates a relay delivering to sinks.
func NewRelay(cfg RelayConfig, sinks ...Sink) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultRelayConfig().BufferSize
	}
	r := &Relay{config: cfg, sinks: sinks}
	for range sinks {
		r.queues = append(r.queues, make(chan Event, cfg.BufferSize))
	}
	return r
}

// Emit implements Emitter. It never blocks.
func (r *Relay) Emit(e Event) {
	for i, q := range r.queues {
		select {
		case q <- e:
		default:
			log.Warn().
				Str("sink", r.sinks[i].Name).
				Str("event_type", string(e.Type)).
				Str("aggregate_id", e.AggregateID).
				Msg("relay buffer full, dropping event")
		}
	}
}

// Run delivers events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range r.sinks {
		sink, q := r.sinks[i], r.queues[i]
		g.Go(func() error {
			log.Info().Str("sink", sink.Name).Msg("event relay started")
			for {
				select {
				case <-ctx.Done():
					log.Info().Str("sink", sink.Name).Msg("event relay stopped")
					return nil
				case e := <-q:
					if err := r.publishWithRetry(ctx, sink, e); err != nil {
						log.Error().
							Err(err).
							Str("sink", sink.Name).
							Str("event_id", e.ID.String()).
							Str("event_type", string(e.Type)).
							Msg("failed to publish event")
					}
				}
			}
		})
	}
	return g.Wait()
}

func (r *Relay) publishWithRetry(ctx context.Context, sink Sink, e Event) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := sink.Publisher.Publish(ctx, e); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("sink", sink.Name).
				Str("event_id", e.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

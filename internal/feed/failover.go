package feed

import (
	"context"
	"log/slog"

	"github.com/MrWong99/voxline/internal/resilience"
)

// Endpoint is a named [Source] taking part in a [Failover].
type Endpoint struct {
	Name   string
	Source Source
}

// Failover streams from the first healthy endpoint of an ordered list. Each
// endpoint sits behind its own circuit breaker, so an endpoint that keeps
// failing is skipped until its reset timeout elapses. A failure of the sink
// (emit returning an error) ends the stream without touching the breakers.
//
// Failover does not wait between endpoints; wrap it in a [Reconnector] for
// backoff once every endpoint has failed.
type Failover struct {
	group *resilience.Group[Source]
}

// NewFailover builds a Failover over endpoints in priority order. cfg is the
// template for every endpoint's breaker.
func NewFailover(cfg resilience.CircuitBreakerConfig, endpoints ...Endpoint) *Failover {
	g := resilience.NewGroup[Source](cfg)
	for _, ep := range endpoints {
		g.Add(ep.Name, ep.Source)
	}
	return &Failover{group: g}
}

// Stream implements [Source].
func (f *Failover) Stream(ctx context.Context, emit func(Event) error) error {
	return f.group.Do(ctx, func(name string, src Source) error {
		var sinkErr error
		err := src.Stream(ctx, func(ev Event) error {
			if err := emit(ev); err != nil {
				sinkErr = err
				return err
			}
			return nil
		})
		if err != nil && sinkErr != nil {
			return resilience.Permanent(err)
		}
		if err == nil {
			slog.Debug("feed: endpoint stream finished", "endpoint", name)
		}
		return err
	})
}

// States reports the breaker state of every endpoint by name.
func (f *Failover) States() map[string]resilience.State {
	return f.group.States()
}

var _ Source = (*Failover)(nil)

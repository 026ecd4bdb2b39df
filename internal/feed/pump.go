package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/audio"
)

// Sink receives decoded segments. *playback.Engine satisfies it.
type Sink interface {
	Append(seg audio.Segment) error
	Format() audio.Format
}

// Stats counts what a [Pump] has processed.
type Stats struct {
	Events   int `json:"events"`
	Segments int `json:"segments"`
	Rejected int `json:"rejected"`
}

// PumpOption configures a [Pump].
type PumpOption func(*Pump)

// WithMetrics records feed and segment counters to m. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PumpOption {
	return func(p *Pump) { p.metrics = m }
}

// WithTextHandler is called for every text event, in arrival order.
func WithTextHandler(fn func(Event)) PumpOption {
	return func(p *Pump) { p.onText = fn }
}

// Pump decodes audio events and appends them to a [Sink] in arrival order.
// A chunk that fails to decode is rejected on its own; later chunks still
// play. Handle is safe for concurrent use, but arrival order across
// concurrent callers is whatever order their calls are serialized in.
type Pump struct {
	sink    Sink
	metrics *observe.Metrics
	onText  func(Event)

	mu    sync.Mutex
	seq   uint64
	stats Stats
}

// NewPump returns a [Pump] feeding sink.
func NewPump(sink Sink, opts ...PumpOption) *Pump {
	p := &Pump{sink: sink}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Handle processes one event. The returned error describes a rejected audio
// chunk; callers log it and carry on with the next event.
func (p *Pump) Handle(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Events++
	p.metrics.RecordFeedEvent(ctx, string(ev.Type))

	switch ev.Type {
	case TypeAudio:
		seg, err := audio.Decode(ev.AudioPayload(), p.sink.Format())
		if err != nil {
			p.reject(ctx, err)
			return err
		}
		p.seq++
		seg.Seq = p.seq
		if err := p.sink.Append(seg); err != nil {
			p.reject(ctx, err)
			return err
		}
		p.stats.Segments++
		p.metrics.RecordSegment(ctx)
	case TypeText:
		if p.onText != nil {
			p.onText(ev)
		}
	case TypeStreamEnd:
		observe.Logger(ctx).Debug("feed: response complete", "segments", p.stats.Segments)
	default:
		observe.Logger(ctx).Debug("feed: ignoring event", "type", ev.Type)
	}
	return nil
}

func (p *Pump) reject(ctx context.Context, err error) {
	p.stats.Rejected++
	if errors.Is(err, audio.ErrDecode) {
		p.metrics.RecordDecodeError(ctx)
	}
	observe.Logger(ctx).Warn("feed: audio chunk rejected", "err", err)
}

// Run streams src into the pump until src ends or ctx is cancelled. Rejected
// chunks do not stop the stream.
func (p *Pump) Run(ctx context.Context, src Source) error {
	return src.Stream(ctx, func(ev Event) error {
		_ = p.Handle(ctx, ev)
		return nil
	})
}

// Stats returns the counters so far.
func (p *Pump) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

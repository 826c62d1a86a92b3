// Package broadcast pushes the full session table and online table to every
// registered sink after each committed change.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sasha-s/go-deadlock"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/storage"
)

// Frame is one encoded envelope ready for the wire
type Frame struct {
	Event model.EventType
	Data  []byte
}

// Sink receives every published batch of frames
type Sink interface {
	Deliver(ctx context.Context, frames []Frame) error
}

// Publisher snapshots the tables and fans them out. Publishes are
// serialized so a sink never receives an older snapshot after a newer one.
type Publisher struct {
	storage  storage.Storage
	presence *presence.Registry
	logger   *slog.Logger

	mu    deadlock.Mutex
	sinks []Sink
	seq   uint64
}

// NewPublisher creates a publisher with no sinks
func NewPublisher(storage storage.Storage, presence *presence.Registry, logger *slog.Logger) *Publisher {
	return &Publisher{
		storage:  storage,
		presence: presence,
		logger:   logger.With(slog.String("component", "broadcast")),
	}
}

// AddSink registers a sink for future publishes
func (p *Publisher) AddSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// Snapshot reads both tables
func (p *Publisher) Snapshot(ctx context.Context) (model.Snapshot, error) {
	sessions, err := p.storage.ListSessions(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	games := make(map[model.SessionID]*model.Session, len(sessions))
	for _, s := range sessions {
		games[s.ID] = s
	}
	return model.Snapshot{Games: games, Online: p.presence.Online()}, nil
}

// Frames encodes the current snapshot as the two outbound table events
func (p *Publisher) Frames(ctx context.Context) ([]Frame, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	games, err := Encode(model.EventListOfGames, snap.Games)
	if err != nil {
		return nil, err
	}
	online, err := Encode(model.EventOnlineList, snap.Online)
	if err != nil {
		return nil, err
	}
	return []Frame{games, online}, nil
}

// Publish sends the current tables to every sink. A failing sink is logged
// and does not stop delivery to the others.
func (p *Publisher) Publish(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames, err := p.Frames(ctx)
	if err != nil {
		return err
	}
	p.seq++
	for _, sink := range p.sinks {
		if err := sink.Deliver(ctx, frames); err != nil {
			p.logger.Warn("sink delivery failed",
				slog.Uint64("seq", p.seq),
				slog.String("error", err.Error()),
			)
		}
	}
	p.logger.Debug("published", slog.Uint64("seq", p.seq), slog.Int("sinks", len(p.sinks)))
	return nil
}

// Published returns how many publishes have completed
func (p *Publisher) Published() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Encode wraps payload in an envelope for event
func Encode(event model.EventType, payload any) (Frame, error) {
	data, err := json.Marshal(model.Envelope{Event: event, Payload: payload})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

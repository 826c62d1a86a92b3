package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/storage/memory"
	"github.com/lanarcade/gamehub/internal/testutil"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Frame
	err     error
}

func (r *recordingSink) Deliver(ctx context.Context, frames []Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, frames)
	return r.err
}

type PublisherSuite struct {
	suite.Suite
	storage   *memory.Storage
	presence  *presence.Registry
	publisher *Publisher
	ctx       context.Context
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.storage = memory.New()
	s.presence = presence.NewRegistry(mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	s.publisher = NewPublisher(s.storage, s.presence, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *PublisherSuite) TestPublishSendsBothTables() {
	sink := &recordingSink{}
	s.publisher.AddSink(sink)
	_ = s.storage.SaveSession(s.ctx, &model.Session{ID: "g1", GameType: model.GameChess, State: json.RawMessage(`{}`)})
	s.presence.Add("c1", "10.0.0.1", "ws")
	s.presence.Set("c1", model.Presence{Login: "alice", Path: "/"})

	s.Require().NoError(s.publisher.Publish(s.ctx))

	s.Require().Len(sink.batches, 1)
	frames := sink.batches[0]
	s.Require().Len(frames, 2)
	s.Equal(model.EventListOfGames, frames[0].Event)
	s.Equal(model.EventOnlineList, frames[1].Event)

	var games struct {
		Event   string                            `json:"event"`
		Payload map[model.SessionID]model.Session `json:"payload"`
	}
	s.Require().NoError(json.Unmarshal(frames[0].Data, &games))
	s.Equal("list of games", games.Event)
	s.Contains(games.Payload, model.SessionID("g1"))

	s.JSONEq(`{"event":"online list","payload":{"alice":"/"}}`, string(frames[1].Data))
}

func (s *PublisherSuite) TestFailingSinkDoesNotBlockOthers() {
	broken := &recordingSink{err: errors.New("boom")}
	healthy := &recordingSink{}
	s.publisher.AddSink(broken)
	s.publisher.AddSink(healthy)

	s.Require().NoError(s.publisher.Publish(s.ctx))

	s.Len(healthy.batches, 1)
	s.Equal(uint64(1), s.publisher.Published())
}

func (s *PublisherSuite) TestLaterPublishCarriesLaterState() {
	sink := &recordingSink{}
	s.publisher.AddSink(sink)

	s.Require().NoError(s.publisher.Publish(s.ctx))
	_ = s.storage.SaveSession(s.ctx, &model.Session{ID: "g1", State: json.RawMessage(`{}`)})
	s.Require().NoError(s.publisher.Publish(s.ctx))

	s.Require().Len(sink.batches, 2)
	s.JSONEq(`{"event":"list of games","payload":{}}`, string(sink.batches[0][0].Data))
	s.Contains(string(sink.batches[1][0].Data), `"g1"`)
}

func (s *PublisherSuite) TestConcurrentPublishesAreSerialized() {
	sink := &recordingSink{}
	s.publisher.AddSink(sink)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.publisher.Publish(s.ctx)
		}()
	}
	wg.Wait()

	s.Len(sink.batches, 20)
	s.Equal(uint64(20), s.publisher.Published())
}

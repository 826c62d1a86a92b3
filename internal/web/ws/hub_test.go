package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
	"github.com/lanarcade/gamehub/internal/rules/connect4"
	"github.com/lanarcade/gamehub/internal/services/bot"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/services/identity"
	"github.com/lanarcade/gamehub/internal/services/lobby"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/services/session"
	"github.com/lanarcade/gamehub/internal/storage/memory"
	"github.com/lanarcade/gamehub/internal/testutil"
)

type envelope struct {
	Event   model.EventType `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type HubSuite struct {
	suite.Suite
	presence *presence.Registry
	hub      *Hub
	server   *httptest.Server
	url      string
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.start(DefaultConfig())
}

func (s *HubSuite) TearDownTest() {
	s.hub.Close()
	s.server.Close()
}

func (s *HubSuite) start(cfg Config) {
	logger := testutil.NopLogger()
	storage := memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	rnd := mocks.NewMockRandom()
	s.presence = presence.NewRegistry(clk)
	publisher := broadcast.NewPublisher(storage, s.presence, logger)
	sessions := session.NewController(storage, rules.NewRegistry(connect4.New(rnd)), bot.NewService(logger), clk, rnd, logger)
	ids := identity.New(storage, clk, identity.DefaultConfig(), logger)
	service := lobby.NewService(ids, sessions, s.presence, publisher, logger)

	s.hub = NewHub(service, cfg, logger)
	publisher.AddSink(s.hub)
	s.server = httptest.NewServer(s.hub)
	s.url = "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// restart replaces the suite's server with one using cfg
func (s *HubSuite) restart(cfg Config) {
	s.TearDownTest()
	s.start(cfg)
}

func (s *HubSuite) dial() *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *HubSuite) send(conn *websocket.Conn, event model.EventType, payload any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"event": event, "payload": payload}))
}

// next reads frames until one for event arrives
func (s *HubSuite) next(conn *websocket.Conn, event model.EventType) envelope {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env envelope
		s.Require().NoError(conn.ReadJSON(&env))
		if env.Event == event {
			return env
		}
	}
}

func (s *HubSuite) register(conn *websocket.Conn, login string) string {
	s.send(conn, model.EventUserOnline, map[string]string{"login": login})
	var reply struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(s.next(conn, model.EventUseToken).Payload, &reply))
	s.send(conn, model.EventUserOnline, map[string]string{"login": login, "token": reply.Token, "path": "/"})
	return reply.Token
}

func (s *HubSuite) TestNewConnectionReceivesBothTables() {
	conn := s.dial()
	games := s.next(conn, model.EventListOfGames)
	s.JSONEq(`{}`, string(games.Payload))
	s.next(conn, model.EventOnlineList)
	s.Eventually(func() bool { return s.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestRegistrationAndOnlineList() {
	conn := s.dial()
	s.register(conn, "alice")

	for {
		online := s.next(conn, model.EventOnlineList)
		if strings.Contains(string(online.Payload), "alice") {
			s.JSONEq(`{"alice":"/"}`, string(online.Payload))
			break
		}
	}
}

func (s *HubSuite) TestCreatedGameIsBroadcastToEveryone() {
	alice := s.dial()
	watcher := s.dial()
	token := s.register(alice, "alice")

	s.send(alice, model.EventCreateGame, map[string]any{
		"login": "alice", "token": token, "name": model.GameConnect4, "mode": model.ModePvP,
	})
	for {
		games := s.next(watcher, model.EventListOfGames)
		if strings.Contains(string(games.Payload), `"white":"alice"`) {
			break
		}
	}
}

func (s *HubSuite) TestRejectedRequestIsAnswered() {
	conn := s.dial()
	s.send(conn, model.EventCreateGame, map[string]any{
		"login": "mallory", "token": "guess", "name": model.GameConnect4, "mode": model.ModePvP,
	})

	var rejection Rejection
	s.Require().NoError(json.Unmarshal(s.next(conn, model.EventRequestRejected).Payload, &rejection))
	s.Equal(model.EventCreateGame, rejection.Event)
	s.Equal(apierr.CodeWrongToken, rejection.Code)
}

func (s *HubSuite) TestMalformedFrameIsRejected() {
	conn := s.dial()
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var rejection Rejection
	s.Require().NoError(json.Unmarshal(s.next(conn, model.EventRequestRejected).Payload, &rejection))
	s.Equal(apierr.CodeInvalidRequest, rejection.Code)
}

func (s *HubSuite) TestConnectionCapPerAddress() {
	s.dial()
	s.dial()

	_, resp, err := websocket.DefaultDialer.Dial(s.url, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func (s *HubSuite) TestForwardedAddressIsCounted() {
	header := http.Header{"X-Forwarded-For": []string{"10.1.1.1, 127.0.0.1"}}
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
		s.Require().NoError(err)
		s.T().Cleanup(func() { _ = conn.Close() })
	}
	_, _, err := websocket.DefaultDialer.Dial(s.url, header)
	s.Error(err)

	// a different forwarded address is unaffected
	s.dial()
}

func (s *HubSuite) TestRateLimit() {
	s.restart(Config{ConnPerIP: 2, EventsPerSecond: 0.001, Burst: 1})
	conn := s.dial()

	s.send(conn, model.EventRequestGames, nil)
	s.send(conn, model.EventRequestGames, nil)

	var rejection Rejection
	s.Require().NoError(json.Unmarshal(s.next(conn, model.EventRequestRejected).Payload, &rejection))
	s.Equal(apierr.CodeRateLimited, rejection.Code)
}

func (s *HubSuite) TestPageUpdateReachesOthersOnly() {
	alice := s.dial()
	bob := s.dial()
	s.register(alice, "alice")
	s.Eventually(func() bool {
		_, ok := s.presence.Online()["alice"]
		return ok
	}, time.Second, 10*time.Millisecond)

	s.send(alice, model.EventPageUpdated, map[string]string{"login": "alice", "page": "chess"})
	reload := s.next(bob, model.EventReloadPage)
	s.JSONEq(`{"login":"alice","page":"chess"}`, string(reload.Payload))
}

func (s *HubSuite) TestDisconnectClearsPresence() {
	conn := s.dial()
	s.register(conn, "alice")
	s.Eventually(func() bool { return len(s.presence.Online()) == 1 }, time.Second, 10*time.Millisecond)

	s.Require().NoError(conn.Close())
	s.Eventually(func() bool {
		return s.presence.Count() == 0 && s.hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestDeliverReachesEveryClient() {
	a := s.dial()
	b := s.dial()
	s.Eventually(func() bool { return s.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	frame, err := broadcast.Encode(model.EventReloadPage, map[string]string{"x": "y"})
	s.Require().NoError(err)
	s.Require().NoError(s.hub.Deliver(context.Background(), []broadcast.Frame{frame}))

	s.next(a, model.EventReloadPage)
	s.next(b, model.EventReloadPage)
}

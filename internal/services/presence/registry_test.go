package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = NewRegistry(s.clock)
}

func (s *RegistrySuite) TestAnonymousConnectionsAreNotOnline() {
	s.registry.Add("c1", "10.0.0.1", "ws")

	s.Equal(1, s.registry.Count())
	s.Empty(s.registry.Online())
}

func (s *RegistrySuite) TestSetPublishesLoginAndPath() {
	s.registry.Add("c1", "10.0.0.1", "ws")

	s.True(s.registry.Set("c1", model.Presence{Login: "alice", Path: "/chess"}))
	s.Equal(map[string]string{"alice": "/chess"}, s.registry.Online())
}

func (s *RegistrySuite) TestSetUnknownConnection() {
	s.False(s.registry.Set("ghost", model.Presence{Login: "alice"}))
	s.Empty(s.registry.Online())
}

func (s *RegistrySuite) TestLatestPathWinsAcrossConnections() {
	s.registry.Add("c1", "10.0.0.1", "ws")
	s.registry.Add("c2", "10.0.0.1", "ws")
	s.registry.Set("c1", model.Presence{Login: "alice", Path: "/chess"})
	s.clock.Advance(time.Second)
	s.registry.Set("c2", model.Presence{Login: "alice", Path: "/reversi"})

	s.Equal(map[string]string{"alice": "/reversi"}, s.registry.Online())
}

func (s *RegistrySuite) TestRemoveAndClear() {
	s.registry.Add("c1", "10.0.0.1", "ws")
	s.registry.Add("c2", "10.0.0.2", "ws")
	s.registry.Set("c1", model.Presence{Login: "alice"})
	s.registry.Set("c2", model.Presence{Login: "bob"})

	s.True(s.registry.Remove("c1"))
	s.False(s.registry.Remove("c1"))
	s.registry.Clear("c2")

	s.Equal(1, s.registry.Count())
	s.Empty(s.registry.Online())
}

func (s *RegistrySuite) TestForgetLogin() {
	s.registry.Add("c1", "10.0.0.1", "ws")
	s.registry.Add("c2", "10.0.0.1", "sse")
	s.registry.Set("c1", model.Presence{Login: "alice"})
	s.registry.Set("c2", model.Presence{Login: "alice"})

	s.Equal(2, s.registry.ForgetLogin("alice"))
	s.Empty(s.registry.Online())
	s.Equal(2, s.registry.Count())
}

func (s *RegistrySuite) TestListOrderedByConnectTime() {
	s.registry.Add("c2", "10.0.0.2", "ws")
	s.clock.Advance(time.Second)
	s.registry.Add("c1", "10.0.0.1", "sse")

	list := s.registry.List()
	s.Require().Len(list, 2)
	s.Equal(model.ConnectionID("c2"), list[0].ID)
	s.Equal("sse", list[1].Transport)
}

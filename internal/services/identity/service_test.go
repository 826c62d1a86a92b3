package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/storage/memory"
	"github.com/lanarcade/gamehub/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) issue(login, ip string) string {
	reg, err := s.service.Register(s.ctx, login, "", ip)
	s.Require().NoError(err)
	s.Require().Equal(Issued, reg.Outcome)
	return reg.Token
}

// Register tests

func (s *ServiceSuite) TestRegisterIssuesToken() {
	reg, err := s.service.Register(s.ctx, "alice", "", "10.0.0.1")
	s.Require().NoError(err)

	s.Equal(Issued, reg.Outcome)
	s.NotEmpty(reg.Token)

	user, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEqual(reg.Token, user.TokenHash)
	s.Equal("10.0.0.1", user.IP)
}

func (s *ServiceSuite) TestRegisterIgnoresTokenForUnknownLogin() {
	reg, err := s.service.Register(s.ctx, "alice", "made-up", "10.0.0.1")
	s.Require().NoError(err)
	s.Equal(Issued, reg.Outcome)
	s.NotEqual("made-up", reg.Token)
}

func (s *ServiceSuite) TestRegisterWithMatchingTokenRefreshes() {
	token := s.issue("alice", "10.0.0.1")
	s.clock.Advance(time.Minute)

	reg, err := s.service.Register(s.ctx, "alice", token, "10.0.0.2")
	s.Require().NoError(err)
	s.Equal(Refreshed, reg.Outcome)
	s.Empty(reg.Token)

	user, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal("10.0.0.2", user.IP)
	s.Equal(s.clock.Now(), user.LastSeen)
}

func (s *ServiceSuite) TestRegisterWithWrongTokenFails() {
	s.issue("alice", "10.0.0.1")

	_, err := s.service.Register(s.ctx, "alice", "not-it", "10.0.0.1")
	s.ErrorIs(err, model.ErrWrongToken)
}

func (s *ServiceSuite) TestRegisterExistingLoginWithoutTokenFails() {
	s.issue("alice", "10.0.0.1")

	_, err := s.service.Register(s.ctx, "alice", "", "10.0.0.9")
	s.ErrorIs(err, model.ErrWrongToken)
}

func (s *ServiceSuite) TestRegisterRejectsFilteredLogins() {
	for _, login := range []string{"", "   ", "Computer", "bob/../x", "a:b", "SuperAdmin", "stockfish2"} {
		_, err := s.service.Register(s.ctx, login, "", "10.0.0.1")
		s.ErrorIs(err, model.ErrInvalidLogin, login)
	}
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticate() {
	token := s.issue("alice", "10.0.0.1")

	user, err := s.service.Authenticate(s.ctx, "alice", token)
	s.Require().NoError(err)
	s.Equal("alice", user.Login)

	_, err = s.service.Authenticate(s.ctx, "alice", "")
	s.ErrorIs(err, model.ErrWrongToken)
	_, err = s.service.Authenticate(s.ctx, "nobody", token)
	s.ErrorIs(err, model.ErrWrongToken)
}

func (s *ServiceSuite) TestActRunsForAuthenticatedUser() {
	token := s.issue("alice", "10.0.0.1")

	var seen string
	s.Require().NoError(s.service.Act(s.ctx, "alice", token, func(user *model.User) error {
		seen = user.Login
		return nil
	}))
	s.Equal("alice", seen)

	failure := errors.New("seat taken")
	s.ErrorIs(s.service.Act(s.ctx, "alice", token, func(*model.User) error { return failure }), failure)

	ran := false
	err := s.service.Act(s.ctx, "alice", "nope", func(*model.User) error {
		ran = true
		return nil
	})
	s.ErrorIs(err, model.ErrWrongToken)
	s.False(ran)
}

func (s *ServiceSuite) TestLogoutWaitsForActToFinish() {
	token := s.issue("alice", "10.0.0.1")
	loggedOut := make(chan error, 1)

	err := s.service.Act(s.ctx, "alice", token, func(*model.User) error {
		go func() { loggedOut <- s.service.Logout(s.ctx, "alice", token) }()
		select {
		case <-loggedOut:
			s.Fail("logout completed while the user was acting")
		case <-time.After(50 * time.Millisecond):
		}
		// still registered for the rest of the action
		_, err := s.storage.GetUser(s.ctx, "alice")
		return err
	})
	s.Require().NoError(err)

	s.Require().NoError(<-loggedOut)
	s.ErrorIs(s.service.Act(s.ctx, "alice", token, func(*model.User) error { return nil }), model.ErrWrongToken)
}

// Address cap tests

func (s *ServiceSuite) TestFourthLoginOnAddressEvictsOldest() {
	s.issue("alice", "10.0.0.1")
	s.clock.Advance(time.Second)
	s.issue("bob", "10.0.0.1")
	s.clock.Advance(time.Second)
	s.issue("carol", "10.0.0.1")
	s.clock.Advance(time.Second)

	reg, err := s.service.Register(s.ctx, "dave", "", "10.0.0.1")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, reg.Evicted)

	_, err = s.storage.GetUser(s.ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
	count, _ := s.service.Count(s.ctx)
	s.Equal(3, count)
}

func (s *ServiceSuite) TestTouchKeepsRecentlyActiveLogins() {
	alice := s.issue("alice", "10.0.0.1")
	s.clock.Advance(time.Second)
	s.issue("bob", "10.0.0.1")
	s.clock.Advance(time.Second)
	s.issue("carol", "10.0.0.1")
	s.clock.Advance(time.Second)
	dave := s.issue("dave", "10.0.0.2")
	s.clock.Advance(time.Second)

	// alice is touched most recently so bob is the oldest once dave moves over
	_, err := s.service.Touch(s.ctx, "alice", alice, "10.0.0.1")
	s.Require().NoError(err)
	s.clock.Advance(time.Second)

	evicted, err := s.service.Touch(s.ctx, "dave", dave, "10.0.0.1")
	s.Require().NoError(err)
	s.Equal([]string{"bob"}, evicted)
}

func (s *ServiceSuite) TestEvictByIPUnderCap() {
	s.issue("alice", "10.0.0.1")

	evicted, err := s.service.EvictByIP(s.ctx, "10.0.0.1")
	s.Require().NoError(err)
	s.Empty(evicted)
}

// Logout and sweep tests

func (s *ServiceSuite) TestLogout() {
	token := s.issue("alice", "10.0.0.1")

	s.ErrorIs(s.service.Logout(s.ctx, "alice", "nope"), model.ErrWrongToken)
	s.Require().NoError(s.service.Logout(s.ctx, "alice", token))

	_, err := s.service.Authenticate(s.ctx, "alice", token)
	s.ErrorIs(err, model.ErrWrongToken)
}

func (s *ServiceSuite) TestLogoutFreesLoginForReissue() {
	token := s.issue("alice", "10.0.0.1")
	s.Require().NoError(s.service.Logout(s.ctx, "alice", token))

	again := s.issue("alice", "10.0.0.3")
	s.NotEqual(token, again)
}

func (s *ServiceSuite) TestSweepInactive() {
	s.issue("alice", "10.0.0.1")
	s.clock.Advance(200 * time.Minute)
	bob := s.issue("bob", "10.0.0.2")
	s.clock.Advance(101 * time.Minute)

	swept, err := s.service.SweepInactive(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, swept)

	_, err = s.service.Authenticate(s.ctx, "bob", bob)
	s.NoError(err)
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/config"
	"github.com/lanarcade/gamehub/internal/factory"
	"github.com/lanarcade/gamehub/internal/model"
)

type CLISuite struct {
	suite.Suite
	app       *factory.TestApp
	server    *httptest.Server
	tokenFile string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	settings := config.DefaultConfig()
	// every command dials from the same address
	settings.ConnPerIP = 10
	s.app = factory.NewTestAppWithMirror(settings, nil)
	s.server = httptest.NewServer(s.app.Handler)
	s.tokenFile = filepath.Join(s.T().TempDir(), "token")
}

func (s *CLISuite) TearDownTest() {
	s.app.Close()
	s.server.Close()
}

// run executes gamectl with args against the test server
func (s *CLISuite) run(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--server", s.server.URL,
		"--token-file", s.tokenFile,
		"--timeout", "2s",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (s *CLISuite) dial() *Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, err := Dial(context.Background(), url, 2*time.Second)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *CLISuite) TestHealth() {
	out, err := s.run("health")
	s.Require().NoError(err)
	s.Contains(out, "Status: ok")
}

func (s *CLISuite) TestStatusJSON() {
	out, err := s.run("-o", "json", "status")
	s.Require().NoError(err)

	var status StatusResult
	s.Require().NoError(json.Unmarshal([]byte(out), &status))
	s.Zero(status.ActiveGames)
	s.Equal(2, status.GamesSizeInBytes)
}

func (s *CLISuite) TestLoginSavesCredentials() {
	out, err := s.run("login", "alice")
	s.Require().NoError(err)
	s.Contains(out, "Login: alice")

	saved := &Config{TokenFile: s.tokenFile}
	s.Require().NoError(saved.LoadCredentials())
	s.Equal("alice", saved.Login)
	s.NotEmpty(saved.Token)

	// logging in again reuses the saved token
	_, err = s.run("login", "alice")
	s.Require().NoError(err)
	again := &Config{TokenFile: s.tokenFile}
	s.Require().NoError(again.LoadCredentials())
	s.Equal(saved.Token, again.Token)
}

func (s *CLISuite) TestLoginTakenByAnotherClient() {
	conn := s.dial()
	_, err := conn.Register("alice", "", "/")
	s.Require().NoError(err)

	_, err = s.run("--login", "alice", "--token", "stolen", "login", "alice")
	s.Require().Error(err)
	s.Contains(err.Error(), "taken")
}

func (s *CLISuite) TestCreateAndListGames() {
	s.app.MockRandom.QueueString("CLI001")
	_, err := s.run("login", "alice")
	s.Require().NoError(err)

	out, err := s.run("create", "connect4", "--mode", "PvE")
	s.Require().NoError(err)
	s.Contains(out, "CLI001")
	s.Contains(out, "Computer")

	out, err = s.run("-o", "json", "games")
	s.Require().NoError(err)
	var games GameList
	s.Require().NoError(json.Unmarshal([]byte(out), &games))
	s.Require().Contains(games, model.SessionID("CLI001"))
	s.Equal(model.StatusOngoing, games["CLI001"].Status)
}

func (s *CLISuite) TestMoveAgainstTheComputer() {
	s.app.MockRandom.QueueString("CLI002")
	_, err := s.run("login", "bob")
	s.Require().NoError(err)
	_, err = s.run("create", "connect4", "--mode", "PvE")
	s.Require().NoError(err)

	_, err = s.run("move", "CLI002", `{"column":3}`)
	s.Require().NoError(err)

	session, err := s.app.Sessions.Get(context.Background(), "CLI002")
	s.Require().NoError(err)
	s.Equal(2, session.Moves)
}

func (s *CLISuite) TestMoveRequiresJSON() {
	_, err := s.run("--login", "bob", "--token", "t", "move", "CLI002", "e2e4")
	s.Require().Error(err)
	s.Contains(err.Error(), "JSON")
}

func (s *CLISuite) TestRejectedRequestSurfacesCode() {
	_, err := s.run("login", "carol")
	s.Require().NoError(err)

	_, err = s.run("join", "NOPE00")
	s.Require().Error(err)
	var rejected *RejectedError
	s.Require().ErrorAs(err, &rejected)
	s.Equal(apierr.CodeSessionNotFound, rejected.Code)
}

func (s *CLISuite) TestCommandsNeedLogin() {
	_, err := s.run("create", "chess")
	s.Require().Error(err)
	s.Contains(err.Error(), "not logged in")
}

func (s *CLISuite) TestLogout() {
	_, err := s.run("login", "dave")
	s.Require().NoError(err)

	out, err := s.run("logout")
	s.Require().NoError(err)
	s.Contains(out, "Logged out dave")
	s.NoFileExists(s.tokenFile)

	s.Eventually(func() bool {
		count, err := s.app.Identity.Count(context.Background())
		return err == nil && count == 0
	}, time.Second, 10*time.Millisecond)
}

func (s *CLISuite) TestClientsListsConnections() {
	conn := s.dial()
	_, err := conn.Register("erin", "", "/reversi")
	s.Require().NoError(err)

	out, err := s.run("clients")
	s.Require().NoError(err)
	s.Contains(out, "erin at /reversi")
}

func (s *CLISuite) TestConnWrongToken() {
	conn := s.dial()
	_, err := conn.Register("frank", "", "/")
	s.Require().NoError(err)

	other := s.dial()
	_, err = other.Register("frank", "guess", "/")
	s.ErrorIs(err, ErrWrongToken)
}

func (s *CLISuite) TestClientErrors() {
	c := NewClient(s.server.URL + "/")

	err := c.Get(context.Background(), "/nope", nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "HTTP 404")

	err = decodeError(429, []byte(`{"error":{"code":"TOO_MANY_CONNECTIONS","message":"Too many connections from this address"}}`))
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal("TOO_MANY_CONNECTIONS", apiErr.Code)
}

func (s *CLISuite) TestWebsocketURL() {
	c := NewClient("https://games.lan:8484/")
	u, err := c.URL("/ws", true)
	s.Require().NoError(err)
	s.Equal("wss://games.lan:8484/ws", u)

	u, err = c.URL("/events", false)
	s.Require().NoError(err)
	s.Equal("https://games.lan:8484/events", u)
}

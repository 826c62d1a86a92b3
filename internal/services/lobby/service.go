// Package lobby turns inbound real-time events into calls on the identity,
// session and presence services, and publishes the tables after every
// change.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/services/identity"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/services/session"
)

// Publisher fans the tables out to every connection
type Publisher interface {
	Publish(ctx context.Context) error
	Frames(ctx context.Context) ([]broadcast.Frame, error)
}

// Request is one inbound event from a connection
type Request struct {
	Conn    model.ConnectionID
	IP      string
	Event   model.EventType
	Payload json.RawMessage
}

// Reply holds frames addressed by the handler itself. Table updates go
// through the publisher and are not part of the reply.
type Reply struct {
	// Direct frames go back to the requesting connection
	Direct []broadcast.Frame
	// Others frames go to every connection except the requester
	Others []broadcast.Frame
}

// payload carries the union of fields inbound events use
type payload struct {
	model.Credentials
	GameID model.SessionID `json:"gameId"`
	Mode   model.Mode      `json:"mode"`
	Name   model.GameType  `json:"name"`
	Move   json.RawMessage `json:"move"`
	Path   string          `json:"path"`
}

// tokenReply is the body of "use token" and "wrong token"
type tokenReply struct {
	Login string `json:"login"`
	Token string `json:"token"`
}

// Service dispatches inbound events
type Service struct {
	identity  *identity.Service
	sessions  *session.Controller
	presence  *presence.Registry
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates a lobby service
func NewService(
	identity *identity.Service,
	sessions *session.Controller,
	presence *presence.Registry,
	publisher Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		identity:  identity,
		sessions:  sessions,
		presence:  presence,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "lobby")),
	}
}

// Connect registers a new connection and publishes both tables. The
// transport must already route published frames to the newcomer.
func (s *Service) Connect(ctx context.Context, conn model.ConnectionID, ip, transport string) error {
	s.presence.Add(conn, ip, transport)
	return s.publisher.Publish(ctx)
}

// Disconnect forgets the connection and republishes the online list
func (s *Service) Disconnect(ctx context.Context, conn model.ConnectionID) {
	s.presence.Remove(conn)
	s.publish(ctx)
}

// Handle runs one inbound event. Errors are validation rejections or
// engine faults; in both cases nothing was changed or published.
func (s *Service) Handle(ctx context.Context, req Request) (Reply, error) {
	var p payload
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return Reply{}, fmt.Errorf("%w: %v", model.ErrMalformedRequest, err)
		}
	}

	switch req.Event {
	case model.EventRequestGames:
		return s.listGames(ctx)
	case model.EventUserOnline:
		return s.online(ctx, req, p)
	case model.EventUserOffline:
		s.presence.Clear(req.Conn)
		s.publish(ctx)
		return Reply{}, nil
	case model.EventLogout:
		return Reply{}, s.logout(ctx, p)
	case model.EventPageUpdated:
		return s.relay(req, p)
	case model.EventCreateGame:
		return Reply{}, s.authorized(ctx, p, func() error {
			_, err := s.sessions.Create(ctx, p.Name, p.Mode, p.Login)
			return err
		})
	case model.EventJoinGame:
		return Reply{}, s.authorized(ctx, p, func() error {
			_, err := s.sessions.Join(ctx, p.GameID, p.Login)
			return err
		})
	case model.EventLeaveGame:
		return Reply{}, s.authorized(ctx, p, func() error {
			_, err := s.sessions.Leave(ctx, p.GameID, p.Login)
			return err
		})
	case model.EventGameOver:
		return Reply{}, s.authorized(ctx, p, func() error {
			_, err := s.sessions.ForceEnd(ctx, p.GameID, p.Login)
			return err
		})
	case model.EventUpdateGame:
		return Reply{}, s.move(ctx, req, p)
	default:
		return Reply{}, fmt.Errorf("%w: unknown event %q", model.ErrMalformedRequest, req.Event)
	}
}

func (s *Service) listGames(ctx context.Context) (Reply, error) {
	frames, err := s.publisher.Frames(ctx)
	if err != nil {
		return Reply{}, err
	}
	var reply Reply
	for _, f := range frames {
		if f.Event == model.EventListOfGames {
			reply.Direct = append(reply.Direct, f)
		}
	}
	return reply, nil
}

// online registers or refreshes the login. A new login only receives its
// token; the client announces itself again with it to appear online.
func (s *Service) online(ctx context.Context, req Request, p payload) (Reply, error) {
	reg, err := s.identity.Register(ctx, p.Login, p.Token, req.IP)
	if errors.Is(err, model.ErrInvalidLogin) || errors.Is(err, model.ErrWrongToken) {
		s.logger.Info("registration refused", slog.String("login", p.Login), slog.String("reason", err.Error()))
		frame, encErr := broadcast.Encode(model.EventWrongToken, tokenReply{Login: p.Login, Token: p.Token})
		if encErr != nil {
			return Reply{}, encErr
		}
		return Reply{Direct: []broadcast.Frame{frame}}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	var reply Reply
	switch reg.Outcome {
	case identity.Issued:
		frame, err := broadcast.Encode(model.EventUseToken, tokenReply{Login: reg.Login, Token: reg.Token})
		if err != nil {
			return Reply{}, err
		}
		reply.Direct = append(reply.Direct, frame)
	case identity.Refreshed:
		s.presence.Set(req.Conn, model.Presence{Login: reg.Login, Path: p.Path})
	}

	s.drop(ctx, reg.Evicted)
	if reg.Outcome == identity.Refreshed || len(reg.Evicted) > 0 {
		s.publish(ctx)
	}
	return reply, nil
}

func (s *Service) logout(ctx context.Context, p payload) error {
	if err := s.identity.Logout(ctx, p.Login, p.Token); err != nil {
		return err
	}
	s.drop(ctx, []string{p.Login})
	s.logger.Info("user logged out", slog.String("login", p.Login))
	s.publish(ctx)
	return nil
}

// relay forwards a page change to everyone else, but only for a login
// that is currently online
func (s *Service) relay(req Request, p payload) (Reply, error) {
	if _, ok := s.presence.Online()[p.Login]; !ok || p.Login == "" {
		return Reply{}, nil
	}
	frame, err := broadcast.Encode(model.EventReloadPage, req.Payload)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Others: []broadcast.Frame{frame}}, nil
}

func (s *Service) move(ctx context.Context, req Request, p payload) error {
	moveErr := s.identity.Act(ctx, p.Login, p.Token, func(*model.User) error {
		_, err := s.sessions.ApplyMove(ctx, p.GameID, p.Login, p.Move)
		return err
	})
	if errors.Is(moveErr, model.ErrWrongToken) {
		return moveErr
	}

	// any move attempt counts as activity, accepted or not
	evicted, err := s.identity.Touch(ctx, p.Login, p.Token, req.IP)
	if err != nil {
		s.logger.Warn("touch failed", slog.String("login", p.Login), slog.String("error", err.Error()))
	}
	s.drop(ctx, evicted)

	if moveErr != nil {
		if len(evicted) > 0 {
			s.publish(ctx)
		}
		return moveErr
	}
	s.publish(ctx)
	return nil
}

// authorized runs fn for an authenticated caller and publishes on success.
// The caller stays registered until fn returns, so a concurrent logout
// cannot leave it seated in a session.
func (s *Service) authorized(ctx context.Context, p payload, fn func() error) error {
	err := s.identity.Act(ctx, p.Login, p.Token, func(*model.User) error {
		return fn()
	})
	if err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// drop removes logins that no longer exist from every session and
// connection
func (s *Service) drop(ctx context.Context, logins []string) {
	for _, login := range logins {
		if _, err := s.sessions.LeaveAll(ctx, login); err != nil {
			s.logger.Warn("forced leave failed", slog.String("login", login), slog.String("error", err.Error()))
		}
		s.presence.ForgetLogin(login)
	}
}

func (s *Service) publish(ctx context.Context) {
	if err := s.publisher.Publish(ctx); err != nil {
		s.logger.Error("publish failed", slog.String("error", err.Error()))
	}
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanarcade/gamehub/internal/model"
)

// Envelope is one frame on the realtime channel
type Envelope struct {
	Event   model.EventType `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RejectedError is a request the server refused
type RejectedError struct {
	Event   model.EventType `json:"event"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s (%s)", e.Event, e.Message, e.Code)
}

// ErrWrongToken is returned when the server refuses a login's token
var ErrWrongToken = errors.New("wrong token for login")

// ErrNoAnswer is returned when the server stays silent, which it does for a
// move sent while the session is still resolving the previous one
var ErrNoAnswer = errors.New("no answer from server")

// Conn is a websocket connection to the lobby. It keeps the last tables
// the server pushed.
type Conn struct {
	ws      *websocket.Conn
	timeout time.Duration

	games  map[model.SessionID]*model.Session
	online map[string]string
}

// Dial connects and waits for the server's greeting, which carries both
// tables
func Dial(ctx context.Context, url string, timeout time.Duration) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.New("server refused connection: too many connections from this address")
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	c := &Conn{ws: ws, timeout: timeout}
	for c.games == nil || c.online == nil {
		if _, err := c.Next(); err != nil {
			_ = ws.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close says goodbye and closes the connection
func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// Games returns the last session table received
func (c *Conn) Games() map[model.SessionID]*model.Session {
	return c.games
}

// Online returns the last online table received
func (c *Conn) Online() map[string]string {
	return c.online
}

// Send writes one event
func (c *Conn) Send(event model.EventType, payload any) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.ws.WriteJSON(map[string]any{"event": event, "payload": payload})
}

// Next reads one frame, recording any table it carries
func (c *Conn) Next() (Envelope, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.timeout))
	var env Envelope
	if err := c.ws.ReadJSON(&env); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Envelope{}, ErrNoAnswer
		}
		return Envelope{}, fmt.Errorf("read failed: %w", err)
	}

	switch env.Event {
	case model.EventListOfGames:
		games := make(map[model.SessionID]*model.Session)
		if err := json.Unmarshal(env.Payload, &games); err != nil {
			return Envelope{}, fmt.Errorf("bad games table: %w", err)
		}
		c.games = games
	case model.EventOnlineList:
		online := make(map[string]string)
		if err := json.Unmarshal(env.Payload, &online); err != nil {
			return Envelope{}, fmt.Errorf("bad online table: %w", err)
		}
		c.online = online
	}
	return env, nil
}

// Await reads frames until match accepts one. A rejection or a wrong
// token notice ends the wait with an error.
func (c *Conn) Await(match func(Envelope) bool) (Envelope, error) {
	for {
		env, err := c.Next()
		if err != nil {
			return Envelope{}, err
		}
		switch env.Event {
		case model.EventRequestRejected:
			var rejected RejectedError
			if err := json.Unmarshal(env.Payload, &rejected); err != nil {
				return Envelope{}, fmt.Errorf("bad rejection: %w", err)
			}
			return Envelope{}, &rejected
		case model.EventWrongToken:
			return Envelope{}, ErrWrongToken
		}
		if match(env) {
			return env, nil
		}
	}
}

// Register announces login. Without a token the server issues one and the
// login is announced again with it. It returns the token in use.
func (c *Conn) Register(login, token, path string) (string, error) {
	if token == "" {
		if err := c.Send(model.EventUserOnline, map[string]string{"login": login}); err != nil {
			return "", err
		}
		env, err := c.Await(func(e Envelope) bool { return e.Event == model.EventUseToken })
		if err != nil {
			return "", err
		}
		var issued Credentials
		if err := json.Unmarshal(env.Payload, &issued); err != nil {
			return "", fmt.Errorf("bad token reply: %w", err)
		}
		token = issued.Token
	}

	err := c.Send(model.EventUserOnline, map[string]string{"login": login, "token": token, "path": path})
	if err != nil {
		return "", err
	}
	_, err = c.Await(func(e Envelope) bool {
		if e.Event != model.EventOnlineList {
			return false
		}
		_, ok := c.online[login]
		return ok
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Act sends an authenticated lobby event and waits for a published session
// table that done accepts. Tables published for other clients' changes are
// skipped.
func (c *Conn) Act(event model.EventType, creds Credentials, fields map[string]any, done func(map[model.SessionID]*model.Session) bool) error {
	payload := map[string]any{"login": creds.Login, "token": creds.Token}
	for k, v := range fields {
		payload[k] = v
	}
	if err := c.Send(event, payload); err != nil {
		return err
	}
	_, err := c.Await(func(e Envelope) bool {
		return e.Event == model.EventListOfGames && done(c.games)
	})
	return err
}

// Logout deletes the login on the server and waits for the online table
// without it
func (c *Conn) Logout(creds Credentials) error {
	if err := c.Send(model.EventLogout, creds); err != nil {
		return err
	}
	_, err := c.Await(func(e Envelope) bool {
		if e.Event != model.EventOnlineList {
			return false
		}
		_, ok := c.online[creds.Login]
		return !ok
	})
	return err
}

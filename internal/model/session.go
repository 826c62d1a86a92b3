package model

import (
	"encoding/json"
	"time"
)

// SessionID uniquely identifies a game session
type SessionID string

// GameType names the board game a session is playing
type GameType string

const (
	GameChess      GameType = "chess"
	GameBattleship GameType = "battleship"
	GameReversi    GameType = "reversi"
	GameConnect4   GameType = "connect4"
	GameNardy      GameType = "nardy" // long backgammon
)

// GameTypes lists every supported game in display order
var GameTypes = []GameType{GameChess, GameBattleship, GameReversi, GameConnect4, GameNardy}

// Valid reports whether the game type is one the server can host
func (g GameType) Valid() bool {
	for _, t := range GameTypes {
		if t == g {
			return true
		}
	}
	return false
}

// Mode selects who occupies the black side
type Mode string

const (
	ModePvP Mode = "PvP" // human vs human
	ModePvE Mode = "PvE" // human vs computer
)

// Valid reports whether the mode is known
func (m Mode) Valid() bool {
	return m == ModePvP || m == ModePvE
}

// Side is one of the two seats in a session
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// Opponent returns the other side
func (s Side) Opponent() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// ComputerLogin is the synthetic login occupying black in PvE sessions
const ComputerLogin = "Computer"

// Status is the session lifecycle phase. Transitions only move forward.
type Status string

const (
	StatusStarting Status = "starting" // waiting for a second player
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

// Rank orders statuses so regressions can be refused
func (s Status) Rank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusOngoing:
		return 1
	case StatusFinished:
		return 2
	default:
		return -1
	}
}

// Result is the final outcome of a finished session
type Result string

const (
	ResultNone     Result = ""
	ResultWhiteWon Result = "white won"
	ResultBlackWon Result = "black won"
	ResultDraw     Result = "draw"
)

// WinnerResult returns the result awarding the win to side
func WinnerResult(side Side) Result {
	if side == SideWhite {
		return ResultWhiteWon
	}
	return ResultBlackWon
}

// Players holds the logins seated on each side. Empty means vacant.
type Players struct {
	White string `json:"white"`
	Black string `json:"black"`
}

// Get returns the login seated on side
func (p Players) Get(side Side) string {
	if side == SideWhite {
		return p.White
	}
	return p.Black
}

// Set seats login on side
func (p *Players) Set(side Side, login string) {
	if side == SideWhite {
		p.White = login
	} else {
		p.Black = login
	}
}

// SideOf returns the side login occupies, if any
func (p Players) SideOf(login string) (Side, bool) {
	switch {
	case login == "":
		return "", false
	case p.White == login:
		return SideWhite, true
	case p.Black == login:
		return SideBlack, true
	}
	return "", false
}

// Session is one game instance tracked by the lobby
type Session struct {
	ID       SessionID `json:"id"`
	GameType GameType  `json:"game_type"`
	Mode     Mode      `json:"mode"`
	Players  Players   `json:"players"`

	// State is owned by the game's rule engine and never inspected elsewhere
	State json.RawMessage `json:"state"`

	Turn   Side   `json:"current_move"`
	Status Status `json:"status"`
	Result Result `json:"result"`
	Moves  int    `json:"moves"`

	// MutationLock is set while a move is being resolved for this session
	MutationLock bool `json:"in_progress"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a copy safe to hand out of the store
func (s *Session) Clone() *Session {
	c := *s
	if s.State != nil {
		c.State = append(json.RawMessage(nil), s.State...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	return &c
}

// IsOrphaned is true when no human is left seated
func (s *Session) IsOrphaned() bool {
	return s.Players.White == "" && (s.Players.Black == "" || s.Players.Black == ComputerLogin)
}

// IsActive is true until the session finishes
func (s *Session) IsActive() bool {
	return s.Status != StatusFinished
}

// HasPlayer reports whether login is seated on either side
func (s *Session) HasPlayer(login string) bool {
	_, ok := s.Players.SideOf(login)
	return ok
}

// Advance moves the session to status. It refuses to move backwards.
func (s *Session) Advance(status Status) bool {
	if status.Rank() <= s.Status.Rank() {
		return false
	}
	s.Status = status
	return true
}

// Start marks the session as ongoing from now
func (s *Session) Start(now time.Time) {
	if s.Advance(StatusOngoing) {
		started := now
		s.StartedAt = &started
	}
}

// Finish marks the session as finished with result
func (s *Session) Finish(result Result) bool {
	if !s.Advance(StatusFinished) {
		return false
	}
	s.Result = result
	return true
}

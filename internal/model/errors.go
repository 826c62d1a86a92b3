package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrUserNotFound = errors.New("user not found")
	ErrWrongToken   = errors.New("wrong token")
	ErrInvalidLogin = errors.New("invalid login")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session id already in use")
	ErrInvalidMode     = errors.New("invalid mode")
	ErrUnknownGame     = errors.New("unknown game type")
	ErrAlreadyPlaying  = errors.New("already playing this game type")
	ErrSessionFull     = errors.New("session is full")
	ErrNotInSession    = errors.New("not a player in this session")
	ErrSessionNotLive  = errors.New("session is not ongoing")
	ErrSessionBusy     = errors.New("session is resolving another move")

	// Move errors
	ErrNotYourTurn   = errors.New("not this player's turn")
	ErrIllegalMove   = errors.New("illegal move")
	ErrMalformedMove = errors.New("malformed move")
	ErrEngineFault   = errors.New("rule engine failure")

	// Transport errors
	ErrMalformedRequest   = errors.New("malformed request")
	ErrTooManyConnections = errors.New("too many connections from this address")
	ErrRateLimited        = errors.New("too many events")

	// Mirror errors
	ErrNoSnapshot = errors.New("no snapshot mirrored")
)

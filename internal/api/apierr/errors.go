package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lanarcade/gamehub/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes, shared by HTTP responses and "request rejected" events
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeWrongToken         = "WRONG_TOKEN"
	CodeInvalidLogin       = "INVALID_LOGIN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExists      = "SESSION_EXISTS"
	CodeInvalidMode        = "INVALID_MODE"
	CodeUnknownGame        = "UNKNOWN_GAME"
	CodeAlreadyPlaying     = "ALREADY_PLAYING"
	CodeSessionFull        = "SESSION_FULL"
	CodeNotInSession       = "NOT_IN_SESSION"
	CodeSessionNotLive     = "SESSION_NOT_LIVE"
	CodeSessionBusy        = "SESSION_BUSY"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeIllegalMove        = "ILLEGAL_MOVE"
	CodeMalformedMove      = "MALFORMED_MOVE"
	CodeEngineFault        = "ENGINE_FAULT"
	CodeTooManyConnections = "TOO_MANY_CONNECTIONS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Describe returns the code and message a client sees for err
func Describe(err error) APIError {
	return toHTTPError(err).apiError
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Identity
	case errors.Is(err, model.ErrWrongToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeWrongToken, "Login and token do not match"}}
	case errors.Is(err, model.ErrInvalidLogin):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidLogin, "Login is not allowed"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}

	// Sessions
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Game not found"}}
	case errors.Is(err, model.ErrSessionExists):
		return &httpError{http.StatusConflict, APIError{CodeSessionExists, "Game id already in use"}}
	case errors.Is(err, model.ErrInvalidMode):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidMode, "Mode must be PvP or PvE"}}
	case errors.Is(err, model.ErrUnknownGame):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownGame, "Unknown game"}}
	case errors.Is(err, model.ErrAlreadyPlaying):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyPlaying, "Already playing this game"}}
	case errors.Is(err, model.ErrSessionFull):
		return &httpError{http.StatusConflict, APIError{CodeSessionFull, "Game is full"}}
	case errors.Is(err, model.ErrNotInSession):
		return &httpError{http.StatusForbidden, APIError{CodeNotInSession, "Not a player in this game"}}
	case errors.Is(err, model.ErrSessionNotLive):
		return &httpError{http.StatusConflict, APIError{CodeSessionNotLive, "Game is not in progress"}}
	case errors.Is(err, model.ErrSessionBusy):
		return &httpError{http.StatusConflict, APIError{CodeSessionBusy, "Another move is being resolved"}}

	// Moves
	case errors.Is(err, model.ErrNotYourTurn):
		return &httpError{http.StatusForbidden, APIError{CodeNotYourTurn, "Not your turn"}}
	case errors.Is(err, model.ErrIllegalMove):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeIllegalMove, "Illegal move"}}
	case errors.Is(err, model.ErrMalformedMove):
		return &httpError{http.StatusBadRequest, APIError{CodeMalformedMove, "Move could not be read"}}
	case errors.Is(err, model.ErrEngineFault):
		return &httpError{http.StatusInternalServerError, APIError{CodeEngineFault, "Game engine failed"}}

	// Transport
	case errors.Is(err, model.ErrMalformedRequest):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Request could not be read"}}
	case errors.Is(err, model.ErrTooManyConnections):
		return &httpError{http.StatusTooManyRequests, APIError{CodeTooManyConnections, "Too many connections from this address"}}
	case errors.Is(err, model.ErrRateLimited):
		return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many events"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

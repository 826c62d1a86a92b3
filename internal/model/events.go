package model

// EventType names a message on the real-time channel. The strings are the
// wire names browser clients already speak.
type EventType string

const (
	// Inbound
	EventCreateGame   EventType = "create game"
	EventJoinGame     EventType = "join game"
	EventLeaveGame    EventType = "leave game"
	EventUpdateGame   EventType = "update game"
	EventGameOver     EventType = "game over"
	EventUserOnline   EventType = "user is online"
	EventUserOffline  EventType = "user is offline"
	EventLogout       EventType = "logout"
	EventPageUpdated  EventType = "page content updated"
	EventRequestGames EventType = "list of games"

	// Outbound
	EventListOfGames     EventType = "list of games"
	EventOnlineList      EventType = "online list"
	EventUseToken        EventType = "use token"
	EventWrongToken      EventType = "wrong token"
	EventReloadPage      EventType = "reload page content"
	EventRequestRejected EventType = "request rejected"
)

// Envelope is the frame exchanged over the real-time channel
type Envelope struct {
	Event   EventType `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

// Credentials accompany every authenticated inbound event
type Credentials struct {
	Login string `json:"login"`
	Token string `json:"token"`
}

// Snapshot is the full lobby view pushed to every connection
type Snapshot struct {
	Games  map[SessionID]*Session `json:"games"`
	Online map[string]string      `json:"online"`
}

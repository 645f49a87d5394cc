package live

import (
	"encoding/json"

	"github.com/starford/deckhand/internal/navigation"
)

// Outbound message types that belong to the session rather than to
// navigation.
const (
	TypeSession  = "session"
	TypeSnapshot = "snapshot"
	TypeReload   = "reload"
	TypeError    = "error"

	// TypeSidebarWidth is the only inbound session message.
	TypeSidebarWidth = "set-sidebar-width"
)

// SessionMsg is the first message on every connection. Clients reconnect
// with ?client=<ClientID> to keep their preferences.
type SessionMsg struct {
	Type         string `json:"type"`
	ClientID     string `json:"clientId"`
	Presentation string `json:"presentation"`
	SidebarWidth int    `json:"sidebarWidth,omitempty"`
}

// SnapshotMsg carries the full navigation state.
type SnapshotMsg struct {
	Type string `json:"type"`
	navigation.Snapshot
}

// ReloadMsg asks the client to re-render File in place.
type ReloadMsg struct {
	Type string `json:"type"`
	File string `json:"file"`
}

// ErrorMsg reports a rejected command. The session stays open.
type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type sidebarWidthMsg struct {
	Type  string `json:"type"`
	Width int    `json:"width"`
}

// sidebarWidth recognizes the session-level width message. Everything else
// goes through the navigation protocol.
func sidebarWidth(data []byte) (int, bool) {
	var msg sidebarWidthMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeSidebarWidth {
		return 0, false
	}
	return msg.Width, true
}

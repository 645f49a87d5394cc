package navigation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned for messages outside the protocol. Callers
// drop such messages.
var ErrUnknownMessage = errors.New("navigation: unknown message")

// Message types. The first group travels from the content boundary (or the
// viewer UI) to the host; the last two travel from the host outward.
const (
	TypeNavigated   = "navigated"
	TypeKey         = "key"
	TypeSelectAsset = "select-asset"
	TypeSelectTab   = "select-tab"
	TypeClearTab    = "clear-tab"
	TypeNavigate    = "navigate"
	TypeToggleGroup = "toggle-group"
	TypeSetMode     = "set-mode"

	TypeDisplay     = "display"
	TypeForwardKeys = "forward-keys"
)

// PresentKey toggles presentation mode.
const PresentKey = "p"

var forwardedKeys = []string{
	"ArrowRight", "ArrowDown", "PageDown", " ",
	"ArrowLeft", "ArrowUp", "PageUp",
	"Home", "End",
	PresentKey,
}

var keyDirections = map[string]Direction{
	"ArrowRight": Next,
	"ArrowDown":  Next,
	"PageDown":   Next,
	" ":          Next,
	"ArrowLeft":  Prev,
	"ArrowUp":    Prev,
	"PageUp":     Prev,
	"Home":       First,
	"End":        Last,
}

// ForwardedKeys is the fixed list of keys the boundary forwards to the host.
func ForwardedKeys() []string {
	return append([]string(nil), forwardedKeys...)
}

// Allowed reports whether key is on the forward list.
func Allowed(key string) bool {
	if key == PresentKey {
		return true
	}
	_, ok := keyDirections[key]
	return ok
}

// Message is one inbound protocol message.
type Message interface {
	Type() string
}

type (
	// Navigated reports that the boundary moved to File on its own.
	Navigated struct{ File string }
	// Key is a forwarded key press.
	Key struct{ Key string }
	// SelectAssetCmd is a sidebar click or quick jump.
	SelectAssetCmd struct{ File string }
	// SelectTabCmd opens a tab entry document.
	SelectTabCmd struct{ Tab string }
	// ClearTabCmd drops the tab filter.
	ClearTabCmd struct{}
	// NavigateCmd moves the cursor.
	NavigateCmd struct{ Direction Direction }
	// ToggleGroupCmd collapses or expands a group.
	ToggleGroupCmd struct{ Group string }
	// SetModeCmd sets or clears the display mode override.
	SetModeCmd struct{ Mode string }
)

func (Navigated) Type() string      { return TypeNavigated }
func (Key) Type() string            { return TypeKey }
func (SelectAssetCmd) Type() string { return TypeSelectAsset }
func (SelectTabCmd) Type() string   { return TypeSelectTab }
func (ClearTabCmd) Type() string    { return TypeClearTab }
func (NavigateCmd) Type() string    { return TypeNavigate }
func (ToggleGroupCmd) Type() string { return TypeToggleGroup }
func (SetModeCmd) Type() string     { return TypeSetMode }

type inbound struct {
	Type      string `json:"type"`
	File      string `json:"file,omitempty"`
	Key       string `json:"key,omitempty"`
	Tab       string `json:"tab,omitempty"`
	Direction string `json:"direction,omitempty"`
	Group     string `json:"group,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// DecodeMessage parses and validates one inbound message. Unknown types,
// unknown fields and missing required fields all yield ErrUnknownMessage.
func DecodeMessage(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var in inbound
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}

	reject := func(why string) (Message, error) {
		return nil, fmt.Errorf("%w: %s: %s", ErrUnknownMessage, in.Type, why)
	}

	switch in.Type {
	case TypeNavigated:
		if in.File == "" {
			return reject("file is required")
		}
		return Navigated{File: in.File}, nil
	case TypeKey:
		if !Allowed(in.Key) {
			return reject("key not forwarded")
		}
		return Key{Key: in.Key}, nil
	case TypeSelectAsset:
		if in.File == "" {
			return reject("file is required")
		}
		return SelectAssetCmd{File: in.File}, nil
	case TypeSelectTab:
		if in.Tab == "" {
			return reject("tab is required")
		}
		return SelectTabCmd{Tab: in.Tab}, nil
	case TypeClearTab:
		return ClearTabCmd{}, nil
	case TypeNavigate:
		d, ok := ParseDirection(in.Direction)
		if !ok {
			return reject("bad direction")
		}
		return NavigateCmd{Direction: d}, nil
	case TypeToggleGroup:
		if in.Group == "" {
			return reject("group is required")
		}
		return ToggleGroupCmd{Group: in.Group}, nil
	case TypeSetMode:
		return SetModeCmd{Mode: in.Mode}, nil
	}
	return reject("unsupported type")
}

// DisplayMsg is sent to the boundary whenever the render target changes.
type DisplayMsg struct {
	Type string `json:"type"`
	Display
}

// ForwardKeysMsg tells the boundary which keys to hand back.
type ForwardKeysMsg struct {
	Type string   `json:"type"`
	Keys []string `json:"keys"`
}

// NewDisplayMsg wraps d for the wire.
func NewDisplayMsg(d Display) DisplayMsg {
	return DisplayMsg{Type: TypeDisplay, Display: d}
}

// NewForwardKeysMsg returns the allow-list message.
func NewForwardKeysMsg() ForwardKeysMsg {
	return ForwardKeysMsg{Type: TypeForwardKeys, Keys: ForwardedKeys()}
}

// Apply runs msg against the machine. It reports whether the state changed.
func (m *Machine) Apply(msg Message) (bool, error) {
	before := m.cursor
	beforeTarget := m.target

	switch v := msg.(type) {
	case Navigated:
		_, ok := m.ReportBoundaryNavigation(v.File)
		return ok, nil
	case Key:
		if v.Key == PresentKey {
			m.TogglePresenting()
			return true, nil
		}
		dir, ok := keyDirections[v.Key]
		if !ok {
			return false, ErrUnknownMessage
		}
		if _, err := m.Navigate(dir); err != nil {
			return false, err
		}
	case SelectAssetCmd:
		if _, err := m.SelectAsset(v.File); err != nil {
			return false, err
		}
	case SelectTabCmd:
		if _, err := m.SelectTab(v.Tab); err != nil {
			return false, err
		}
	case ClearTabCmd:
		m.ClearTab()
		return true, nil
	case NavigateCmd:
		if _, err := m.Navigate(v.Direction); err != nil {
			return false, err
		}
	case ToggleGroupCmd:
		if _, err := m.ToggleGroup(v.Group); err != nil {
			return false, err
		}
		return true, nil
	case SetModeCmd:
		if err := m.SetModeOverride(v.Mode); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownMessage
	}
	return m.cursor != before || m.target != beforeTarget, nil
}

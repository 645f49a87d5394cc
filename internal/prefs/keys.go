// Package prefs stores per-client viewer preferences under a fixed,
// versioned set of keys. Every stored value is validated on read; values
// that fail validation are deleted and reported as absent.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/deckhand/internal/hierarchy"
)

const version = "v1"

var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Key is one enumerated preference. Scoped keys are stored per presentation.
type Key struct {
	Name     string
	Scoped   bool
	validate func(string) error
}

var (
	// CollapsedGroups is a JSON array of group ids.
	CollapsedGroups = Key{Name: "collapsed-groups", Scoped: true, validate: validateCollapsed}
	// ModeOverride is a display mode chosen by the user.
	ModeOverride = Key{Name: "mode-override", Scoped: true, validate: validateMode}
	// ActiveTab is the last tab filter in use.
	ActiveTab = Key{Name: "active-tab", Scoped: true, validate: validateID}
	// SidebarWidth is in pixels.
	SidebarWidth = Key{Name: "sidebar-width", validate: validateWidth}

	// lastPresentation tracks which presentation the client viewed last.
	lastPresentation = Key{Name: "last-presentation", validate: validatePresentation}
)

// Keys lists every public key.
var Keys = []Key{CollapsedGroups, ModeOverride, ActiveTab, SidebarWidth}

// Sidebar width bounds.
const (
	MinSidebarWidth = 160
	MaxSidebarWidth = 800
)

var errScope = errors.New("prefs: key scope mismatch")

// storageKey renders the versioned key for pres. Unscoped keys ignore pres.
// The presentation segment is path-escaped, since folder names may hold
// spaces, dots and other characters.
func (k Key) storageKey(pres string) (string, error) {
	if !k.Scoped {
		return version + "/" + k.Name, nil
	}
	if err := validatePresentation(pres); err != nil {
		return "", fmt.Errorf("%w: %s needs a presentation id", errScope, k.Name)
	}
	return version + "/" + k.Name + "/" + url.PathEscape(pres), nil
}

// Validate checks a raw stored value.
func (k Key) Validate(raw string) error {
	return k.validate(raw)
}

func validateCollapsed(raw string) error {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("not a list of ids: %w", err)
	}
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return err
		}
	}
	return nil
}

func validateMode(raw string) error {
	if _, ok := hierarchy.ParseMode(raw); !ok {
		return fmt.Errorf("unsupported mode %q", raw)
	}
	return nil
}

func validateID(raw string) error {
	if !idRe.MatchString(raw) {
		return fmt.Errorf("invalid id %q", raw)
	}
	return nil
}

// validatePresentation accepts any folder name the library can hold.
func validatePresentation(raw string) error {
	if raw == "" || strings.ContainsAny(raw, `/\`) || strings.HasPrefix(raw, ".") {
		return fmt.Errorf("invalid presentation id %q", raw)
	}
	return nil
}

func validateWidth(raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n < MinSidebarWidth || n > MaxSidebarWidth {
		return fmt.Errorf("width %d out of range", n)
	}
	return nil
}

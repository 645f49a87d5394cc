package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/hierarchy"
)

// Store is the typed preference API over a Backend.
type Store struct {
	backend Backend
	log     *slog.Logger
}

// NewStore wraps backend.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, log: logger}
}

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// get returns a validated value. Invalid stored values are deleted.
func (s *Store) get(ctx context.Context, client string, k Key, pres string) (string, bool, error) {
	key, err := k.storageKey(pres)
	if err != nil {
		return "", false, err
	}
	raw, ok, err := s.backend.Get(ctx, client, key)
	if err != nil || !ok {
		return "", false, err
	}
	if verr := k.Validate(raw); verr != nil {
		s.log.Warn("prefs: discarding invalid value",
			slog.String("key", key), slog.String("error", verr.Error()))
		if err := s.backend.Delete(ctx, client, key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return raw, true, nil
}

func (s *Store) set(ctx context.Context, client string, k Key, pres, value string) error {
	key, err := k.storageKey(pres)
	if err != nil {
		return err
	}
	if verr := k.Validate(value); verr != nil {
		return apperr.Invalid(k.Name, verr.Error())
	}
	return s.backend.Set(ctx, client, key, value)
}

func (s *Store) del(ctx context.Context, client string, k Key, pres string) error {
	key, err := k.storageKey(pres)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, client, key)
}

// Collapsed returns the collapsed groups of pres.
func (s *Store) Collapsed(ctx context.Context, client, pres string) ([]string, error) {
	raw, ok, err := s.get(ctx, client, CollapsedGroups, pres)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("prefs: decode collapsed: %w", err)
	}
	return ids, nil
}

// SetCollapsed stores the collapsed groups of pres.
func (s *Store) SetCollapsed(ctx context.Context, client, pres string, ids []string) error {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	raw, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("prefs: encode collapsed: %w", err)
	}
	return s.set(ctx, client, CollapsedGroups, pres, string(raw))
}

// Mode returns the display mode override for pres, if any.
func (s *Store) Mode(ctx context.Context, client, pres string) (hierarchy.Mode, bool, error) {
	raw, ok, err := s.get(ctx, client, ModeOverride, pres)
	if err != nil || !ok {
		return "", false, err
	}
	return hierarchy.Mode(raw), true, nil
}

// SetMode stores a display mode override. An empty mode clears it.
func (s *Store) SetMode(ctx context.Context, client, pres, mode string) error {
	if mode == "" {
		return s.del(ctx, client, ModeOverride, pres)
	}
	return s.set(ctx, client, ModeOverride, pres, mode)
}

// ActiveTab returns the stored tab filter for pres.
func (s *Store) ActiveTab(ctx context.Context, client, pres string) (string, error) {
	raw, _, err := s.get(ctx, client, ActiveTab, pres)
	return raw, err
}

// SetActiveTab stores the tab filter for pres. An empty tab clears it.
func (s *Store) SetActiveTab(ctx context.Context, client, pres, tab string) error {
	if tab == "" {
		return s.del(ctx, client, ActiveTab, pres)
	}
	return s.set(ctx, client, ActiveTab, pres, tab)
}

// SidebarWidth returns the stored width, or 0 when unset.
func (s *Store) SidebarWidth(ctx context.Context, client string) (int, error) {
	raw, ok, err := s.get(ctx, client, SidebarWidth, "")
	if err != nil || !ok {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// SetSidebarWidth stores the sidebar width in pixels.
func (s *Store) SetSidebarWidth(ctx context.Context, client string, width int) error {
	return s.set(ctx, client, SidebarWidth, "", strconv.Itoa(width))
}

// EnterPresentation records that client opened pres. Moving to a different
// presentation drops the mode override of the one being entered, so an
// override lasts across reloads of the same presentation only.
func (s *Store) EnterPresentation(ctx context.Context, client, pres string) error {
	last, _, err := s.get(ctx, client, lastPresentation, "")
	if err != nil {
		return err
	}
	if last == pres {
		return nil
	}
	if err := s.del(ctx, client, ModeOverride, pres); err != nil {
		return err
	}
	if last != "" {
		if err := s.del(ctx, client, ModeOverride, last); err != nil {
			return err
		}
	}
	return s.set(ctx, client, lastPresentation, "", pres)
}

package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/hierarchy"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Backend{"memory": NewMemory(), "sqlite": db}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)

			if err := s.SetCollapsed(ctx, "c1", "deck", []string{"b", "a"}); err != nil {
				t.Fatalf("SetCollapsed: %v", err)
			}
			got, err := s.Collapsed(ctx, "c1", "deck")
			if err != nil {
				t.Fatalf("Collapsed: %v", err)
			}
			if !reflect.DeepEqual(got, []string{"a", "b"}) {
				t.Errorf("collapsed = %v", got)
			}

			if err := s.SetActiveTab(ctx, "c1", "deck", "mary"); err != nil {
				t.Fatalf("SetActiveTab: %v", err)
			}
			if tab, _ := s.ActiveTab(ctx, "c1", "deck"); tab != "mary" {
				t.Errorf("active tab = %q", tab)
			}
			if tab, _ := s.ActiveTab(ctx, "c2", "deck"); tab != "" {
				t.Errorf("other client sees tab %q", tab)
			}

			if err := s.SetSidebarWidth(ctx, "c1", 320); err != nil {
				t.Fatalf("SetSidebarWidth: %v", err)
			}
			if w, _ := s.SidebarWidth(ctx, "c1"); w != 320 {
				t.Errorf("width = %d", w)
			}
		})
	}
}

func TestStoreRejectsInvalidWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory(), nil)

	if err := s.SetSidebarWidth(ctx, "c1", 10); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("width 10: expected validation error, got %v", err)
	}
	if err := s.SetMode(ctx, "c1", "deck", "tabs"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("retired mode: expected validation error, got %v", err)
	}
	if err := s.SetActiveTab(ctx, "c1", "../etc", "x"); !errors.Is(err, errScope) {
		t.Errorf("bad presentation id: expected scope error, got %v", err)
	}
}

func TestStoreDiscardsStaleValues(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)
			// Values written by an older client version.
			b.Set(ctx, "c1", "v1/mode-override/deck", "tabs")
			b.Set(ctx, "c1", "v1/sidebar-width", "9000")
			b.Set(ctx, "c1", "v1/collapsed-groups/deck", `{"a":true}`)

			if _, ok, err := s.Mode(ctx, "c1", "deck"); ok || err != nil {
				t.Errorf("retired mode accepted: ok=%v err=%v", ok, err)
			}
			if w, err := s.SidebarWidth(ctx, "c1"); w != 0 || err != nil {
				t.Errorf("width = %d, err = %v", w, err)
			}
			if ids, err := s.Collapsed(ctx, "c1", "deck"); ids != nil || err != nil {
				t.Errorf("collapsed = %v, err = %v", ids, err)
			}

			if _, ok, _ := b.Get(ctx, "c1", "v1/mode-override/deck"); ok {
				t.Error("stale mode still stored")
			}
			if _, ok, _ := b.Get(ctx, "c1", "v1/sidebar-width"); ok {
				t.Error("stale width still stored")
			}
		})
	}
}

func TestModeOverrideLifetime(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory(), nil)

	if err := s.EnterPresentation(ctx, "c1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMode(ctx, "c1", "alpha", "flat"); err != nil {
		t.Fatal(err)
	}

	// Reload of the same presentation keeps the override.
	if err := s.EnterPresentation(ctx, "c1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if m, ok, _ := s.Mode(ctx, "c1", "alpha"); !ok || m != hierarchy.ModeFlat {
		t.Fatalf("override lost on reload: %q %v", m, ok)
	}

	// Leaving and returning resets it.
	if err := s.EnterPresentation(ctx, "c1", "beta"); err != nil {
		t.Fatal(err)
	}
	if err := s.EnterPresentation(ctx, "c1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Mode(ctx, "c1", "alpha"); ok {
		t.Error("override survived navigating away")
	}
}

func TestFolderNamesWithSpacesAndDots(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)

			for _, pres := range []string{"my deck", "v1.2", "Q3 review (draft)"} {
				if err := s.EnterPresentation(ctx, "c1", pres); err != nil {
					t.Fatalf("EnterPresentation(%q): %v", pres, err)
				}
				if err := s.SetActiveTab(ctx, "c1", pres, "mary"); err != nil {
					t.Fatalf("SetActiveTab(%q): %v", pres, err)
				}
				if err := s.SetCollapsed(ctx, "c1", pres, []string{"intro"}); err != nil {
					t.Fatalf("SetCollapsed(%q): %v", pres, err)
				}
				if err := s.SetMode(ctx, "c1", pres, "flat"); err != nil {
					t.Fatalf("SetMode(%q): %v", pres, err)
				}
				if err := s.EnterPresentation(ctx, "c1", pres); err != nil {
					t.Fatalf("reload %q: %v", pres, err)
				}

				if tab, _ := s.ActiveTab(ctx, "c1", pres); tab != "mary" {
					t.Errorf("%q: active tab = %q", pres, tab)
				}
				if got, _ := s.Collapsed(ctx, "c1", pres); !reflect.DeepEqual(got, []string{"intro"}) {
					t.Errorf("%q: collapsed = %v", pres, got)
				}
				if m, ok, _ := s.Mode(ctx, "c1", pres); !ok || m != hierarchy.ModeFlat {
					t.Errorf("%q: mode = %q %v", pres, m, ok)
				}
			}

			// Escaping keeps "my deck" and "my%20deck" apart.
			if tab, _ := s.ActiveTab(ctx, "c1", "my%20deck"); tab != "" {
				t.Errorf("escaped name collides: %q", tab)
			}
		})
	}
}

func TestKeysValidate(t *testing.T) {
	cases := []struct {
		key Key
		raw string
		ok  bool
	}{
		{CollapsedGroups, `["a","b-1"]`, true},
		{CollapsedGroups, `["../x"]`, false},
		{ModeOverride, "grouped", true},
		{ModeOverride, "tabs", false},
		{ActiveTab, "mary", true},
		{ActiveTab, "", false},
		{SidebarWidth, "160", true},
		{SidebarWidth, "801", false},
		{SidebarWidth, "wide", false},
	}
	for _, tc := range cases {
		err := tc.key.Validate(tc.raw)
		if (err == nil) != tc.ok {
			t.Errorf("%s(%q): err = %v, want ok=%v", tc.key.Name, tc.raw, err, tc.ok)
		}
	}
}

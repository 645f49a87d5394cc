package entrypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/deckhand/internal/manifest"
)

func TestResolve_PrimaryWins(t *testing.T) {
	res := Resolve([]string{"a.html", "index.html", "presentation.html", "tab-x.html"}, nil)
	assert.True(t, res.Valid)
	assert.Equal(t, PrimaryName, res.Entry)
	assert.Equal(t, KindPrimary, res.Kind)
	assert.True(t, res.IsPrimary())
	assert.True(t, res.TabFiles["tab-x.html"])
}

func TestResolve_LegacyPrimary(t *testing.T) {
	res := Resolve([]string{"presentation.html", "tab-x.html"}, nil)
	assert.Equal(t, LegacyPrimaryName, res.Entry)
	assert.Equal(t, KindLegacyPrimary, res.Kind)
}

func TestResolve_TabsOnlyFolderIsValid(t *testing.T) {
	res := Resolve([]string{"tab-john.html", "tab-mary.html", "slide.html"}, nil)
	require.True(t, res.Valid)
	assert.Equal(t, KindTab, res.Kind)
	// Undeclared tabs share an order, so the id breaks the tie.
	assert.Equal(t, "tab-john.html", res.Entry)
	require.Len(t, res.Tabs, 2)
	assert.False(t, res.IsPrimary())
}

func TestResolve_LowestOrderTabIsDefault(t *testing.T) {
	m := &manifest.Manifest{Tabs: []manifest.TabDef{
		{ID: "john", Label: "John", File: "tab-john.html", Order: 2},
		{ID: "mary", Label: "Mary", File: "tab-mary.html", Order: 1},
	}}
	res := Resolve([]string{"tab-john.html", "tab-mary.html"}, m)
	assert.Equal(t, "tab-mary.html", res.Entry)
	assert.Equal(t, []string{"mary", "john"}, []string{res.Tabs[0].ID, res.Tabs[1].ID})
	assert.True(t, res.Tabs[0].Declared)
}

func TestResolve_OrderTieBrokenByID(t *testing.T) {
	m := &manifest.Manifest{Tabs: []manifest.TabDef{
		{ID: "zeta", Label: "Z", File: "zeta.html", Order: 1},
		{ID: "alpha", Label: "A", File: "alpha.html", Order: 1},
	}}
	res := Resolve([]string{"zeta.html", "alpha.html"}, m)
	assert.Equal(t, "alpha.html", res.Entry)
	assert.True(t, res.TabFiles["zeta.html"])
}

func TestResolve_LegacyTabPattern(t *testing.T) {
	res := Resolve([]string{"index-ops.html", "notes.html"}, nil)
	require.True(t, res.Valid)
	assert.Equal(t, KindLegacyTab, res.Kind)
	assert.Equal(t, "index-ops.html", res.Entry)
}

func TestResolve_NewPatternPreferredOverLegacy(t *testing.T) {
	res := Resolve([]string{"index-aaa.html", "tab-zzz.html"}, nil)
	assert.Equal(t, "tab-zzz.html", res.Entry)
	assert.Len(t, res.Tabs, 2)
}

func TestResolve_SameIDNewAndLegacy(t *testing.T) {
	res := Resolve([]string{"index-ops.html", "tab-ops.html"}, nil)
	require.Len(t, res.Tabs, 1)
	assert.Equal(t, "tab-ops.html", res.Tabs[0].File)
	assert.True(t, res.TabFiles["index-ops.html"])
}

func TestResolve_BrokenDeclaredTab(t *testing.T) {
	m := &manifest.Manifest{Tabs: []manifest.TabDef{
		{ID: "gone", Label: "Gone", File: "tab-gone.html", Order: 1},
	}}
	res := Resolve([]string{"index.html"}, m)
	assert.True(t, res.Valid)
	assert.Equal(t, []string{"gone"}, res.Broken)
	assert.Empty(t, res.Tabs)
}

func TestResolve_DeclaredFileNotRediscoveredByPattern(t *testing.T) {
	m := &manifest.Manifest{Tabs: []manifest.TabDef{
		{ID: "mary", Label: "Mary", File: "tab-m.html", Order: 1},
	}}
	res := Resolve([]string{"tab-m.html", "a.html"}, m)
	require.Len(t, res.Tabs, 1)
	assert.Equal(t, "mary", res.Tabs[0].ID)
	assert.Equal(t, "tab-m.html", res.Tabs[0].File)
	assert.True(t, res.Tabs[0].Declared)
}

func TestResolve_MissingDeclaredFileFallsBackToPattern(t *testing.T) {
	m := &manifest.Manifest{Tabs: []manifest.TabDef{
		{ID: "mary", Label: "Mary", File: "mary.html", Order: 3},
	}}
	res := Resolve([]string{"tab-mary.html", "a.html"}, m)
	require.Len(t, res.Tabs, 1)
	assert.Equal(t, TabEntry{ID: "mary", File: "tab-mary.html", Order: 3, Declared: true, Kind: KindTab}, res.Tabs[0])
	assert.Empty(t, res.Broken)
	assert.Equal(t, "tab-mary.html", res.Entry)
}

func TestResolve_NoMatchIsNotAPresentation(t *testing.T) {
	res := Resolve([]string{"readme.md", "slide.html"}, nil)
	assert.False(t, res.Valid)
	assert.Empty(t, res.Entry)

	res = Resolve(nil, nil)
	assert.False(t, res.Valid)
}

package manifest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/storage"
)

func testStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	s := NewStore(fs, "")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, fs
}

func TestRead_AbsentReturnsDefault(t *testing.T) {
	s, _ := testStore(t)
	m, cs, err := s.Read("deck")
	require.NoError(t, err)
	assert.Empty(t, cs)
	assert.Empty(t, m.Slides)
	assert.NotNil(t, m.Groups)
	assert.NotNil(t, m.Tabs)
}

func TestDecode_LegacyOrder(t *testing.T) {
	m, err := Decode([]byte(`{"assets":{"order":["b.html","a.html"]}}`))
	require.NoError(t, err)
	require.Len(t, m.Slides, 2)
	assert.Equal(t, "b.html", m.Slides[0].File)
	assert.Equal(t, "a.html", m.Slides[1].File)
	assert.Empty(t, m.Slides[0].Title)
}

func TestDecode_SlidesAsFilenames(t *testing.T) {
	m, err := Decode([]byte(`{"slides":["intro.html",{"file":"problem.html","title":"Problem","group":"g1"}]}`))
	require.NoError(t, err)
	require.Len(t, m.Slides, 2)
	assert.Equal(t, Slide{File: "intro.html"}, m.Slides[0])
	assert.Equal(t, "Problem", m.Slides[1].Title)
	assert.Equal(t, "g1", m.Slides[1].Group)
}

func TestDecode_RichSlidesWinOverLegacy(t *testing.T) {
	m, err := Decode([]byte(`{"slides":[{"file":"a.html"}],"assets":{"order":["z.html"]}}`))
	require.NoError(t, err)
	require.Len(t, m.Slides, 1)
	assert.Equal(t, "a.html", m.Slides[0].File)
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	m := &Manifest{
		Groups: map[string]GroupDef{
			"ok":      {Label: "Fine", Order: 1},
			"nolabel": {Order: 2},
			"bad id!": {Label: "x"},
		},
		Tabs: []TabDef{
			{ID: "t1", Label: "One", File: "tab-t1.html"},
			{ID: "t1", Label: "Dup", File: "tab-dup.html"},
			{ID: "t2", Label: "Two"},
			{ID: "t3", Label: "Three", File: "notes.txt"},
		},
		Slides: []Slide{
			{File: "a.html"},
			{File: "a.html"},
			{File: "../escape.html"},
			{},
		},
	}
	got := Validate(m)
	fields := make([]string, 0, len(got))
	for _, v := range got {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "groups.nolabel.label")
	assert.Contains(t, fields, "groups.bad id!")
	assert.Contains(t, fields, "tabs[1].id")
	assert.Contains(t, fields, "tabs[2].file")
	assert.Contains(t, fields, "tabs[3].file")
	assert.Contains(t, fields, "slides[1].file")
	assert.Contains(t, fields, "slides[2].file")
	assert.Contains(t, fields, "slides[3].file")
	assert.NotContains(t, fields, "groups.ok.label")

	decoded, err := Decode([]byte(`{
		"groups":{"a":{"label":"A"},"b":{"label":"B","order":0}},
		"tabs":[{"id":"t1","label":"One","file":"tab-t1.html"},{"id":"t2","label":"Two","file":"tab-t2.html","order":2}]
	}`))
	require.NoError(t, err)
	fields = fields[:0]
	for _, v := range Validate(decoded) {
		fields = append(fields, v.Field)
		assert.Equal(t, "is required", v.Message)
	}
	assert.ElementsMatch(t, []string{"groups.a.order", "tabs[0].order"}, fields)
}

func TestPatch_NewGroupNeedsOrder(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Write("deck", &Manifest{Groups: map[string]GroupDef{"g1": {Label: "One", Order: 1}}}, "")
	require.NoError(t, err)

	_, _, err = s.Patch("deck", map[string]any{
		"groups": map[string]any{"g2": map[string]any{"label": "Two"}},
	}, "")
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []apperr.Violation{{Field: "groups.g2.order", Message: "is required"}}, verr.Violations)

	// Existing groups keep their stored order when patched.
	got, _, err := s.Patch("deck", map[string]any{
		"groups": map[string]any{"g1": map[string]any{"label": "Renamed"}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, GroupDef{Label: "Renamed", Order: 1}, got.Groups["g1"])
}

func TestRead_StoredDocumentWithoutOrderIsAccepted(t *testing.T) {
	s, fs := testStore(t)
	require.NoError(t, fs.Write("deck/presentation.json", []byte(`{"groups":{"g":{"label":"G"}}}`)))
	m, _, err := s.Read("deck")
	require.NoError(t, err)
	assert.Empty(t, Validate(m))

	_, err = s.Write("deck", m, "")
	assert.NoError(t, err)
}

func TestValidate_DanglingReferencesAreNotViolations(t *testing.T) {
	m := &Manifest{
		Groups: map[string]GroupDef{"g": {Label: "G", TabID: "ghost"}},
		Slides: []Slide{{File: "a.html", Group: "missing"}},
	}
	assert.Empty(t, Validate(m))
}

func TestWrite_RejectsInvalidWithoutWriting(t *testing.T) {
	s, fs := testStore(t)
	_, err := s.Write("deck", &Manifest{Slides: []Slide{{File: "a/b.html"}}}, "")
	require.Error(t, err)

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.False(t, fs.Exists("deck/presentation.json"))
}

func TestWrite_StampsMetaAndRoundTrips(t *testing.T) {
	s, _ := testStore(t)
	doc := &Manifest{
		Groups: map[string]GroupDef{"basics": {Label: "Basics", Order: 1}},
		Tabs:   []TabDef{{ID: "main", Label: "Main", File: "tab-main.html", Order: 1}},
		Slides: []Slide{{File: "intro.html", Group: "basics"}, {File: "problem.html"}},
	}
	cs, err := s.Write("deck", doc, "")
	require.NoError(t, err)
	assert.NotEmpty(t, cs)

	got, readCS, err := s.Read("deck")
	require.NoError(t, err)
	assert.Equal(t, cs, readCS)
	require.NotNil(t, got.Meta.Created)
	require.NotNil(t, got.Meta.Updated)
	assert.Equal(t, doc.Slides, got.Slides)
	assert.Equal(t, doc.Groups, got.Groups)
	assert.Equal(t, doc.Tabs, got.Tabs)
}

func TestWrite_IfMatchConflict(t *testing.T) {
	s, _ := testStore(t)
	cs, err := s.Write("deck", &Manifest{Slides: []Slide{{File: "a.html"}}}, "")
	require.NoError(t, err)

	_, err = s.Write("deck", &Manifest{Slides: []Slide{{File: "b.html"}}}, cs)
	require.NoError(t, err)

	_, err = s.Write("deck", &Manifest{Slides: []Slide{{File: "c.html"}}}, cs)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestWrite_PreservesCreated(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Write("deck", Default(), "")
	require.NoError(t, err)
	first, _, _ := s.Read("deck")

	later := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return later }
	_, err = s.Write("deck", Default(), "")
	require.NoError(t, err)
	second, _, _ := s.Read("deck")

	assert.True(t, first.Meta.Created.Equal(*second.Meta.Created))
	assert.True(t, second.Meta.Updated.Equal(later))
}

func TestPatch_DeepMergesObjectsAndReplacesArrays(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Write("deck", &Manifest{
		Meta:   models.Meta{Name: "Deck"},
		Groups: map[string]GroupDef{"g1": {Label: "One", Order: 1, TabID: "t1"}},
		Tabs: []TabDef{
			{ID: "t1", Label: "T1", File: "tab-t1.html", Order: 1},
			{ID: "t2", Label: "T2", File: "tab-t2.html", Order: 2},
		},
		Slides: []Slide{{File: "a.html"}, {File: "b.html"}},
	}, "")
	require.NoError(t, err)

	got, _, err := s.Patch("deck", map[string]any{
		"groups": map[string]any{"g1": map[string]any{"order": 5}},
		"tabs":   []any{map[string]any{"id": "t3", "label": "T3", "file": "tab-t3.html", "order": 1}},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "Deck", got.Meta.Name)
	assert.Equal(t, GroupDef{Label: "One", Order: 5, TabID: "t1"}, got.Groups["g1"])
	require.Len(t, got.Tabs, 1)
	assert.Equal(t, "t3", got.Tabs[0].ID)
	assert.Len(t, got.Slides, 2)
}

func TestPatch_NullRemovesKey(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Write("deck", &Manifest{
		Groups: map[string]GroupDef{
			"g1": {Label: "One", TabID: "t1"},
			"g2": {Label: "Two"},
		},
	}, "")
	require.NoError(t, err)

	got, _, err := s.Patch("deck", map[string]any{
		"groups": map[string]any{
			"g1": map[string]any{"tabId": nil},
			"g2": nil,
		},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, GroupDef{Label: "One"}, got.Groups["g1"])
	_, ok := got.Groups["g2"]
	assert.False(t, ok)
}

func TestPatch_InvalidResultIsRejectedAtomically(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Write("deck", &Manifest{
		Groups: map[string]GroupDef{"g1": {Label: "One"}},
		Slides: []Slide{{File: "a.html"}},
	}, "")
	require.NoError(t, err)
	before, beforeCS, _ := s.Read("deck")

	_, _, err = s.Patch("deck", map[string]any{
		"groups": map[string]any{"g1": map[string]any{"label": ""}},
		"slides": []any{map[string]any{"file": "a.html"}, map[string]any{"file": "a.html"}},
	}, "")
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 2)

	after, afterCS, _ := s.Read("deck")
	assert.Equal(t, beforeCS, afterCS)
	assert.Equal(t, before.Slides, after.Slides)
}

func TestPatch_WrongTypeIsValidationError(t *testing.T) {
	s, _ := testStore(t)
	_, _, err := s.Patch("deck", map[string]any{"tabs": "not-a-list"}, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRead_MalformedDegradesToDefault(t *testing.T) {
	s, fs := testStore(t)
	require.NoError(t, fs.Write("deck/presentation.json", []byte("{not json")))
	m, _, err := s.Read("deck")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, m.Slides)
}

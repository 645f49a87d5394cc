package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func file(name string, createdMin int) models.FileInfo {
	at := t0.Add(time.Duration(createdMin) * time.Minute)
	return models.FileInfo{Name: name, CreatedAt: at, ModifiedAt: at}
}

func declared(files ...string) *manifest.Manifest {
	m := manifest.Default()
	for _, f := range files {
		m.Slides = append(m.Slides, manifest.Slide{File: f})
	}
	return m
}

func TestReconcile_Idempotent(t *testing.T) {
	in := Input{
		Manifest: declared("c.html", "a.html", "gone.html"),
		Files:    []models.FileInfo{file("a.html", 1), file("b.html", 5), file("c.html", 2), file("d.html", 3)},
		Entry:    "a.html",
	}
	first := Reconcile(in)
	second := Reconcile(in)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"c.html", "a.html", "d.html", "b.html"}, Order(first.Assets))
}

func TestReconcile_SelfHealingRemoval(t *testing.T) {
	res := Reconcile(Input{
		Manifest: declared("a.html", "b.html", "c.html"),
		Files:    []models.FileInfo{file("a.html", 1), file("c.html", 3)},
	})
	assert.Equal(t, []string{"a.html", "c.html"}, Order(res.Assets))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperr.WarnMissingFile, res.Warnings[0].Kind)
	assert.Equal(t, "b.html", res.Warnings[0].Ref)
}

func TestReconcile_SelfHealingAppendByCreationTime(t *testing.T) {
	res := Reconcile(Input{
		Manifest: declared("a.html"),
		Files: []models.FileInfo{
			file("zz-early.html", 1),
			file("a.html", 10),
			file("aa-late.html", 20),
			file("mid.html", 5),
		},
	})
	assert.Equal(t, []string{"a.html", "zz-early.html", "mid.html", "aa-late.html"}, Order(res.Assets))
	assert.True(t, res.Assets[0].Declared)
	assert.False(t, res.Assets[1].Declared)
}

func TestReconcile_UndeclaredAppearsExactlyOnce(t *testing.T) {
	res := Reconcile(Input{
		Manifest: declared("a.html", "a.html"),
		Files:    []models.FileInfo{file("a.html", 1), file("new.html", 2)},
	})
	assert.Equal(t, []string{"a.html", "new.html"}, Order(res.Assets))
}

func TestReconcile_FallsBackToModificationTime(t *testing.T) {
	older := models.FileInfo{Name: "b.html", ModifiedAt: t0}
	newer := models.FileInfo{Name: "a.html", ModifiedAt: t0.Add(time.Hour)}
	res := Reconcile(Input{Files: []models.FileInfo{newer, older}})
	assert.Equal(t, []string{"b.html", "a.html"}, Order(res.Assets))
	assert.True(t, res.Assets[0].CreatedAt.Equal(t0))
}

func TestReconcile_ScenarioA(t *testing.T) {
	res := Reconcile(Input{
		Manifest: declared("intro.html", "problem.html"),
		Files:    []models.FileInfo{file("intro.html", 1), file("extra.html", 30)},
	})
	assert.Equal(t, []string{"intro.html", "extra.html"}, Order(res.Assets))
}

func TestReconcile_EntryFlaggedNotRelocated(t *testing.T) {
	res := Reconcile(Input{
		Manifest: declared("a.html", "index.html"),
		Files:    []models.FileInfo{file("index.html", 0), file("a.html", 1)},
		Entry:    "index.html",
	})
	require.Equal(t, []string{"a.html", "index.html"}, Order(res.Assets))
	assert.False(t, res.Assets[0].Index)
	assert.True(t, res.Assets[1].Index)
}

func TestReconcile_MetadataCarriedAndUnknownGroupDropped(t *testing.T) {
	m := manifest.Default()
	m.Groups["basics"] = manifest.GroupDef{Label: "Basics"}
	m.Slides = []manifest.Slide{
		{File: "a.html", Title: "Alpha", Group: "basics", Tags: []string{"x"}, Recommended: true, Description: "first"},
		{File: "b.html", Group: "nope"},
	}
	res := Reconcile(Input{Manifest: m, Files: []models.FileInfo{file("a.html", 1), file("b.html", 2)}})

	require.Len(t, res.Assets, 2)
	a := res.Assets[0]
	assert.Equal(t, "Alpha", a.Title)
	assert.Equal(t, "basics", a.Group)
	assert.Equal(t, []string{"x"}, a.Tags)
	assert.True(t, a.Recommended)
	assert.Equal(t, "first", a.Description)

	assert.Empty(t, res.Assets[1].Group)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperr.WarnUnknownGroup, res.Warnings[0].Kind)
}

func TestReconcile_NilManifest(t *testing.T) {
	res := Reconcile(Input{Files: []models.FileInfo{file("b.html", 2), file("a.html", 2)}})
	// Equal creation times fall back to name order.
	assert.Equal(t, []string{"a.html", "b.html"}, Order(res.Assets))
	assert.Empty(t, res.Warnings)
}

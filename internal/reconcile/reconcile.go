// Package reconcile merges a manifest's declared slide order with the files
// actually present on disk to produce the effective asset list.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
)

// Input is everything reconciliation looks at. Files must already be limited
// to asset documents (tab entry documents excluded).
type Input struct {
	Manifest *manifest.Manifest
	Files    []models.FileInfo
	// Entry is flagged as the index asset when it is among Files.
	Entry string
}

// Result is the effective asset order plus the references that were dropped.
type Result struct {
	Assets   []models.Asset
	Warnings []apperr.Warning
}

// Reconcile is pure and deterministic: the same input always yields the
// same output, so running it on its own output's inputs is a no-op.
//
// Declared slides keep their position and metadata while their file exists;
// declared slides whose file is gone are dropped. Files the manifest does
// not mention are appended by ascending creation time (modification time
// when no creation time is known), then by name.
func Reconcile(in Input) Result {
	m := in.Manifest
	if m == nil {
		m = manifest.Default()
	}
	onDisk := make(map[string]models.FileInfo, len(in.Files))
	for _, f := range in.Files {
		onDisk[f.Name] = f
	}

	var res Result
	placed := make(map[string]bool, len(in.Files))
	for _, s := range m.Slides {
		if placed[s.File] {
			continue
		}
		fi, ok := onDisk[s.File]
		if !ok {
			res.Warnings = append(res.Warnings, apperr.Warning{
				Kind:    apperr.WarnMissingFile,
				Ref:     s.File,
				Message: fmt.Sprintf("declared slide %q no longer exists", s.File),
			})
			continue
		}
		placed[s.File] = true
		a := fromFile(fi)
		a.Declared = true
		a.Title = s.Title
		a.Description = s.Description
		a.Recommended = s.Recommended
		a.Tags = append([]string(nil), s.Tags...)
		if s.Group != "" {
			if _, ok := m.Groups[s.Group]; ok {
				a.Group = s.Group
			} else {
				res.Warnings = append(res.Warnings, apperr.Warning{
					Kind:    apperr.WarnUnknownGroup,
					Ref:     s.File,
					Message: fmt.Sprintf("slide %q references unknown group %q", s.File, s.Group),
				})
			}
		}
		res.Assets = append(res.Assets, a)
	}

	var extra []models.FileInfo
	for _, f := range in.Files {
		if !placed[f.Name] {
			placed[f.Name] = true
			extra = append(extra, f)
		}
	}
	sort.SliceStable(extra, func(i, j int) bool {
		ti, tj := authored(extra[i]), authored(extra[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return extra[i].Name < extra[j].Name
	})
	for _, f := range extra {
		res.Assets = append(res.Assets, fromFile(f))
	}

	if in.Entry != "" {
		for i := range res.Assets {
			if res.Assets[i].File == in.Entry {
				res.Assets[i].Index = true
			}
		}
	}
	return res
}

func fromFile(f models.FileInfo) models.Asset {
	return models.Asset{
		File:      f.Name,
		CreatedAt: authored(f),
		UpdatedAt: f.ModifiedAt,
	}
}

func authored(f models.FileInfo) time.Time {
	if !f.CreatedAt.IsZero() {
		return f.CreatedAt
	}
	return f.ModifiedAt
}

// Order returns the file names of assets in order.
func Order(assets []models.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.File
	}
	return out
}

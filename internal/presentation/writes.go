package presentation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
)

// Manifest returns the stored manifest of a presentation and its checksum.
func (s *Service) Manifest(ctx context.Context, id string) (*manifest.Manifest, string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, "", err
	}
	return s.store.Read(id)
}

// ReplaceManifest validates doc and replaces the stored manifest. A
// non-empty ifMatch must equal the current checksum.
func (s *Service) ReplaceManifest(ctx context.Context, id string, doc *manifest.Manifest, ifMatch string) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.invalidate(id)

	cs, err := s.store.Write(id, doc, ifMatch)
	if err != nil {
		return "", err
	}
	s.log.Info("service: manifest replaced", slog.String("id", id))
	return cs, nil
}

// PatchManifest deep-merges partial into the stored manifest.
func (s *Service) PatchManifest(ctx context.Context, id string, partial map[string]any, ifMatch string) (*manifest.Manifest, string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, "", err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.invalidate(id)

	m, cs, err := s.store.Patch(id, partial, ifMatch)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("service: manifest patched", slog.String("id", id))
	return m, cs, nil
}

// mutate applies fn to the stored manifest and writes it back. fn sees the
// effective presentation as of the start of the write.
func (s *Service) mutate(ctx context.Context, id string, fn func(m *manifest.Manifest, p *models.Presentation) error) (*models.Presentation, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m, _, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	if err := fn(m, p); err != nil {
		return nil, err
	}
	_, err = s.store.Write(id, m, "")
	s.invalidate(id)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// materialize declares every effective asset in its current position, so
// that a targeted write to one undeclared asset does not move it.
func materialize(m *manifest.Manifest, p *models.Presentation) {
	slides := make([]manifest.Slide, 0, len(p.Assets))
	for _, a := range p.Assets {
		sl, _, ok := m.Slide(a.File)
		if !ok {
			sl = manifest.Slide{File: a.File}
		}
		if sl.Group != "" {
			if _, ok := m.Groups[sl.Group]; !ok {
				sl.Group = ""
			}
		}
		slides = append(slides, sl)
	}
	m.Slides = slides
}

// ReorderAssets declares the given order. Every listed file must be an
// effective asset and may appear once; assets not listed keep their
// relative order after the listed ones.
func (s *Service) ReorderAssets(ctx context.Context, id string, files []string) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		seen := make(map[string]bool, len(files))
		var violations []apperr.Violation
		for i, f := range files {
			if _, ok := p.Asset(f); !ok {
				return apperr.NotFound("asset", f)
			}
			if seen[f] {
				violations = append(violations, apperr.Violation{
					Field:   fmt.Sprintf("files[%d]", i),
					Message: fmt.Sprintf("duplicate file %q", f),
				})
			}
			seen[f] = true
		}
		if len(violations) > 0 {
			return &apperr.ValidationError{Violations: violations}
		}

		materialize(m, p)
		byFile := make(map[string]manifest.Slide, len(m.Slides))
		for _, sl := range m.Slides {
			byFile[sl.File] = sl
		}
		ordered := make([]manifest.Slide, 0, len(m.Slides))
		for _, f := range files {
			ordered = append(ordered, byFile[f])
		}
		for _, sl := range m.Slides {
			if !seen[sl.File] {
				ordered = append(ordered, sl)
			}
		}
		m.Slides = ordered
		return nil
	})
}

// AssignAssetGroup moves an asset into group, or out of any group when
// group is empty.
func (s *Service) AssignAssetGroup(ctx context.Context, id, file, group string) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		if _, ok := p.Asset(file); !ok {
			return apperr.NotFound("asset", file)
		}
		if group != "" {
			if _, ok := m.Groups[group]; !ok {
				return apperr.NotFound("group", group)
			}
		}
		materialize(m, p)
		_, i, _ := m.Slide(file)
		m.Slides[i].Group = group
		return nil
	})
}

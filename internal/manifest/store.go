package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/checksum"
	"github.com/starford/deckhand/internal/storage"
)

// DefaultName is the manifest file name inside a presentation folder.
const DefaultName = "presentation.json"

// Store persists manifests through a storage.Provider. Writers are not
// coordinated: the last Write or Patch to reach the file wins.
type Store struct {
	fs   storage.Provider
	name string
	now  func() time.Time
}

// NewStore creates a manifest store. An empty name selects DefaultName.
func NewStore(fs storage.Provider, name string) *Store {
	if name == "" {
		name = DefaultName
	}
	return &Store{fs: fs, name: name, now: time.Now}
}

// Name returns the manifest file name.
func (s *Store) Name() string { return s.name }

// Path returns the library-relative manifest path for a presentation.
func (s *Store) Path(presentation string) string {
	return path.Join(presentation, s.name)
}

// Read loads the manifest of a presentation together with the checksum of
// the stored bytes. An absent file yields Default() and an empty checksum.
// A malformed file yields Default() and a ValidationError so callers can
// decide whether to degrade or surface it.
func (s *Store) Read(presentation string) (*Manifest, string, error) {
	data, err := s.fs.Read(s.Path(presentation))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), "", nil
		}
		return Default(), "", err
	}
	m, err := Decode(data)
	if err != nil {
		return Default(), checksum.Sum(data), apperr.Invalid("document", err.Error())
	}
	// A stored document missing an order reads as order 0; only documents
	// submitted for writing must carry one.
	m.unordered = nil
	return m, checksum.Sum(data), nil
}

// Write validates m and replaces the stored document. When ifMatch is
// non-empty it must equal the checksum of the current document.
// It returns the checksum of the written bytes.
func (s *Store) Write(presentation string, m *Manifest, ifMatch string) (string, error) {
	if err := check(m); err != nil {
		return "", err
	}
	current, cs, err := s.Read(presentation)
	if err != nil && !errors.Is(err, apperr.ErrValidation) {
		return "", err
	}
	if ifMatch != "" && ifMatch != cs {
		return "", fmt.Errorf("manifest %q changed since read: %w", presentation, apperr.ErrConflict)
	}

	out := m.Clone()
	now := s.now().UTC()
	if out.Meta.Created == nil {
		out.Meta.Created = current.Meta.Created
	}
	if out.Meta.Created == nil {
		out.Meta.Created = &now
	}
	out.Meta.Updated = &now

	data, err := Encode(out)
	if err != nil {
		return "", err
	}
	if err := s.fs.Write(s.Path(presentation), data); err != nil {
		return "", fmt.Errorf("manifest: write %s: %w", presentation, err)
	}
	return checksum.Sum(data), nil
}

// Patch deep-merges partial into the stored document and writes the result.
// Object values merge key by key, arrays and scalars replace, and a null
// removes the key. The merged document is validated before anything is
// written, so an invalid patch leaves the stored document untouched.
func (s *Store) Patch(presentation string, partial map[string]any, ifMatch string) (*Manifest, string, error) {
	current, _, err := s.Read(presentation)
	if err != nil && !errors.Is(err, apperr.ErrValidation) {
		return nil, "", err
	}
	base, err := toMap(current)
	if err != nil {
		return nil, "", err
	}
	merged := mergePatch(base, partial)

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, "", fmt.Errorf("manifest: encode patch: %w", err)
	}
	next, err := Decode(raw)
	if err != nil {
		return nil, "", apperr.Invalid("document", err.Error())
	}
	cs, err := s.Write(presentation, next, ifMatch)
	if err != nil {
		return nil, "", err
	}
	written, _, err := s.Read(presentation)
	if err != nil {
		return nil, "", err
	}
	return written, cs, nil
}

func toMap(m *Manifest) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return out, nil
}

func mergePatch(dst, patch map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		pv, isObj := v.(map[string]any)
		dv, dstObj := dst[k].(map[string]any)
		if isObj && dstObj {
			dst[k] = mergePatch(dv, pv)
			continue
		}
		if isObj {
			dst[k] = mergePatch(map[string]any{}, pv)
			continue
		}
		dst[k] = v
	}
	return dst
}

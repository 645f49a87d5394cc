package navigation

import "github.com/starford/deckhand/internal/apperr"

// Display kinds.
const (
	DisplayNone   = "none"
	DisplayInline = "inline"
	DisplayRef    = "ref"
)

// Display tells the content boundary what to show.
type Display struct {
	Kind string `json:"kind"`
	File string `json:"file,omitempty"`
}

// RenderTarget holds the two ways of addressing the content boundary:
// inline asset content and a tab entry document by reference. At most one
// may be set.
type RenderTarget struct {
	Inline string
	Ref    string
}

// ShowInline addresses an asset, clearing any reference first.
func (r *RenderTarget) ShowInline(file string) {
	r.Ref = ""
	r.Inline = file
}

// ShowRef addresses a tab entry document, clearing inline content first.
func (r *RenderTarget) ShowRef(file string) {
	r.Inline = ""
	r.Ref = file
}

// Clear unsets both.
func (r *RenderTarget) Clear() {
	r.Inline, r.Ref = "", ""
}

// Resolve returns what to display. When both fields are set inline content
// wins and apperr.ErrAmbiguousRenderState is returned alongside.
func (r RenderTarget) Resolve() (Display, error) {
	switch {
	case r.Inline != "" && r.Ref != "":
		return Display{Kind: DisplayInline, File: r.Inline}, apperr.ErrAmbiguousRenderState
	case r.Inline != "":
		return Display{Kind: DisplayInline, File: r.Inline}, nil
	case r.Ref != "":
		return Display{Kind: DisplayRef, File: r.Ref}, nil
	}
	return Display{Kind: DisplayNone}, nil
}

package manifest

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/deckhand/internal/apperr"
)

var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// plainFile rejects anything that is not a bare file name.
var plainFile = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." || path.Base(s) != s {
		return errors.New("must be a plain file name")
	}
	return nil
})

var htmlFile = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	ext := strings.ToLower(path.Ext(s))
	if ext != ".html" && ext != ".htm" {
		return errors.New("must be an .html document")
	}
	return nil
})

// Validate implements validation.Validatable.
func (g GroupDef) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Label, validation.Required, validation.Length(1, 200)),
		validation.Field(&g.TabID, validation.When(g.TabID != "", validation.Match(idRe))),
	)
}

// Validate implements validation.Validatable.
func (t TabDef) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required, validation.Match(idRe)),
		validation.Field(&t.Label, validation.Required, validation.Length(1, 200)),
		validation.Field(&t.File, validation.Required, plainFile, htmlFile),
	)
}

// Validate implements validation.Validatable.
func (s Slide) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.File, validation.Required, plainFile),
	)
}

// Validate checks the document shape and returns every violation found,
// ordered by field path. Dangling references (a group naming an unknown tab,
// a slide naming an unknown group) are not violations; they are reconciled
// when the effective state is derived.
func Validate(m *Manifest) []apperr.Violation {
	var out []apperr.Violation

	ids := make([]string, 0, len(m.Groups))
	for id := range m.Groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		field := "groups." + id
		if !idRe.MatchString(id) {
			out = append(out, apperr.Violation{Field: field, Message: "id must be alphanumeric with - or _"})
		}
		collect(field, m.Groups[id].Validate(), &out)
		if m.unordered[field] {
			out = append(out, apperr.Violation{Field: field + ".order", Message: "is required"})
		}
	}

	seenTabs := make(map[string]bool, len(m.Tabs))
	for i, t := range m.Tabs {
		field := fmt.Sprintf("tabs[%d]", i)
		collect(field, t.Validate(), &out)
		if m.unordered[field] {
			out = append(out, apperr.Violation{Field: field + ".order", Message: "is required"})
		}
		if t.ID != "" && seenTabs[t.ID] {
			out = append(out, apperr.Violation{Field: field + ".id", Message: fmt.Sprintf("duplicate tab id %q", t.ID)})
		}
		seenTabs[t.ID] = true
	}

	seenSlides := make(map[string]bool, len(m.Slides))
	for i, s := range m.Slides {
		field := fmt.Sprintf("slides[%d]", i)
		collect(field, s.Validate(), &out)
		if s.File != "" && seenSlides[s.File] {
			out = append(out, apperr.Violation{Field: field + ".file", Message: fmt.Sprintf("duplicate slide %q", s.File)})
		}
		seenSlides[s.File] = true
	}
	return out
}

// collect flattens ozzo-validation errors into dotted field violations.
func collect(prefix string, err error, out *[]apperr.Violation) {
	if err == nil {
		return
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(prefix+"."+k, errs[k], out)
		}
		return
	}
	*out = append(*out, apperr.Violation{Field: prefix, Message: err.Error()})
}

// check returns a ValidationError when m has violations.
func check(m *Manifest) error {
	if v := Validate(m); len(v) > 0 {
		return &apperr.ValidationError{Violations: v}
	}
	return nil
}

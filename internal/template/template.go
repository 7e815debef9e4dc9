// Package template holds the fixed invoice template catalog.
//
// Templates live at fixed catalog positions; a tier's MaxTemplates limit
// unlocks the first N positions. The catalog order is part of the product
// contract — reordering it changes which templates free users can reach.
package template

import "errors"

// ErrUnknownTemplate is returned for ids outside the catalog.
var ErrUnknownTemplate = errors.New("template: unknown template")

// Template describes one invoice layout.
type Template struct {
	ID          string `json:"id"`
	Index       int    `json:"index"` // fixed catalog position, zero-based
	Name        string `json:"name"`
	Description string `json:"description"`
	Accent      string `json:"accent"` // default accent color, hex
}

// catalog order matters: index i is unlocked by MaxTemplates > i.
var catalog = []Template{
	{ID: "classic", Index: 0, Name: "Classic", Description: "Clean single-column layout", Accent: "#1e3a5f"},
	{ID: "modern", Index: 1, Name: "Modern", Description: "Bold header with accent band", Accent: "#3498db"},
	{ID: "minimal", Index: 2, Name: "Minimal", Description: "Whitespace-heavy, no rules", Accent: "#2c3e50"},
	{ID: "ledger", Index: 3, Name: "Ledger", Description: "Dense table for long item lists", Accent: "#2ecc71"},
	{ID: "studio", Index: 4, Name: "Studio", Description: "Two-column layout for agencies", Accent: "#9b59b6"},
}

// All returns the catalog in display order.
func All() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks a template up by id.
func ByID(id string) (Template, error) {
	for _, t := range catalog {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, ErrUnknownTemplate
}

// Default returns the template every tier can use.
func Default() Template {
	return catalog[0]
}

package service

import (
	"fmt"
	"strings"

	"github.com/chaisthra/vibetrack/internal/model"
)

// CategoryMode selects how unknown categories are handled.
type CategoryMode string

const (
	// CategoryStrict rejects categories outside the known set.
	CategoryStrict CategoryMode = "strict"
	// CategoryExtensible creates unknown categories in the caller's partition.
	CategoryExtensible CategoryMode = "extensible"
)

const maxCategoryLen = 50

// DefaultCategories is the predefined category set.
var DefaultCategories = []string{"Work", "Health", "Learning", "Personal", "Creative", "Social"}

// DefaultFallbackCategory is used when classification is unavailable.
const DefaultFallbackCategory = "Personal"

// CategoryPolicy resolves user or classifier supplied category names to
// their canonical spelling.
type CategoryPolicy struct {
	mode     CategoryMode
	known    []string
	fallback string
}

// NewCategoryPolicy validates the configuration. The fallback must be one
// of known.
func NewCategoryPolicy(mode CategoryMode, known []string, fallback string) (*CategoryPolicy, error) {
	switch mode {
	case CategoryStrict, CategoryExtensible:
	default:
		return nil, fmt.Errorf("unknown category mode %q", mode)
	}
	if len(known) == 0 {
		known = DefaultCategories
	}
	if fallback == "" {
		fallback = DefaultFallbackCategory
	}

	p := &CategoryPolicy{mode: mode, known: append([]string(nil), known...)}
	canonical, ok := p.lookupKnown(fallback)
	if !ok {
		return nil, fmt.Errorf("fallback category %q is not in the known set", fallback)
	}
	p.fallback = canonical
	return p, nil
}

// Fallback returns the category used in degraded mode.
func (c *CategoryPolicy) Fallback() string {
	return c.fallback
}

// Known lists the predefined categories followed by p's custom ones.
func (c *CategoryPolicy) Known(p *model.Partition) []string {
	out := append([]string(nil), c.known...)
	if p != nil {
		out = append(out, p.CustomCategories...)
	}
	return out
}

// Resolve maps name to a canonical category for p. Under the extensible
// mode an unknown name is added to p's custom categories.
func (c *CategoryPolicy) Resolve(p *model.Partition, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c.fallback, nil
	}
	if canonical, ok := c.lookupKnown(name); ok {
		return canonical, nil
	}
	if canonical, ok := p.HasCustomCategory(name); ok {
		return canonical, nil
	}

	if c.mode == CategoryStrict {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownCategory, name)
	}
	if len(name) > maxCategoryLen || strings.ContainsAny(name, "\n\r\t") {
		return "", fmt.Errorf("%w: category name is invalid", model.ErrValidation)
	}
	p.CustomCategories = append(p.CustomCategories, name)
	return name, nil
}

// Classified maps a classifier answer to an existing category. It never
// creates categories; unusable answers fall back.
func (c *CategoryPolicy) Classified(p *model.Partition, name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := c.lookupKnown(name); ok {
		return canonical
	}
	if canonical, ok := p.HasCustomCategory(name); ok {
		return canonical
	}
	return c.fallback
}

func (c *CategoryPolicy) lookupKnown(name string) (string, bool) {
	for _, k := range c.known {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

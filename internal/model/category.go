package model

import (
	"strings"

	"github.com/gosimple/slug"
)

// DefaultCategory is used when a task is saved without one.
const DefaultCategory = "general"

// NormalizeCategory trims the free-form name and applies the default.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultCategory
	}
	return name
}

// CategorySlug is the URL-safe key used to filter tasks by category.
func CategorySlug(name string) string {
	return slug.Make(NormalizeCategory(name))
}

// CategorySummary groups an owner's tasks by category name.
type CategorySummary struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Total int64  `json:"total"`
	Open  int64  `json:"open"`
}

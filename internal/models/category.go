package models

import (
	"fmt"
	"strings"
)

// Category is the fixed set of habit tags
type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryStudy    Category = "study"
	CategoryExercise Category = "exercise"
	CategoryHealth   Category = "health"
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryStudy,
	CategoryExercise,
	CategoryHealth,
	CategoryWork,
	CategoryPersonal,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name case-insensitively. An empty string yields CategoryGeneral.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

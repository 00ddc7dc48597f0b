package schema

import (
	"strconv"
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// Naming helpers for registered models: storage (table) names derived from
// model names, and generated names for anonymous shapes.

// pluralizeClient is a singleton instance for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// DefaultAnonymousPrefix names shapes synthesized for nested structures that
// no caller ever named explicitly.
const DefaultAnonymousPrefix = "AnonymousModel_"

// TableName converts a model name to its storage name: snake_case, plural.
func TableName(modelName string) string {
	if modelName == "" {
		return ""
	}
	return pluralize(toSnakeCase(modelName))
}

// AnonymousModelName builds the name for the n-th synthesized anonymous model.
func AnonymousModelName(prefix string, n uint64) string {
	if prefix == "" {
		prefix = DefaultAnonymousPrefix
	}
	return prefix + strconv.FormatUint(n, 10)
}

// toSnakeCase converts any naming convention to snake_case.
// Handles acronym runs and digit boundaries.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	// Handle special common cases for performance
	switch name {
	case "ID":
		return "id"
	case "UUID":
		return "uuid"
	case "URL":
		return "url"
	case "API":
		return "api"
	case "JSON":
		return "json"
	}

	// If already snake_case (contains underscores and no uppercase), return as-is
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return strings.ToLower(name)
	}

	var result strings.Builder
	result.Grow(len(name) + 10)

	runes := []rune(name)

	for i, r := range runes {
		lower := unicode.ToLower(r)

		needsUnderscore := false
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]

			// Underscore before uppercase when the previous rune is lowercase
			// or a digit (aB -> a_b), or when an acronym run ends (ABc -> a_bc).
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				needsUnderscore = true
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				needsUnderscore = true
			}
		}

		if needsUnderscore {
			result.WriteByte('_')
		}

		result.WriteRune(lower)
	}

	return result.String()
}

// pluralize converts singular nouns to their plural forms.
func pluralize(name string) string {
	if name == "" {
		return ""
	}

	// Common irregulars, handled before the library for performance
	switch strings.ToLower(name) {
	case "person":
		return "people"
	case "child":
		return "children"
	case "datum":
		return "data"
	case "medium":
		return "media"
	}

	return pluralizeClient.Pluralize(name, 2, false)
}

// hasUpperCase returns true if the string contains any uppercase letters.
func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

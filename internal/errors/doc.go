// Package errors provides coded, actionable errors for the selectd command.
//
// Each error has a code (e.g. "S100") that maps to a category, a short
// message and a longer explanation. Call sites add a suggestion and wrap the
// underlying cause:
//
//	return errors.New("S101").
//	    WithDetail("parse selectd.yaml: " + err.Error()).
//	    WithSuggestion("Check that the file is valid YAML")
//
// Format renders the error for a terminal, FormatCompact for logs and
// FormatJSON for HTTP responses.
package errors

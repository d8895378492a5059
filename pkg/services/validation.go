package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	sqlcheck "github.com/ekaya-inc/catalog-engine/pkg/sql"
)

// MaxNameLength is the longest name accepted for catalog entities, in characters.
const MaxNameLength = 256

const (
	msgBlank        = "can't be blank"
	msgTooLong      = "is too long (maximum is 256 characters)"
	msgInvalidChars = "contains invalid characters"
	msgTaken        = "has already been taken"
	msgNotIncluded  = "is not included in the list"
	msgNotReadOnly  = "must be a single SELECT statement"
)

// validateName records problems with a catalog object name under field.
func validateName(v *apperrors.ValidationError, field, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		v.Add(field, msgBlank)
	case utf8.RuneCountInString(name) > MaxNameLength:
		v.Add(field, msgTooLong)
	case !utf8.ValidString(name) || strings.ContainsFunc(name, invalidNameRune):
		v.Add(field, msgInvalidChars)
	}
}

func invalidNameRune(r rune) bool {
	return unicode.IsControl(r) || r == '"'
}

// validateQuery records problems with a chorus view query and returns it normalized.
func validateQuery(v *apperrors.ValidationError, field, query string) string {
	if strings.TrimSpace(query) == "" {
		v.Add(field, msgBlank)
		return ""
	}
	normalized, err := sqlcheck.ValidateChorusViewQuery(query)
	if err != nil {
		v.Add(field, msgNotReadOnly)
		return ""
	}
	return normalized
}

// nameTaken returns the validation error for a duplicate name.
// It wraps ErrConflict so callers can tell it apart from malformed input.
func nameTaken(field string) error {
	v := apperrors.NewValidationError().WithCause(apperrors.ErrConflict)
	v.Add(field, msgTaken)
	return v
}

package domain

// ValidateRow reports whether a row is eligible for graph assembly.
// Ineligible rows are dropped, never fatal: callers treat a non-nil error as
// "emit nothing for this row".
func ValidateRow(r Row) error {
	t := r.Type()
	if t == "" {
		return NewValidationError(FieldType, r.Field(FieldType), ErrMissingType)
	}
	if !AllowedTypes[t] {
		return NewValidationError(FieldType, t, ErrDisallowedType)
	}
	if r.UID() == "" || IsMissing(r.Field(FieldUID)) {
		return NewValidationError(FieldUID, r.Field(FieldUID), ErrMissingUID)
	}
	return nil
}

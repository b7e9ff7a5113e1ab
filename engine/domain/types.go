// Package domain defines the debate record model and validation shared by the
// ingestion engine.
package domain

import "strings"

// Column names of the debates spreadsheet. Multi-valued cells are
// semicolon-delimited.
const (
	FieldUID             = "UID"
	FieldType            = "Type"
	FieldLegislature     = "Legislature"
	FieldCorporateAuthor = "CorporateAuthor"
	FieldSubject         = "Subject"
	FieldMember          = "Member"
	FieldMemberParty     = "Member Party"
	FieldLeadMember      = "Lead Member"
	FieldLeadMemberParty = "Lead Member Party"
	FieldAnsweringMember = "Answering Member"
	FieldAnsweringParty  = "Answering Member Party"
	FieldDebateText      = "Debate Raw Text"
	FieldQuestionText    = "Written Question Raw Text"
	FieldAnswerText      = "Written Answer Raw Text"
	FieldDate            = "Date"
)

// ListDelimiter separates values inside multi-valued cells.
const ListDelimiter = ";"

// AllowedTypes are the debate record types that produce graph output.
// Everything else (press releases, divisions, ...) is filtered.
var AllowedTypes = map[string]bool{
	"Written questions":        true,
	"Oral questions":           true,
	"Proceeding contributions": true,
}

// Row is one debate record. Fields are accessed by column name; absent
// columns read as missing rather than erroring.
type Row struct {
	fields map[string]string
}

// NewRow builds a Row from a field map. The map is copied.
func NewRow(fields map[string]string) Row {
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Row{fields: m}
}

// Get returns the raw cell value and whether the column exists.
func (r Row) Get(field string) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Field returns the raw cell value, or "" when the column is absent.
func (r Row) Field(field string) string {
	return r.fields[field]
}

// Has reports whether the field holds usable text (not absent, blank, or a
// spreadsheet NaN artifact).
func (r Row) Has(field string) bool {
	return !IsMissing(r.fields[field])
}

// List returns the field split on the list delimiter, trimmed, with empty
// entries dropped. A missing field yields an empty list.
func (r Row) List(field string) []string {
	return SplitList(r.fields[field])
}

// Fields returns a copy of the row's field map, e.g. for serialization.
func (r Row) Fields() map[string]string {
	m := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		m[k] = v
	}
	return m
}

// UID returns the row's unique identifier, trimmed.
func (r Row) UID() string {
	return strings.TrimSpace(r.fields[FieldUID])
}

// Type returns the row's record type, trimmed.
func (r Row) Type() string {
	return strings.TrimSpace(r.fields[FieldType])
}

// IsMissing reports whether a cell value carries no usable text. Spreadsheet
// exports surface empty cells as "", "nan", or "NaN".
func IsMissing(v string) bool {
	s := strings.TrimSpace(v)
	return s == "" || strings.EqualFold(s, "nan")
}

// SplitList splits a multi-valued cell into cleaned entries.
func SplitList(v string) []string {
	if IsMissing(v) {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ListDelimiter) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

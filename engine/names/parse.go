// Package names parses UK parliamentary name strings into first name, last
// name, and honorific. The rules are a best-effort heuristic tuned to Hansard
// exports, not a grammar: middle names and double-barreled surnames lose
// information, and tests pin the current behavior.
package names

import (
	"regexp"
	"sort"
	"strings"
)

// Name is the parsed form of a raw member name.
type Name struct {
	First     string
	Last      string
	Honorific string
}

// Honorific prefixes consumed from the front of a name, longest first so
// "The Rt Hon" wins over "Rt Hon" wins over "Hon".
var prefixes = []string{
	"The Rt Hon", "Rt Hon", "The Hon", "Hon",
	"Sir", "Dame", "Lord", "Lady", "Baroness", "Baron",
	"Viscount", "Earl", "Marquess", "Duke",
	"Dr", "Professor", "Prof",
}

var prefixesByLength = sortByLengthDesc(prefixes)

// Post-nominal letters stripped from the end of a name.
var postNominals = map[string]bool{
	"MP": true, "MSP": true, "MS": true, "AM": true,
	"KC": true, "QC": true, "PC": true, "DL": true,
	"OBE": true, "MBE": true, "CBE": true, "KBE": true, "DBE": true,
	"FRS": true, "FMedSci": true, "FBA": true, "FRSA": true,
}

// peerageTitle matches "Baroness Smith of Basildon" style right-hand segments
// in comma-ordered names.
var peerageTitle = regexp.MustCompile(`(?i)^(?:The\s+)?(Baroness|Baron|Lord|Lady|Viscount|Earl|Marquess|Duke)\b`)

// Parse splits a raw name string into (first, last, honorific). Empty,
// whitespace-only, and "nan" inputs parse to the zero Name.
func Parse(raw string) Name {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return Name{}
	}

	s = stripPostNominals(s)

	if strings.Contains(s, ",") {
		return parseCommaStyle(s)
	}

	honorifics, rest := consumePrefixes(s)

	// "Baroness Smith of Basildon": a territorial designation after a
	// consumed title is part of the peerage name, not a first/last split.
	if honorifics != "" && strings.Contains(rest, " of ") {
		return Name{Last: rest, Honorific: honorifics}
	}

	parts := strings.Fields(rest)
	switch len(parts) {
	case 0:
		return Name{Honorific: honorifics}
	case 1:
		return Name{Last: parts[0], Honorific: honorifics}
	default:
		// Interior tokens (middle names) are dropped.
		return Name{First: parts[0], Last: parts[len(parts)-1], Honorific: honorifics}
	}
}

// stripPostNominals removes trailing post-nominal tokens, iterating from the
// end until no more match.
func stripPostNominals(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ",")
	tokens := strings.Fields(s)
	for len(tokens) > 0 && postNominals[strings.TrimRight(tokens[len(tokens)-1], ",")] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.TrimSpace(strings.Join(tokens, " "))
}

// consumePrefixes strips known honorific prefixes from the start of s,
// longest-match-first and case-insensitive, returning the consumed honorifics
// (space-joined, canonical casing) and the remainder.
func consumePrefixes(s string) (honorifics, rest string) {
	s = strings.TrimSpace(s)
	var consumed []string
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, p := range prefixesByLength {
			pl := strings.ToLower(p)
			if strings.HasPrefix(lower, pl+" ") {
				consumed = append(consumed, p)
				s = strings.TrimLeft(s[len(p):], " ")
				changed = true
				break
			}
			if lower == pl {
				consumed = append(consumed, p)
				s = ""
				changed = true
				break
			}
		}
	}
	return strings.Join(consumed, " "), strings.TrimSpace(s)
}

// parseCommaStyle handles "Last, Rest" ordering. A right segment matching a
// peerage title keeps the left segment whole as the peerage name.
func parseCommaStyle(s string) Name {
	left, right, _ := strings.Cut(s, ",")
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)

	if m := peerageTitle.FindStringSubmatch(right); m != nil {
		return Name{Last: left, Honorific: titleCase(m[1])}
	}

	right = stripPostNominals(right)
	parts := strings.Fields(right)
	var first string
	if len(parts) > 0 {
		first = parts[0]
	}
	last := left
	if last == "" && len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return Name{First: first, Last: last}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func sortByLengthDesc(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

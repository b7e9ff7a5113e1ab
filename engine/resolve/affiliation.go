// Package resolve reconciles member and party lists of unequal cardinality.
// An affiliation index built in a first full pass over the dataset provides
// the fallback when positional pairing is impossible.
package resolve

import (
	"sort"
	"strings"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
)

// memberPartyColumns are the three (member, party) column pairs that
// contribute affiliation evidence.
var memberPartyColumns = [][2]string{
	{domain.FieldMember, domain.FieldMemberParty},
	{domain.FieldLeadMember, domain.FieldLeadMemberParty},
	{domain.FieldAnsweringMember, domain.FieldAnsweringParty},
}

// Index maps a normalized person key to the set of party names the dataset
// has positively associated with them. Built once before any row emission.
type Index struct {
	byMember map[string]map[string]struct{}
}

// NewIndex returns an empty affiliation index.
func NewIndex() *Index {
	return &Index{byMember: make(map[string]map[string]struct{})}
}

// BuildIndex scans the whole dataset and records (member, party) pairs from
// every row whose member and party lists are both non-empty and equal in
// length. Mismatched rows contribute nothing: only unambiguous positional
// evidence enters the index.
func BuildIndex(rows []domain.Row) *Index {
	idx := NewIndex()
	for _, row := range rows {
		for _, cols := range memberPartyColumns {
			idx.addRow(row.List(cols[0]), row.List(cols[1]))
		}
	}
	return idx
}

func (idx *Index) addRow(members, parties []string) {
	if len(members) == 0 || len(members) != len(parties) {
		return
	}
	for i, m := range members {
		idx.Add(m, parties[i])
	}
}

// Add records one (member, party) affiliation.
func (idx *Index) Add(member, party string) {
	party = strings.TrimSpace(party)
	if party == "" {
		return
	}
	key := NormalizeKey(member)
	set, ok := idx.byMember[key]
	if !ok {
		set = make(map[string]struct{})
		idx.byMember[key] = set
	}
	set[party] = struct{}{}
}

// Known returns the parties recorded for a member, in sorted order so
// fallback pairings are deterministic across runs. Nil when unknown.
func (idx *Index) Known(member string) []string {
	set, ok := idx.byMember[NormalizeKey(member)]
	if !ok || len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed members.
func (idx *Index) Len() int { return len(idx.byMember) }

// NormalizeKey lowercases and trims a member name for index lookups.
func NormalizeKey(member string) string {
	return strings.ToLower(strings.TrimSpace(member))
}

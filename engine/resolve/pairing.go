package resolve

import "strings"

// Pairing associates a member with a party. Party is empty when no party
// could be resolved.
type Pairing struct {
	Member string
	Party  string
}

// Resolver pairs a row's member list against its party list, consulting the
// affiliation index when the cardinalities disagree.
type Resolver struct {
	index *Index
}

// NewResolver creates a Resolver over the given index. A nil index behaves
// like an empty one.
func NewResolver(index *Index) *Resolver {
	if index == nil {
		index = NewIndex()
	}
	return &Resolver{index: index}
}

// Pair reconciles members against parties. Tie-break order:
//
//  1. equal non-zero lengths: positional zip
//  2. one party, many members: every member gets that party
//  3. one member, many parties: that member fans out to every party
//  4. otherwise: per-member index lookup, one pairing per known party,
//     or a single partyless pairing when the member is unknown
func (r *Resolver) Pair(members, parties []string) []Pairing {
	switch {
	case len(members) > 0 && len(members) == len(parties):
		pairs := make([]Pairing, len(members))
		for i, m := range members {
			pairs[i] = Pairing{Member: m, Party: parties[i]}
		}
		return pairs

	case len(members) > 1 && len(parties) == 1:
		pairs := make([]Pairing, len(members))
		for i, m := range members {
			pairs[i] = Pairing{Member: m, Party: parties[0]}
		}
		return pairs

	case len(members) == 1 && len(parties) > 1:
		pairs := make([]Pairing, len(parties))
		for i, p := range parties {
			pairs[i] = Pairing{Member: members[0], Party: p}
		}
		return pairs
	}

	var pairs []Pairing
	for _, m := range members {
		known := r.index.Known(m)
		if len(known) == 0 {
			pairs = append(pairs, Pairing{Member: m})
			continue
		}
		for _, p := range known {
			pairs = append(pairs, Pairing{Member: m, Party: p})
		}
	}
	return pairs
}

// PairsFor filters pairings to those whose member matches name
// case-insensitively. One Pair call serves every member in a row; callers
// select their slice per person.
func PairsFor(pairs []Pairing, name string) []Pairing {
	want := NormalizeKey(name)
	var out []Pairing
	for _, p := range pairs {
		if NormalizeKey(p.Member) == want {
			out = append(out, p)
		}
	}
	return out
}

// Parties returns the non-empty, trimmed party names of the pairings.
func Parties(pairs []Pairing) []string {
	var out []string
	for _, p := range pairs {
		if t := strings.TrimSpace(p.Party); t != "" {
			out = append(out, t)
		}
	}
	return out
}

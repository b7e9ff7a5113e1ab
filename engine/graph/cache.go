package graph

import (
	"context"
	"strings"
	"sync"

	"github.com/HansardGraph/hansard-mvp/engine/names"
)

// Finder looks up an existing node in the external store by natural key.
// A (nil, nil) return means "not found" — never an error.
type Finder interface {
	FindNode(ctx context.Context, label, keyField, keyValue string) (*Entity, error)
}

// EntityCache deduplicates one entity kind by natural key. On a miss it
// consults the store first, adopting an existing node's identity rather than
// minting a duplicate. At most one in-process creation happens per distinct
// key per run.
type EntityCache struct {
	mu       sync.Mutex
	label    string
	keyField string
	finder   Finder
	mint     func(key string) *Entity
	entries  map[string]*Entity
}

// NewEntityCache creates a cache for one label. finder may be nil, in which
// case every miss mints a new entity.
func NewEntityCache(label, keyField string, finder Finder, mint func(key string) *Entity) *EntityCache {
	return &EntityCache{
		label:    label,
		keyField: keyField,
		finder:   finder,
		mint:     mint,
		entries:  make(map[string]*Entity),
	}
}

// GetOrCreate returns the entity for key, reusing the in-memory instance,
// then the store's node, then minting. Store failures propagate: the caller
// decides whether the run can continue.
func (c *EntityCache) GetOrCreate(ctx context.Context, key string) (*Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	if c.finder != nil {
		found, err := c.finder.FindNode(ctx, c.label, c.keyField, key)
		if err != nil {
			return nil, err
		}
		if found != nil {
			c.entries[key] = found
			return found, nil
		}
	}
	e := c.mint(key)
	c.entries[key] = e
	return e, nil
}

// Len returns the number of cached keys.
func (c *EntityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Caches owns the per-run entity caches and the MEMBER_OF dedup set. One
// Caches instance scopes one ingestion run; nothing is process-global.
type Caches struct {
	Persons     *EntityCache
	Parties     *EntityCache
	Chambers    *EntityCache
	Subjects    *EntityCache
	Departments *EntityCache

	mu        sync.Mutex
	memberOf  map[affiliationKey]bool
	dedupHits int
}

type affiliationKey struct {
	person string
	party  string
}

// NewCaches builds the run-scoped caches over a store finder.
func NewCaches(finder Finder) *Caches {
	return &Caches{
		Persons: NewEntityCache(LabelPerson, "full_name", finder, func(key string) *Entity {
			n := names.Parse(key)
			return NewPerson(key, n.First, n.Last, n.Honorific)
		}),
		Parties:     namedCache(LabelParty, finder),
		Chambers:    namedCache(LabelChamber, finder),
		Subjects:    namedCache(LabelSubject, finder),
		Departments: namedCache(LabelDepartment, finder),
		memberOf:    make(map[affiliationKey]bool),
	}
}

func namedCache(label string, finder Finder) *EntityCache {
	return NewEntityCache(label, "name", finder, func(key string) *Entity {
		return NewNamed(label, key)
	})
}

// SeenMemberOf checks and marks a (person, party) affiliation fact,
// case-folded on both sides. The first caller per fact gets false and owns
// the edge emission; every re-derivation afterwards gets true. The set is
// independent of the Person/Party caches because the same fact is re-derived
// from several rows and several member columns.
func (c *Caches) SeenMemberOf(person, party string) bool {
	k := affiliationKey{
		person: strings.ToLower(strings.TrimSpace(person)),
		party:  strings.ToLower(strings.TrimSpace(party)),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memberOf[k] {
		c.dedupHits++
		return true
	}
	c.memberOf[k] = true
	return false
}

// MemberOfDeduped returns how many affiliation re-derivations the dedup set
// suppressed during the run.
func (c *Caches) MemberOfDeduped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dedupHits
}

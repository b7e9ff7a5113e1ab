// Package graph assembles deduplicated debate subgraphs and persists them to
// Neo4j with idempotent natural-key merges.
package graph

// Node labels.
const (
	LabelDebate     = "Debate"
	LabelPerson     = "Person"
	LabelParty      = "Party"
	LabelChamber    = "Chamber"
	LabelSubject    = "Subject"
	LabelDepartment = "Department"
	LabelText       = "Text"
)

// Edge types.
const (
	EdgeAuthors     = "AUTHORS"
	EdgeSponsors    = "SPONSORS"
	EdgeGives       = "GIVES"
	EdgeHolds       = "HOLDS"
	EdgeMemberOf    = "MEMBER_OF"
	EdgeSubmittedTo = "SUBMITTED_TO"
	EdgeHas         = "HAS"
	EdgeAssignedTo  = "ASSIGNED_TO"
	EdgeAnswers     = "ANSWERS"
	EdgeContains    = "CONTAINS"
)

// Text node subtypes.
const (
	SubtypeDebateText   = "DebateText"
	SubtypeQuestionText = "QuestionText"
	SubtypeAnswerText   = "AnswerText"
)

// Ref identifies a node by label and natural key.
type Ref struct {
	Label    string
	KeyField string
	Key      string
}

// Entity is a graph node keyed by a natural key. At most one Entity exists
// in memory per (label, key) within a run.
type Entity struct {
	Label    string
	KeyField string
	Key      string
	Props    map[string]any
}

// Ref returns the entity's node reference.
func (e *Entity) Ref() Ref {
	return Ref{Label: e.Label, KeyField: e.KeyField, Key: e.Key}
}

// Edge is a relationship between two nodes. Key is the deterministic
// relationship key enabling idempotent upsert; an empty Key merges on the
// endpoints and type alone (single instance per pair suffices).
type Edge struct {
	Type  string
	Key   string
	Start Ref
	End   Ref
	Props map[string]any
}

// Subgraph is the bag of entities and edges produced for one row. An empty
// Subgraph is the valid output for filtered-out rows.
type Subgraph struct {
	Entities []*Entity
	Edges    []Edge

	seen map[Ref]bool
}

// AddEntity appends an entity, deduplicating by (label, key). Safe to call
// with the same cached entity from several places in one row.
func (s *Subgraph) AddEntity(e *Entity) {
	if e == nil {
		return
	}
	if s.seen == nil {
		s.seen = make(map[Ref]bool)
	}
	ref := e.Ref()
	if s.seen[ref] {
		return
	}
	s.seen[ref] = true
	s.Entities = append(s.Entities, e)
}

// AddEdge appends an edge.
func (s *Subgraph) AddEdge(e Edge) {
	s.Edges = append(s.Edges, e)
}

// Empty reports whether the subgraph holds nothing.
func (s *Subgraph) Empty() bool {
	return len(s.Entities) == 0 && len(s.Edges) == 0
}

// NewDebate builds the Debate node for a row.
func NewDebate(uid, recordType, date, legislature string) *Entity {
	return &Entity{
		Label:    LabelDebate,
		KeyField: "uid",
		Key:      uid,
		Props: map[string]any{
			"uid":         uid,
			"type":        recordType,
			"date":        date,
			"legislature": legislature,
		},
	}
}

// NewPerson builds a Person node. The raw full name is the natural key;
// parsed attributes are derived.
func NewPerson(fullName, first, last, honorific string) *Entity {
	return &Entity{
		Label:    LabelPerson,
		KeyField: "full_name",
		Key:      fullName,
		Props: map[string]any{
			"full_name":    fullName,
			"parsed_first": first,
			"parsed_last":  last,
			"honorifics":   honorific,
		},
	}
}

// NewNamed builds a node for the name-keyed labels (Party, Chamber, Subject,
// Department).
func NewNamed(label, name string) *Entity {
	return &Entity{
		Label:    label,
		KeyField: "name",
		Key:      name,
		Props:    map[string]any{"name": name},
	}
}

// NewText builds a Text node for one of a debate's raw-text columns.
func NewText(uid, subtype, content string) *Entity {
	key := TextKey(uid, subtype)
	return &Entity{
		Label:    LabelText,
		KeyField: "TextKey",
		Key:      key,
		Props: map[string]any{
			"TextKey":     key,
			"TextSubtype": subtype,
			"TextContent": content,
		},
	}
}

package graph

import (
	"context"
	"log/slog"
	"strings"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
	"github.com/HansardGraph/hansard-mvp/engine/resolve"
	"github.com/HansardGraph/hansard-mvp/pkg/fn"
)

// Assembler turns one debate row into its subgraph of entities and edges.
// It is the single, statically composed pipeline over a row: texts, member
// roles, chamber, subjects, departments. All dedup state lives in Caches.
type Assembler struct {
	caches   *Caches
	resolver *resolve.Resolver
	log      *slog.Logger
}

// NewAssembler creates an Assembler. logger may be nil.
func NewAssembler(caches *Caches, resolver *resolve.Resolver, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{caches: caches, resolver: resolver, log: logger}
}

// textColumns maps Text subtypes to their source columns, in emission order.
var textColumns = []struct {
	subtype string
	field   string
}{
	{SubtypeDebateText, domain.FieldDebateText},
	{SubtypeQuestionText, domain.FieldQuestionText},
	{SubtypeAnswerText, domain.FieldAnswerText},
}

// Assemble produces the subgraph for a row. Rows with a disallowed type or
// no usable UID yield an empty subgraph and a nil error — dropped, never
// fatal. A non-nil error only surfaces store lookup failures.
func (a *Assembler) Assemble(ctx context.Context, row domain.Row) (Subgraph, error) {
	var sg Subgraph

	if err := domain.ValidateRow(row); err != nil {
		a.log.Debug("assemble: row dropped", "uid", row.Field(domain.FieldUID), "reason", err)
		return sg, nil
	}

	uid := row.UID()
	debate := NewDebate(uid, row.Type(), row.Field(domain.FieldDate), strings.TrimSpace(row.Field(domain.FieldLegislature)))
	sg.AddEntity(debate)

	texts := a.buildTexts(&sg, debate, row, uid)

	if err := a.linkMembers(ctx, &sg, debate, row, uid, texts); err != nil {
		return sg, err
	}
	if err := a.linkLeadMembers(ctx, &sg, debate, row, uid, texts); err != nil {
		return sg, err
	}
	if err := a.linkAnsweringMembers(ctx, &sg, row, texts); err != nil {
		return sg, err
	}

	// One ANSWERS edge when both sides of a written exchange exist.
	if at, qt := texts[SubtypeAnswerText], texts[SubtypeQuestionText]; at != nil && qt != nil {
		sg.AddEdge(Edge{Type: EdgeAnswers, Start: at.Ref(), End: qt.Ref()})
	}

	if err := a.linkChamber(ctx, &sg, debate, row, uid); err != nil {
		return sg, err
	}
	if err := a.linkNamedList(ctx, &sg, debate, uid, a.caches.Subjects, EdgeHas, row.List(domain.FieldSubject)); err != nil {
		return sg, err
	}
	if err := a.linkNamedList(ctx, &sg, debate, uid, a.caches.Departments, EdgeAssignedTo, row.List(domain.FieldCorporateAuthor)); err != nil {
		return sg, err
	}

	return sg, nil
}

// buildTexts creates up to three Text nodes and their CONTAINS edges,
// skipping blank/NaN columns.
func (a *Assembler) buildTexts(sg *Subgraph, debate *Entity, row domain.Row, uid string) map[string]*Entity {
	texts := make(map[string]*Entity, len(textColumns))
	for _, tc := range textColumns {
		raw := row.Field(tc.field)
		if domain.IsMissing(raw) {
			continue
		}
		txt := NewText(uid, tc.subtype, strings.TrimSpace(raw))
		texts[tc.subtype] = txt
		sg.AddEntity(txt)
		sg.AddEdge(Edge{Type: EdgeContains, Key: txt.Key, Start: debate.Ref(), End: txt.Ref()})
	}
	return texts
}

// linkMembers handles the plain Member list: AUTHORS to the debate, HOLDS to
// the debate text, MEMBER_OF per resolved party. Lead members are excluded
// here (they get SPONSORS instead) and presiding-officer entries are skipped.
func (a *Assembler) linkMembers(ctx context.Context, sg *Subgraph, debate *Entity, row domain.Row, uid string, texts map[string]*Entity) error {
	members := row.List(domain.FieldMember)
	pairs := a.resolver.Pair(members, row.List(domain.FieldMemberParty))

	leadSet := make(map[string]bool)
	for _, l := range row.List(domain.FieldLeadMember) {
		leadSet[l] = true
	}

	// Pairing runs over the full list so positions line up; lead and
	// presiding-officer entries drop out of the iteration only.
	eligible := fn.Filter(members, func(n string) bool {
		return !leadSet[n] && !isSpeakerEntry(n)
	})
	for _, name := range eligible {
		person, err := a.caches.Persons.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		sg.AddEntity(person)
		sg.AddEdge(Edge{
			Type:  EdgeAuthors,
			Key:   DebateEdgeKey(uid, EdgeAuthors, name),
			Start: person.Ref(),
			End:   debate.Ref(),
		})
		if dt := texts[SubtypeDebateText]; dt != nil {
			sg.AddEdge(Edge{
				Type:  EdgeHolds,
				Key:   HoldsKey(dt.Key, name),
				Start: person.Ref(),
				End:   dt.Ref(),
			})
		}
		if err := a.linkAffiliations(ctx, sg, person, name, pairs); err != nil {
			return err
		}
	}
	return nil
}

// linkLeadMembers handles the Lead Member list: SPONSORS instead of AUTHORS,
// same HOLDS and MEMBER_OF treatment. The lead-set exclusion does not apply.
func (a *Assembler) linkLeadMembers(ctx context.Context, sg *Subgraph, debate *Entity, row domain.Row, uid string, texts map[string]*Entity) error {
	leads := row.List(domain.FieldLeadMember)
	pairs := a.resolver.Pair(leads, row.List(domain.FieldLeadMemberParty))

	for _, name := range fn.Filter(leads, isNotSpeaker) {
		person, err := a.caches.Persons.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		sg.AddEntity(person)
		sg.AddEdge(Edge{
			Type:  EdgeSponsors,
			Key:   DebateEdgeKey(uid, EdgeSponsors, name),
			Start: person.Ref(),
			End:   debate.Ref(),
		})
		if dt := texts[SubtypeDebateText]; dt != nil {
			sg.AddEdge(Edge{
				Type:  EdgeHolds,
				Key:   HoldsKey(dt.Key, name),
				Start: person.Ref(),
				End:   dt.Ref(),
			})
		}
		if err := a.linkAffiliations(ctx, sg, person, name, pairs); err != nil {
			return err
		}
	}
	return nil
}

// linkAnsweringMembers handles the Answering Member list: GIVES to the
// answer text plus MEMBER_OF. The GIVES edge reuses the AnswerText node's
// own key — a one-to-one assumption inherited from the source data.
func (a *Assembler) linkAnsweringMembers(ctx context.Context, sg *Subgraph, row domain.Row, texts map[string]*Entity) error {
	answerers := row.List(domain.FieldAnsweringMember)
	pairs := a.resolver.Pair(answerers, row.List(domain.FieldAnsweringParty))

	for _, name := range fn.Filter(answerers, isNotSpeaker) {
		person, err := a.caches.Persons.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		sg.AddEntity(person)
		if at := texts[SubtypeAnswerText]; at != nil {
			sg.AddEdge(Edge{
				Type:  EdgeGives,
				Key:   at.Key,
				Start: person.Ref(),
				End:   at.Ref(),
			})
		}
		if err := a.linkAffiliations(ctx, sg, person, name, pairs); err != nil {
			return err
		}
	}
	return nil
}

// linkAffiliations emits MEMBER_OF edges for the parties resolved for one
// person, subject to the run-wide dedup set.
func (a *Assembler) linkAffiliations(ctx context.Context, sg *Subgraph, person *Entity, name string, pairs []resolve.Pairing) error {
	for _, partyName := range resolve.Parties(resolve.PairsFor(pairs, name)) {
		if a.caches.SeenMemberOf(name, partyName) {
			continue
		}
		party, err := a.caches.Parties.GetOrCreate(ctx, partyName)
		if err != nil {
			return err
		}
		sg.AddEntity(party)
		sg.AddEdge(Edge{
			Type:  EdgeMemberOf,
			Key:   MemberOfKey(name, partyName),
			Start: person.Ref(),
			End:   party.Ref(),
		})
	}
	return nil
}

// linkChamber emits the single SUBMITTED_TO edge from the Legislature
// column. The edge carries the row's date.
func (a *Assembler) linkChamber(ctx context.Context, sg *Subgraph, debate *Entity, row domain.Row, uid string) error {
	name := strings.TrimSpace(row.Field(domain.FieldLegislature))
	if domain.IsMissing(name) {
		return nil
	}
	chamber, err := a.caches.Chambers.GetOrCreate(ctx, name)
	if err != nil {
		return err
	}
	sg.AddEntity(chamber)
	sg.AddEdge(Edge{
		Type:  EdgeSubmittedTo,
		Key:   DebateEdgeKey(uid, EdgeSubmittedTo, name),
		Start: debate.Ref(),
		End:   chamber.Ref(),
		Props: map[string]any{"date": row.Field(domain.FieldDate)},
	})
	return nil
}

// linkNamedList emits one get-or-create + edge per name in a multi-valued
// column (Subjects via HAS, Departments via ASSIGNED_TO). Repeated names in
// one cell collapse to one edge.
func (a *Assembler) linkNamedList(ctx context.Context, sg *Subgraph, debate *Entity, uid string, cache *EntityCache, edgeType string, items []string) error {
	for _, name := range fn.Unique(items) {
		entity, err := cache.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		sg.AddEntity(entity)
		sg.AddEdge(Edge{
			Type:  edgeType,
			Key:   DebateEdgeKey(uid, edgeType, name),
			Start: debate.Ref(),
			End:   entity.Ref(),
		})
	}
	return nil
}

// isSpeakerEntry reports presiding-officer entries like "Evans, Nigel;
// Speaker", which never get authorship or affiliation edges.
func isSpeakerEntry(name string) bool {
	return strings.Contains(strings.ToLower(name), "speaker")
}

func isNotSpeaker(name string) bool { return !isSpeakerEntry(name) }

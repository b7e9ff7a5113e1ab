package graph

import (
	"context"
	"testing"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
	"github.com/HansardGraph/hansard-mvp/engine/resolve"
)

func newTestAssembler(idx *resolve.Index) (*Assembler, *Caches) {
	caches := NewCaches(nil)
	return NewAssembler(caches, resolve.NewResolver(idx), nil), caches
}

func edgesOfType(sg Subgraph, edgeType string) []Edge {
	var out []Edge
	for _, e := range sg.Edges {
		if e.Type == edgeType {
			out = append(out, e)
		}
	}
	return out
}

func hasEntity(sg Subgraph, label, key string) bool {
	for _, e := range sg.Entities {
		if e.Label == label && e.Key == key {
			return true
		}
	}
	return false
}

func TestAssembleFiltersDisallowedType(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:    "DEB_1",
		domain.FieldType:   "Press Release",
		domain.FieldMember: "Jane Smith",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !sg.Empty() {
		t.Fatalf("expected empty subgraph, got %d entities, %d edges", len(sg.Entities), len(sg.Edges))
	}
}

func TestAssembleFiltersMissingUID(t *testing.T) {
	a, _ := newTestAssembler(nil)
	for _, uid := range []string{"", "  ", "nan"} {
		sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
			domain.FieldUID:  uid,
			domain.FieldType: "Written questions",
		}))
		if err != nil {
			t.Fatal(err)
		}
		if !sg.Empty() {
			t.Fatalf("uid %q: expected empty subgraph", uid)
		}
	}
}

func TestAssembleWrittenQuestionRow(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:             "DEB_1",
		domain.FieldType:            "Written questions",
		domain.FieldLegislature:     "House of Commons",
		domain.FieldSubject:         "Health; Social Care",
		domain.FieldCorporateAuthor: "Department of Health",
		domain.FieldMember:          "Jane Smith",
		domain.FieldMemberParty:     "Labour",
		domain.FieldAnsweringMember: "John Doe",
		domain.FieldAnsweringParty:  "Conservative",
		domain.FieldQuestionText:    "What steps is the department taking?",
		domain.FieldAnswerText:      "The department is investing.",
		domain.FieldDate:            "2024-03-01",
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Nodes.
	for _, want := range []struct{ label, key string }{
		{LabelDebate, "DEB_1"},
		{LabelPerson, "Jane Smith"},
		{LabelPerson, "John Doe"},
		{LabelParty, "Labour"},
		{LabelParty, "Conservative"},
		{LabelChamber, "House of Commons"},
		{LabelSubject, "Health"},
		{LabelSubject, "Social Care"},
		{LabelDepartment, "Department of Health"},
		{LabelText, "DEB_1_QuestionText"},
		{LabelText, "DEB_1_AnswerText"},
	} {
		if !hasEntity(sg, want.label, want.key) {
			t.Errorf("missing entity %s %q", want.label, want.key)
		}
	}
	if hasEntity(sg, LabelText, "DEB_1_DebateText") {
		t.Error("blank debate text must not produce a node")
	}

	// Edges.
	authors := edgesOfType(sg, EdgeAuthors)
	if len(authors) != 1 || authors[0].Key != "DEB_1::AUTHORS::Jane Smith" {
		t.Errorf("authors edges: %+v", authors)
	}
	gives := edgesOfType(sg, EdgeGives)
	if len(gives) != 1 || gives[0].Key != "DEB_1_AnswerText" {
		t.Errorf("gives edges: %+v", gives)
	}
	answers := edgesOfType(sg, EdgeAnswers)
	if len(answers) != 1 {
		t.Fatalf("answers edges: %+v", answers)
	}
	if answers[0].Start.Key != "DEB_1_AnswerText" || answers[0].End.Key != "DEB_1_QuestionText" {
		t.Errorf("ANSWERS direction wrong: %+v", answers[0])
	}
	if n := len(edgesOfType(sg, EdgeContains)); n != 2 {
		t.Errorf("contains edges = %d, want 2", n)
	}
	if n := len(edgesOfType(sg, EdgeHas)); n != 2 {
		t.Errorf("HAS edges = %d, want 2", n)
	}
	if n := len(edgesOfType(sg, EdgeMemberOf)); n != 2 {
		t.Errorf("MEMBER_OF edges = %d, want 2", n)
	}

	submitted := edgesOfType(sg, EdgeSubmittedTo)
	if len(submitted) != 1 {
		t.Fatalf("SUBMITTED_TO edges: %+v", submitted)
	}
	if submitted[0].Props["date"] != "2024-03-01" {
		t.Errorf("SUBMITTED_TO must carry the row date, got %+v", submitted[0].Props)
	}
}

func TestAssembleBlankAnswerText(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:             "DEB_2",
		domain.FieldType:            "Written questions",
		domain.FieldQuestionText:    "Will the minister confirm?",
		domain.FieldAnswerText:      "  ",
		domain.FieldAnsweringMember: "John Doe",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !hasEntity(sg, LabelText, "DEB_2_QuestionText") {
		t.Error("expected QuestionText node")
	}
	if hasEntity(sg, LabelText, "DEB_2_AnswerText") {
		t.Error("blank answer must not produce an AnswerText node")
	}
	if len(edgesOfType(sg, EdgeAnswers)) != 0 {
		t.Error("no ANSWERS edge without an answer text")
	}
	if len(edgesOfType(sg, EdgeGives)) != 0 {
		t.Error("no GIVES edge without an answer text")
	}
	// The answering person still appears (with affiliations, if any).
	if !hasEntity(sg, LabelPerson, "John Doe") {
		t.Error("answering member node still expected")
	}
}

func TestAssembleLeadMemberExclusionAndSponsors(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:        "DEB_3",
		domain.FieldType:       "Proceeding contributions",
		domain.FieldMember:     "Jane Smith; Alan Jones",
		domain.FieldLeadMember: "Jane Smith",
		domain.FieldDebateText: "I beg to move.",
	}))
	if err != nil {
		t.Fatal(err)
	}

	authors := edgesOfType(sg, EdgeAuthors)
	if len(authors) != 1 || authors[0].Start.Key != "Alan Jones" {
		t.Errorf("lead member must not get AUTHORS: %+v", authors)
	}
	sponsors := edgesOfType(sg, EdgeSponsors)
	if len(sponsors) != 1 || sponsors[0].Start.Key != "Jane Smith" {
		t.Errorf("lead member must get SPONSORS: %+v", sponsors)
	}
	// Both hold the debate text.
	holds := edgesOfType(sg, EdgeHolds)
	if len(holds) != 2 {
		t.Errorf("HOLDS edges = %d, want 2", len(holds))
	}
}

func TestAssembleSkipsSpeakerEntries(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:    "DEB_4",
		domain.FieldType:   "Proceeding contributions",
		domain.FieldMember: "Evans, Nigel; Speaker of the House; Jane Smith",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if hasEntity(sg, LabelPerson, "Speaker of the House") {
		t.Error("Speaker entries must be skipped")
	}
	if !hasEntity(sg, LabelPerson, "Evans, Nigel") || !hasEntity(sg, LabelPerson, "Jane Smith") {
		t.Error("non-Speaker members expected")
	}
}

func TestAssembleRepeatedSubjectsCollapse(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:     "DEB_5",
		domain.FieldType:    "Written questions",
		domain.FieldSubject: "Health; Health; Social Care",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := edgesOfType(sg, EdgeHas); len(got) != 2 {
		t.Fatalf("HAS edges = %d, want 2", len(got))
	}
}

func TestAssembleMemberOfDedupAcrossRows(t *testing.T) {
	a, _ := newTestAssembler(nil)

	row := map[string]string{
		domain.FieldType:        "Written questions",
		domain.FieldMember:      "Jane Smith",
		domain.FieldMemberParty: "Labour",
	}

	row[domain.FieldUID] = "DEB_5"
	first, err := a.Assemble(context.Background(), domain.NewRow(row))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(edgesOfType(first, EdgeMemberOf)); n != 1 {
		t.Fatalf("first row MEMBER_OF = %d, want 1", n)
	}

	row[domain.FieldUID] = "DEB_6"
	second, err := a.Assemble(context.Background(), domain.NewRow(row))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(edgesOfType(second, EdgeMemberOf)); n != 0 {
		t.Fatalf("re-derived affiliation must not re-emit MEMBER_OF, got %d", n)
	}
	// AUTHORS is debate-scoped and still emitted per row.
	if n := len(edgesOfType(second, EdgeAuthors)); n != 1 {
		t.Fatalf("second row AUTHORS = %d, want 1", n)
	}
}

func TestAssembleFanOutMemberParties(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:         "DEB_7",
		domain.FieldType:        "Oral questions",
		domain.FieldMember:      "Jane Smith",
		domain.FieldMemberParty: "Labour; Co-operative",
	}))
	if err != nil {
		t.Fatal(err)
	}
	memberOf := edgesOfType(sg, EdgeMemberOf)
	if len(memberOf) != 2 {
		t.Fatalf("MEMBER_OF edges = %d, want 2 (fan-out)", len(memberOf))
	}
}

func TestAssembleIndexFallback(t *testing.T) {
	idx := resolve.NewIndex()
	idx.Add("Alan Jones", "Plaid Cymru")
	a, _ := newTestAssembler(idx)

	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:    "DEB_8",
		domain.FieldType:   "Oral questions",
		domain.FieldMember: "Alan Jones; Jane Smith",
		// No party column: cardinality mismatch forces the index fallback.
	}))
	if err != nil {
		t.Fatal(err)
	}
	memberOf := edgesOfType(sg, EdgeMemberOf)
	if len(memberOf) != 1 {
		t.Fatalf("MEMBER_OF edges = %d, want 1", len(memberOf))
	}
	if memberOf[0].Key != "Alan Jones::MEMBER_OF::Plaid Cymru" {
		t.Errorf("unexpected key %q", memberOf[0].Key)
	}
}

// Several answering members sharing one AnswerText all reuse the text node's
// key for GIVES. Last writer wins on re-ingest; pinned, not fixed.
func TestAssembleGivesSharedKey(t *testing.T) {
	a, _ := newTestAssembler(nil)
	sg, err := a.Assemble(context.Background(), domain.NewRow(map[string]string{
		domain.FieldUID:             "DEB_9",
		domain.FieldType:            "Written questions",
		domain.FieldAnsweringMember: "John Doe; Mary Major",
		domain.FieldAnswerText:      "Jointly answered.",
	}))
	if err != nil {
		t.Fatal(err)
	}
	gives := edgesOfType(sg, EdgeGives)
	if len(gives) != 2 {
		t.Fatalf("GIVES edges = %d, want 2", len(gives))
	}
	if gives[0].Key != gives[1].Key || gives[0].Key != "DEB_9_AnswerText" {
		t.Errorf("GIVES edges must share the text node key: %+v", gives)
	}
}

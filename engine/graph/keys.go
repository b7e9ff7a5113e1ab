package graph

import "fmt"

// Relationship keys are deterministic string templates: identical inputs
// always produce identical keys, so re-ingestion merges instead of
// duplicating.

// DebateEdgeKey keys a debate-scoped edge (SUBMITTED_TO, HAS, ASSIGNED_TO,
// AUTHORS, SPONSORS).
func DebateEdgeKey(uid, edgeType, targetKey string) string {
	return fmt.Sprintf("%s::%s::%s", uid, edgeType, targetKey)
}

// MemberOfKey keys a MEMBER_OF edge. Intentionally not UID-scoped:
// affiliation is a person-level fact, not a debate-level one.
func MemberOfKey(member, party string) string {
	return fmt.Sprintf("%s::%s::%s", member, EdgeMemberOf, party)
}

// TextKey keys a Text node by its debate and subtype.
func TextKey(uid, subtype string) string {
	return fmt.Sprintf("%s_%s", uid, subtype)
}

// HoldsKey keys a HOLDS edge from a person to a text node.
func HoldsKey(textKey, person string) string {
	return fmt.Sprintf("%s::%s::%s", textKey, EdgeHolds, person)
}

package graph

import "context"

// SubjectStats holds per-subject debate counts.
type SubjectStats struct {
	Name    string `json:"name"`
	Debates int64  `json:"debates"`
}

// PersonStats holds activity counts for one person.
type PersonStats struct {
	FullName string   `json:"full_name"`
	Authored int64    `json:"authored"`
	Answered int64    `json:"answered"`
	Parties  []string `json:"parties,omitempty"`
}

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return g.countsBy(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`)
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return g.countsBy(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`)
}

func (g *GraphStore) countsBy(ctx context.Context, cypher string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, result.Err()
}

// TopSubjects returns the subjects attached to the most debates.
func (g *GraphStore) TopSubjects(ctx context.Context, limit int) ([]SubjectStats, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (d:Debate)-[:HAS]->(s:Subject)
		RETURN s.name AS name, count(DISTINCT d) AS debates
		ORDER BY debates DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	var out []SubjectStats
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get("name")
		debates, _ := rec.Get("debates")
		s := SubjectStats{}
		if n, ok := name.(string); ok {
			s.Name = n
		}
		if d, ok := debates.(int64); ok {
			s.Debates = d
		}
		out = append(out, s)
	}
	return out, result.Err()
}

// PersonActivity returns authored/answered counts and party affiliations for
// one person by full name.
func (g *GraphStore) PersonActivity(ctx context.Context, fullName string) (PersonStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (p:Person {full_name: $name})
		OPTIONAL MATCH (p)-[:AUTHORS]->(d:Debate)
		OPTIONAL MATCH (p)-[:GIVES]->(t:Text)
		OPTIONAL MATCH (p)-[:MEMBER_OF]->(party:Party)
		RETURN count(DISTINCT d) AS authored, count(DISTINCT t) AS answered,
			collect(DISTINCT party.name) AS parties`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": fullName})
	if err != nil {
		return PersonStats{}, err
	}
	stats := PersonStats{FullName: fullName}
	if result.Next(ctx) {
		rec := result.Record()
		if v, ok := rec.Get("authored"); ok {
			if n, ok := v.(int64); ok {
				stats.Authored = n
			}
		}
		if v, ok := rec.Get("answered"); ok {
			if n, ok := v.(int64); ok {
				stats.Answered = n
			}
		}
		if v, ok := rec.Get("parties"); ok {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						stats.Parties = append(stats.Parties, s)
					}
				}
			}
		}
	}
	return stats, result.Err()
}

// DebatesBySubject returns debate UIDs linked to a subject.
func (g *GraphStore) DebatesBySubject(ctx context.Context, subject string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (d:Debate)-[:HAS]->(s:Subject {name: $subject})
		RETURN d.uid AS uid ORDER BY uid LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"subject": subject, "limit": limit})
	if err != nil {
		return nil, err
	}
	var uids []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("uid"); ok {
			if s, ok := v.(string); ok {
				uids = append(uids, s)
			}
		}
	}
	return uids, result.Err()
}

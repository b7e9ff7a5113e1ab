package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// CypherResult is the minimal result surface the store reads.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner runs a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a session-scoped runner with transactional writes.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions. The indirection keeps GraphStore testable
// without a live database.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// GraphStore persists debate subgraphs to Neo4j. Every write is a MERGE on a
// natural key or relationship key, so re-running an ingest converges instead
// of duplicating.
type GraphStore struct {
	opener SessionOpener
}

// New creates a GraphStore over a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(driverOpener{driver: driver})
}

// NewWithOpener creates a GraphStore over a custom session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// Compile-time check: GraphStore satisfies the cache's store lookup.
var _ Finder = (*GraphStore)(nil)

// FindNode returns the node with the given natural key, or (nil, nil) when
// absent.
func (g *GraphStore) FindNode(ctx context.Context, label, keyField, keyValue string) (*Entity, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {`%s`: $key}) RETURN n LIMIT 1", sanitizeIdent(label), keyField)
	result, err := sess.Run(ctx, cypher, map[string]any{"key": keyValue})
	if err != nil {
		return nil, fmt.Errorf("graph: find %s: %w", label, err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("graph: find %s: %w", label, err)
		}
		return nil, nil
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
	if err != nil {
		return nil, fmt.Errorf("graph: find %s: %w", label, err)
	}
	return entityFromProps(label, keyField, node.Props), nil
}

// SaveSubgraph merges a row's entities and edges in one write transaction.
// Nodes merge on their natural key; keyed edges merge on their relationship
// key, unkeyed edges merge on the endpoints alone.
func (g *GraphStore) SaveSubgraph(ctx context.Context, sg Subgraph) error {
	if sg.Empty() {
		return nil
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, e := range sg.Entities {
			cypher := fmt.Sprintf(
				"MERGE (n:%s {`%s`: $key}) SET n += $props",
				sanitizeIdent(e.Label), e.KeyField,
			)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"key":   e.Key,
				"props": e.Props,
			}); err != nil {
				return nil, fmt.Errorf("merge %s %q: %w", e.Label, e.Key, err)
			}
		}
		for _, edge := range sg.Edges {
			if err := mergeEdge(ctx, tx, edge); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: save subgraph: %w", err)
	}
	return nil
}

func mergeEdge(ctx context.Context, tx CypherRunner, edge Edge) error {
	relType := sanitizeRelType(edge.Type)
	match := fmt.Sprintf(
		"MATCH (a:%s {`%s`: $startKey}), (b:%s {`%s`: $endKey})\n",
		sanitizeIdent(edge.Start.Label), edge.Start.KeyField,
		sanitizeIdent(edge.End.Label), edge.End.KeyField,
	)
	params := map[string]any{
		"startKey": edge.Start.Key,
		"endKey":   edge.End.Key,
	}

	var cypher string
	if edge.Key != "" {
		cypher = match + fmt.Sprintf("MERGE (a)-[r:%s {key: $relKey}]->(b)", relType)
		params["relKey"] = edge.Key
	} else {
		cypher = match + fmt.Sprintf("MERGE (a)-[r:%s]->(b)", relType)
	}
	if len(edge.Props) > 0 {
		cypher += " SET r += $props"
		params["props"] = edge.Props
	}

	if _, err := tx.Run(ctx, cypher, params); err != nil {
		return fmt.Errorf("merge edge %s %q: %w", edge.Type, edge.Key, err)
	}
	return nil
}

// constraintTargets are the (label, key field) pairs that get uniqueness
// constraints.
var constraintTargets = [][2]string{
	{LabelDebate, "uid"},
	{LabelPerson, "full_name"},
	{LabelParty, "name"},
	{LabelChamber, "name"},
	{LabelSubject, "name"},
	{LabelDepartment, "name"},
	{LabelText, "TextKey"},
}

// EnsureConstraints creates the uniqueness constraints backing natural-key
// merges. Safe to call on every startup.
func (g *GraphStore) EnsureConstraints(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	for _, target := range constraintTargets {
		cypher := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.`%s` IS UNIQUE",
			sanitizeIdent(target[0]), target[1],
		)
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("graph: constraint %s.%s: %w", target[0], target[1], err)
		}
	}
	return nil
}

// entityFromProps rebuilds an Entity from node properties.
func entityFromProps(label, keyField string, props map[string]any) *Entity {
	e := &Entity{
		Label:    label,
		KeyField: keyField,
		Props:    make(map[string]any, len(props)),
	}
	for k, v := range props {
		e.Props[k] = v
	}
	if s, ok := props[keyField].(string); ok {
		e.Key = s
	}
	return e
}

// sanitizeIdent keeps only characters valid in an unquoted Cypher label.
func sanitizeIdent(s string) string {
	safe := make([]byte, 0, len(s))
	for i := range s {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "Node"
	}
	return string(safe)
}

// sanitizeRelType ensures the relationship type is a valid uppercase Cypher
// identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}

// --- neo4j driver adapters ---

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (d driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: d.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	result, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(managedTxRunner{tx: tx})
	})
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

type managedTxRunner struct {
	tx neo4j.ManagedTransaction
}

func (r managedTxRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	result, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

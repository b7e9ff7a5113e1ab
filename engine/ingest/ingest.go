// Package ingest runs debate rows through validation, graph assembly,
// storage, and semantic indexing stages.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
	"github.com/HansardGraph/hansard-mvp/engine/graph"
	"github.com/HansardGraph/hansard-mvp/engine/resolve"
	"github.com/HansardGraph/hansard-mvp/engine/semantic"
	"github.com/HansardGraph/hansard-mvp/pkg/fn"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// RowSubject is the NATS subject for incoming debate rows.
	RowSubject = "hansard.rows"
	// DLQSubject is the dead letter queue subject for failed rows.
	DLQSubject = "hansard.rows.dlq"
	// MaxRetries before sending a row to the DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100
)

// Assembled pairs a row with its subgraph so later stages can reach both.
type Assembled struct {
	Row      domain.Row
	Subgraph graph.Subgraph
}

// Validate drops rows that cannot produce graph output.
var Validate fn.Stage[domain.Row, domain.Row] = func(_ context.Context, row domain.Row) fn.Result[domain.Row] {
	if err := domain.ValidateRow(row); err != nil {
		return fn.Err[domain.Row](err)
	}
	return fn.Ok(row)
}

// NewAssemble creates the stage that turns a row into a debate subgraph.
func NewAssemble(a *graph.Assembler) fn.Stage[domain.Row, Assembled] {
	return func(ctx context.Context, row domain.Row) fn.Result[Assembled] {
		sg, err := a.Assemble(ctx, row)
		if err != nil {
			return fn.Err[Assembled](fmt.Errorf("assemble %s: %w", row.UID(), err))
		}
		return fn.Ok(Assembled{Row: row, Subgraph: sg})
	}
}

// NewStore creates the stage that merges a subgraph into Neo4j.
func NewStore(gs SubgraphStore) fn.Stage[Assembled, Assembled] {
	return func(ctx context.Context, a Assembled) fn.Result[Assembled] {
		if a.Subgraph.Empty() {
			return fn.Ok(a)
		}
		if err := gs.SaveSubgraph(ctx, a.Subgraph); err != nil {
			return fn.Err[Assembled](fmt.Errorf("graph save %s: %w", a.Row.UID(), err))
		}
		return fn.Ok(a)
	}
}

// NewIndex creates the stage that embeds a row's text chunks and upserts
// them into the vector index. With a nil embedder or writer the stage is a
// pass-through and only the graph is written.
func NewIndex(embedder Embedder, vectors VectorWriter) fn.Stage[Assembled, string] {
	return func(ctx context.Context, a Assembled) fn.Result[string] {
		uid := a.Row.UID()
		if embedder == nil || vectors == nil {
			return fn.Ok(uid)
		}

		chamber := strings.TrimSpace(a.Row.Field(domain.FieldLegislature))
		chunks := subgraphChunks(a.Subgraph, uid, chamber)
		if len(chunks) == 0 {
			return fn.Ok(uid)
		}

		records := make([]semantic.VectorRecord, 0, len(chunks))
		for _, batch := range fn.Chunk(chunks, EmbedBatchSize) {
			texts := fn.Map(batch, func(c Chunk) string { return c.Text })
			embeddings, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[string](fmt.Errorf("embed %s: %w", uid, err))
			}

			for j, c := range batch {
				records = append(records, semantic.VectorRecord{
					ID:        chunkPointID(c),
					Embedding: embeddings[j],
					Payload: map[string]any{
						"content":     c.Text,
						"uid":         c.UID,
						"subtype":     c.Subtype,
						"chunk_index": c.Index,
						"chamber":     c.Chamber,
					},
				})
			}
		}

		if err := vectors.Upsert(ctx, records); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert %s: %w", uid, err))
		}
		return fn.Ok(uid)
	}
}

// chunkPointID derives a stable point UUID so re-ingesting a debate
// overwrites its chunks instead of duplicating them.
func chunkPointID(c Chunk) string {
	seed := fmt.Sprintf("%s/%s/%d", c.UID, c.Subtype, c.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// LoggedTap returns a stage that logs entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline wires the full row pipeline: Validate, Assemble, Store, Index.
func NewPipeline(deps Deps) fn.Stage[domain.Row, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	caches := graph.NewCaches(deps.Finder)
	resolver := resolve.NewResolver(deps.Index)
	assembler := graph.NewAssembler(caches, resolver, log)

	validated := fn.Then(LoggedTap[domain.Row]("validate", log), Validate)
	built := fn.Then(validated, fn.Then(LoggedTap[domain.Row]("assemble", log), NewAssemble(assembler)))
	stored := fn.Then(built, fn.Then(LoggedTap[Assembled]("store", log), NewStore(deps.Graph)))
	indexed := fn.Then(stored, fn.Then(LoggedTap[Assembled]("index", log), NewIndex(deps.Embedder, deps.Vectors)))

	return indexed
}

// Run ingests a full dataset. The first pass builds the affiliation index
// from every row so single-row ambiguities resolve against the whole sheet;
// the second pass runs each row through the pipeline. Rows that fail
// validation are dropped and counted; any other failure aborts the run.
func Run(ctx context.Context, rows []domain.Row, deps Deps) (Stats, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	if deps.Index == nil {
		deps.Index = resolve.BuildIndex(rows)
		log.Info("affiliation index built", "members", deps.Index.Len())
	}

	caches := graph.NewCaches(deps.Finder)
	resolver := resolve.NewResolver(deps.Index)
	assembler := graph.NewAssembler(caches, resolver, log)

	build := fn.Then(Validate, NewAssemble(assembler))
	persist := fn.Then(NewStore(deps.Graph), NewIndex(deps.Embedder, deps.Vectors))

	var stats Stats
	for _, row := range rows {
		stats.RowsSeen++

		br := build(ctx, row)
		if br.IsErr() {
			_, err := br.Unwrap()
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				stats.RowsSkipped++
				log.Debug("row dropped", "uid", row.UID(), "reason", verr.Wrapped)
				continue
			}
			return stats, err
		}

		a, _ := br.Unwrap()
		pr := persist(ctx, a)
		if pr.IsErr() {
			_, err := pr.Unwrap()
			return stats, err
		}
		stats.RowsStored++
		stats.NodesWritten += len(a.Subgraph.Entities)
		stats.EdgesWritten += len(a.Subgraph.Edges)
	}
	stats.MemberOfDeduped = caches.MemberOfDeduped()
	return stats, nil
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Row     RowMessage `json:"row"`
	Error   string     `json:"error"`
	Retries int        `json:"retries"`
}

// StartConsumer subscribes to the row subject and runs each message through
// the pipeline with retry and DLQ support. Deps.Index should be prebuilt:
// streamed rows arrive one at a time, so the index cannot be derived here.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(RowSubject, func(msg *nats.Msg) {
		var rm RowMessage
		if err := json.Unmarshal(msg.Data, &rm); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}
		row := domain.NewRow(rm.Fields)

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, row)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()

			var verr *domain.ValidationError
			if errors.As(pipeErr, &verr) {
				// Retrying cannot fix a malformed row.
				log.Warn("ingest: row dropped", "uid", row.UID(), "reason", verr.Wrapped)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}

			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"uid", row.UID(),
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Row: rm, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(RowSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			uid, _ := result.Unwrap()
			log.Info("ingest: row stored", "uid", uid)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

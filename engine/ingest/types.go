package ingest

import (
	"context"
	"log/slog"

	"github.com/HansardGraph/hansard-mvp/engine/graph"
	"github.com/HansardGraph/hansard-mvp/engine/resolve"
	"github.com/HansardGraph/hansard-mvp/engine/semantic"
)

// SubgraphStore persists assembled subgraphs.
type SubgraphStore interface {
	SaveSubgraph(ctx context.Context, sg graph.Subgraph) error
}

// Embedder turns text chunks into embedding vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter stores embedded chunks in the vector index.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the external dependencies of the ingestion pipeline.
// Embedder and Vectors are optional; when either is nil the semantic
// indexing stage is skipped and only the graph is written.
type Deps struct {
	Finder   graph.Finder
	Graph    SubgraphStore
	Embedder Embedder
	Vectors  VectorWriter
	// Index resolves member-party pairings when a row's own lists
	// disagree. Run builds one from the dataset; consumers receive a
	// prebuilt index because rows arrive one at a time.
	Index  *resolve.Index
	Logger *slog.Logger
}

// RowMessage is the wire shape of one spreadsheet row on the ingest subject.
type RowMessage struct {
	Fields map[string]string `json:"fields"`
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text    string
	Index   int
	UID     string
	Subtype string
	Chamber string
}

// Stats summarizes one ingestion run. MemberOfDeduped counts affiliation
// facts that were re-derived from later rows but suppressed by the run's
// dedup set.
type Stats struct {
	RowsSeen        int
	RowsSkipped     int
	RowsStored      int
	NodesWritten    int
	EdgesWritten    int
	MemberOfDeduped int
}

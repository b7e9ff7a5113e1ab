// Command ingest loads a debates spreadsheet and builds the entity graph in
// Neo4j, optionally indexing text chunks into Qdrant. It can also publish
// rows to NATS or consume them from NATS for distributed ingestion.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/HansardGraph/hansard-mvp/engine/dataset"
	"github.com/HansardGraph/hansard-mvp/engine/graph"
	"github.com/HansardGraph/hansard-mvp/engine/ingest"
	"github.com/HansardGraph/hansard-mvp/engine/resolve"
	"github.com/HansardGraph/hansard-mvp/engine/semantic"
	"github.com/HansardGraph/hansard-mvp/pkg/fn"
	"github.com/HansardGraph/hansard-mvp/pkg/metrics"
	"github.com/HansardGraph/hansard-mvp/pkg/natsutil"
	"github.com/HansardGraph/hansard-mvp/pkg/ollama"
	"github.com/HansardGraph/hansard-mvp/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var met = metrics.New()

var (
	mRowsTotal    = met.Counter("hansard_ingest_rows_total", "Rows read from the dataset")
	mRowsStored   = met.Counter("hansard_ingest_rows_stored_total", "Rows merged into the graph")
	mRowsSkipped  = met.Counter("hansard_ingest_rows_skipped_total", "Rows dropped by validation")
	mNodesWritten = met.Counter("hansard_ingest_nodes_total", "Nodes merged")
	mEdgesWritten = met.Counter("hansard_ingest_edges_total", "Relationships merged")
	mMemberDedup  = met.Counter("hansard_ingest_member_of_deduped_total", "MEMBER_OF re-derivations suppressed")
	mNeo4jDur     = met.Histogram("hansard_ingest_neo4j_duration_seconds", "Graph write latency", nil)
	mRunDur       = met.Histogram("hansard_ingest_run_duration_seconds", "Full run time", []float64{1, 5, 15, 60, 300, 900, 3600})
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		xlsxPath    = flag.String("xlsx", "debates.xlsx", "debates spreadsheet path")
		sheet       = flag.String("sheet", "", "sheet name (default first sheet)")
		mode        = flag.String("mode", "batch", "batch, publish, or consume")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "hansard", "Qdrant collection name")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		embed       = flag.Bool("embed", false, "embed text chunks into Qdrant")
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS URL for publish/consume modes")
		embedRate   = flag.Float64("embed-rate", 10, "max embedding requests per second")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	met.CollectRuntime("hansard_ingest", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *mode {
	case "publish":
		if err := publishRows(*natsURL, *xlsxPath, *sheet, log); err != nil {
			log.Error("publish failed", "error", err)
			os.Exit(1)
		}
		return
	case "batch", "consume":
	default:
		log.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	gs := graph.New(driver)
	if err := gs.EnsureConstraints(ctx); err != nil {
		log.Error("constraint setup failed", "error", err)
		os.Exit(1)
	}

	store := &meteredStore{
		inner:   gs,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	deps := ingest.Deps{
		Finder: store,
		Graph:  store,
		Logger: log,
	}

	if *embed {
		vs, err := semantic.New(*qdrantAddr, *collection)
		if err != nil {
			log.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
			log.Error("qdrant ensure collection failed", "error", err)
			os.Exit(1)
		}
		log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

		deps.Vectors = vs
		deps.Embedder = &throttledEmbedder{
			inner:   ollama.NewEmbedClient(*ollamaURL, *ollamaModel),
			limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: *embedRate, Burst: 1}),
		}
		log.Info("using Ollama embeddings", "model", *ollamaModel)
	}

	if *mode == "consume" {
		consumeRows(ctx, *natsURL, *xlsxPath, *sheet, deps, log)
		return
	}

	rows, err := dataset.Load(*xlsxPath, *sheet)
	if err != nil {
		log.Error("dataset load failed", "error", err)
		os.Exit(1)
	}
	log.Info("dataset loaded", "rows", len(rows))

	start := time.Now()
	stats, err := ingest.Run(ctx, rows, deps)
	mRunDur.Since(start)
	recordStats(stats)
	if err != nil {
		log.Error("ingestion failed", "error", err, "stats", stats)
		os.Exit(1)
	}
	log.Info("ingestion complete",
		"rows", stats.RowsSeen,
		"stored", stats.RowsStored,
		"skipped", stats.RowsSkipped,
		"nodes", stats.NodesWritten,
		"edges", stats.EdgesWritten,
		"member_of_deduped", stats.MemberOfDeduped,
		"elapsed", time.Since(start),
	)
}

// publishRows streams a spreadsheet's rows onto the ingest subject.
func publishRows(natsURL, path, sheet string, log *slog.Logger) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	rows, err := dataset.Load(path, sheet)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, row := range rows {
		if err := natsutil.Publish(ctx, nc, ingest.RowSubject, ingest.RowMessage{Fields: row.Fields()}); err != nil {
			return err
		}
	}
	log.Info("rows published", "count", len(rows), "subject", ingest.RowSubject)
	return nc.Flush()
}

// consumeRows runs the NATS consumer until the context is cancelled. The
// affiliation index is prebuilt from the local spreadsheet since streamed
// rows arrive one at a time.
func consumeRows(ctx context.Context, natsURL, path, sheet string, deps ingest.Deps, log *slog.Logger) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	if rows, err := dataset.Load(path, sheet); err == nil {
		deps.Index = resolve.BuildIndex(rows)
		log.Info("affiliation index built", "members", deps.Index.Len())
	} else {
		log.Warn("no local dataset for affiliation index, pairing falls back to row order", "error", err)
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		log.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("consuming rows", "subject", ingest.RowSubject)
	<-ctx.Done()
	log.Info("shutting down")
}

func recordStats(s ingest.Stats) {
	mRowsTotal.Add(int64(s.RowsSeen))
	mRowsStored.Add(int64(s.RowsStored))
	mRowsSkipped.Add(int64(s.RowsSkipped))
	mNodesWritten.Add(int64(s.NodesWritten))
	mEdgesWritten.Add(int64(s.EdgesWritten))
	mMemberDedup.Add(int64(s.MemberOfDeduped))
}

// meteredStore wraps the graph store with retry, a circuit breaker, and write
// metrics. Transient write failures are retried with backoff; a Neo4j outage
// trips the breaker so retries fail fast instead of hammering a dead server.
type meteredStore struct {
	inner   *graph.GraphStore
	breaker *resilience.Breaker
}

func (m *meteredStore) SaveSubgraph(ctx context.Context, sg graph.Subgraph) error {
	start := time.Now()
	defer mNeo4jDur.Since(start)

	result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		err := m.breaker.Call(ctx, func(ctx context.Context) error {
			return m.inner.SaveSubgraph(ctx, sg)
		})
		if err != nil {
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	_, err := result.Unwrap()
	return err
}

func (m *meteredStore) FindNode(ctx context.Context, label, keyField, keyValue string) (*graph.Entity, error) {
	var found *graph.Entity
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		found, err = m.inner.FindNode(ctx, label, keyField, keyValue)
		return err
	})
	return found, err
}

// throttledEmbedder rate-limits embedding calls to keep Ollama responsive.
type throttledEmbedder struct {
	inner   *ollama.EmbedClient
	limiter *resilience.Limiter
}

func (t *throttledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.EmbedBatch(ctx, texts)
}

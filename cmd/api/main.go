// Command api serves read access to the debate graph: corpus stats, person
// activity, debates by subject, and semantic search over text chunks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HansardGraph/hansard-mvp/engine/graph"
	"github.com/HansardGraph/hansard-mvp/engine/semantic"
	"github.com/HansardGraph/hansard-mvp/pkg/fn"
	"github.com/HansardGraph/hansard-mvp/pkg/mid"
	"github.com/HansardGraph/hansard-mvp/pkg/ollama"
	"github.com/HansardGraph/hansard-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	gocache "github.com/patrickmn/go-cache"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	OllamaModel string
	CORSOrigin  string
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Neo4jURL:    envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "hansard"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envOr("OLLAMA_MODEL", "nomic-embed-text"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	graphStore := graph.New(driver)
	debates := newDebateRepo(driver)

	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaModel)

	svc := &server{
		graph:   graphStore,
		debates: debates,
		vectors: vectorStore,
		embed:   embedder.Embed,
		cache:   gocache.New(30*time.Second, time.Minute),
		log:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/stats", svc.handleStats)
	mux.HandleFunc("GET /api/persons/{name}", svc.handlePerson)
	mux.HandleFunc("GET /api/debates/{uid}", svc.handleDebate)
	mux.HandleFunc("GET /api/debates", svc.handleDebatesBySubject)
	mux.HandleFunc("GET /api/search", svc.handleSearch)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("hansard-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// Debate is the API shape of one debate node.
type Debate struct {
	UID         string `json:"uid"`
	Type        string `json:"type"`
	Date        string `json:"date,omitempty"`
	Legislature string `json:"legislature,omitempty"`
}

func newDebateRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Debate, string] {
	return repo.NewNeo4jRepo[Debate, string](
		driver,
		graph.LabelDebate,
		func(d Debate) map[string]any {
			return map[string]any{
				"uid": d.UID, "type": d.Type, "date": d.Date, "legislature": d.Legislature,
			}
		},
		func(rec *neo4j.Record) (Debate, error) {
			node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
			if err != nil {
				return Debate{}, err
			}
			d := Debate{}
			if v, ok := node.Props["uid"].(string); ok {
				d.UID = v
			}
			if v, ok := node.Props["type"].(string); ok {
				d.Type = v
			}
			if v, ok := node.Props["date"].(string); ok {
				d.Date = v
			}
			if v, ok := node.Props["legislature"].(string); ok {
				d.Legislature = v
			}
			return d, nil
		},
		repo.WithIDKey[Debate, string]("uid"),
	)
}

// graphReader is the slice of GraphStore the handlers need.
type graphReader interface {
	NodeCounts(ctx context.Context) (map[string]int64, error)
	RelationshipCounts(ctx context.Context) (map[string]int64, error)
	TopSubjects(ctx context.Context, limit int) ([]graph.SubjectStats, error)
	PersonActivity(ctx context.Context, fullName string) (graph.PersonStats, error)
	DebatesBySubject(ctx context.Context, subject string, limit int) ([]string, error)
}

// debateGetter fetches one debate by UID.
type debateGetter interface {
	Get(ctx context.Context, uid string) (Debate, error)
}

// vectorSearcher runs filtered k-NN search over text chunks.
type vectorSearcher interface {
	SearchFiltered(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]semantic.SearchResult, error)
}

type server struct {
	graph   graphReader
	debates debateGetter
	vectors vectorSearcher
	embed   func(ctx context.Context, text string) ([]float32, error)
	cache   *gocache.Cache
	log     *slog.Logger
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Nodes         map[string]int64     `json:"nodes"`
	Relationships map[string]int64     `json:"relationships"`
	TopSubjects   []graph.SubjectStats `json:"top_subjects"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get("stats"); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	ctx := r.Context()
	var (
		nodes    map[string]int64
		rels     map[string]int64
		subjects []graph.SubjectStats
	)
	// The three counts are independent reads, so they run concurrently.
	errs := fn.FanOut(
		func() error { var err error; nodes, err = s.graph.NodeCounts(ctx); return err },
		func() error { var err error; rels, err = s.graph.RelationshipCounts(ctx); return err },
		func() error { var err error; subjects, err = s.graph.TopSubjects(ctx, 10); return err },
	)
	for _, err := range errs {
		if err != nil {
			s.fail(w, "stats query", err)
			return
		}
	}

	resp := StatsResponse{Nodes: nodes, Relationships: rels, TopSubjects: subjects}
	s.cache.SetDefault("stats", resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handlePerson(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}
	stats, err := s.graph.PersonActivity(r.Context(), name)
	if err != nil {
		s.fail(w, "person activity", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleDebate(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	d, err := s.debates.Get(r.Context(), uid)
	if err != nil {
		http.Error(w, `{"error":"debate not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DebatesResponse is the JSON response for GET /api/debates?subject=.
type DebatesResponse struct {
	Subject string   `json:"subject"`
	UIDs    []string `json:"uids"`
}

func (s *server) handleDebatesBySubject(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		http.Error(w, `{"error":"subject is required"}`, http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	uids, err := s.graph.DebatesBySubject(r.Context(), subject, limit)
	if err != nil {
		s.fail(w, "debates by subject", err)
		return
	}
	writeJSON(w, http.StatusOK, DebatesResponse{Subject: subject, UIDs: uids})
}

// SearchResponse is the JSON response for GET /api/search.
type SearchResponse struct {
	Query   string                  `json:"query"`
	Results []semantic.SearchResult `json:"results"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, `{"error":"q is required"}`, http.StatusBadRequest)
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("k"))
	if topK <= 0 {
		topK = 10
	}

	embedding, err := s.embed(r.Context(), q)
	if err != nil {
		s.fail(w, "embed query", err)
		return
	}

	var filters map[string]string
	if subtype := r.URL.Query().Get("subtype"); subtype != "" {
		filters = map[string]string{"subtype": subtype}
	}

	results, err := s.vectors.SearchFiltered(r.Context(), embedding, topK, filters)
	if err != nil {
		s.fail(w, "vector search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}

func (s *server) fail(w http.ResponseWriter, what string, err error) {
	s.log.Error(what+" failed", "err", err)
	http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

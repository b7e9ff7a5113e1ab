package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HansardGraph/hansard-mvp/engine/graph"
	"github.com/HansardGraph/hansard-mvp/engine/semantic"
	gocache "github.com/patrickmn/go-cache"
)

type fakeGraph struct {
	statsCalls int
	err        error
}

func (f *fakeGraph) NodeCounts(context.Context) (map[string]int64, error) {
	f.statsCalls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]int64{"Debate": 3, "Person": 5}, nil
}

func (f *fakeGraph) RelationshipCounts(context.Context) (map[string]int64, error) {
	return map[string]int64{"AUTHORS": 5}, nil
}

func (f *fakeGraph) TopSubjects(context.Context, int) ([]graph.SubjectStats, error) {
	return []graph.SubjectStats{{Name: "Health", Debates: 2}}, nil
}

func (f *fakeGraph) PersonActivity(_ context.Context, name string) (graph.PersonStats, error) {
	return graph.PersonStats{FullName: name, Authored: 4, Parties: []string{"Labour"}}, nil
}

func (f *fakeGraph) DebatesBySubject(_ context.Context, subject string, _ int) ([]string, error) {
	if subject == "Health" {
		return []string{"DEB_1", "DEB_2"}, nil
	}
	return nil, nil
}

type fakeDebates struct{}

func (fakeDebates) Get(_ context.Context, uid string) (Debate, error) {
	if uid == "DEB_1" {
		return Debate{UID: "DEB_1", Type: "Written questions", Legislature: "House of Commons"}, nil
	}
	return Debate{}, errors.New("not found")
}

type fakeVectors struct {
	gotFilters map[string]string
}

func (f *fakeVectors) SearchFiltered(_ context.Context, _ []float32, topK int, filters map[string]string) ([]semantic.SearchResult, error) {
	f.gotFilters = filters
	return []semantic.SearchResult{{ID: "p1", Score: 0.9, UID: "DEB_1", Content: "hit"}}, nil
}

func newTestServer() (*server, *fakeGraph, *fakeVectors) {
	fg := &fakeGraph{}
	fv := &fakeVectors{}
	return &server{
		graph:   fg,
		debates: fakeDebates{},
		vectors: fv,
		embed: func(context.Context, string) ([]float32, error) {
			return []float32{0.1, 0.2}, nil
		},
		cache: gocache.New(30*time.Second, time.Minute),
		log:   slog.Default(),
	}, fg, fv
}

func newTestMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/persons/{name}", s.handlePerson)
	mux.HandleFunc("GET /api/debates/{uid}", s.handleDebate)
	mux.HandleFunc("GET /api/debates", s.handleDebatesBySubject)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatsCaches(t *testing.T) {
	s, fg, _ := newTestServer()
	mux := newTestMux(s)

	rec := get(t, mux, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Nodes["Debate"] != 3 || len(resp.TopSubjects) != 1 {
		t.Fatalf("resp = %+v", resp)
	}

	get(t, mux, "/api/stats")
	if fg.statsCalls != 1 {
		t.Fatalf("graph queried %d times, want 1 (cached)", fg.statsCalls)
	}
}

func TestStatsQueryFailure(t *testing.T) {
	s, fg, _ := newTestServer()
	fg.err = errors.New("bolt: connection refused")

	rec := get(t, newTestMux(s), "/api/stats")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPerson(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/persons/Jane%20Smith")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats graph.PersonStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.FullName != "Jane Smith" || stats.Authored != 4 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDebateNotFound(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/debates/DEB_404")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDebateFound(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/debates/DEB_1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var d Debate
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.Legislature != "House of Commons" {
		t.Fatalf("debate = %+v", d)
	}
}

func TestDebatesRequiresSubject(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/debates")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDebatesBySubject(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/debates?subject=Health")
	var resp DebatesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.UIDs) != 2 {
		t.Fatalf("uids = %v", resp.UIDs)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, newTestMux(s), "/api/search")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchWithSubtypeFilter(t *testing.T) {
	s, _, fv := newTestServer()
	rec := get(t, newTestMux(s), "/api/search?q=nhs+funding&subtype=AnswerText")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if fv.gotFilters["subtype"] != "AnswerText" {
		t.Fatalf("filters = %v", fv.gotFilters)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].UID != "DEB_1" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

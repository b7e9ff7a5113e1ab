package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// embedServer answers /api/embeddings with a vector derived from the prompt
// length so callers can check ordering.
func embedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: []float64{float64(len(req.Prompt))}})
	}))
}

func TestEmbed(t *testing.T) {
	srv := embedServer(t)
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "nomic-embed-text")
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 1 || vec[0] != 5 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := embedServer(t)
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "nomic-embed-text")
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg", "hhhhhhhh"}
	out, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(out), len(texts))
	}
	// Requests run concurrently; results must still line up with inputs.
	for i, text := range texts {
		if out[i][0] != float32(len(text)) {
			t.Fatalf("embedding %d = %v, want length %d", i, out[i], len(text))
		}
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "nomic-embed-text")
	if _, err := c.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

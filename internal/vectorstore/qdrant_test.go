package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/models"
)

func TestQdrantStore_EnsureCollection(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "docs"})
	if err := s.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if gotPath != "PUT /collections/docs" {
		t.Errorf("path = %s", gotPath)
	}
	vectors, _ := gotBody["vectors"].(map[string]any)
	if vectors["distance"] != "Cosine" {
		t.Errorf("distance = %v", vectors["distance"])
	}
}

func TestQdrantStore_UpsertSendsPayload(t *testing.T) {
	var gotBody struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/points") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "docs"})
	err := s.Upsert(context.Background(), []Point{{
		ID:     "p1",
		Vector: []float32{0.5, 0.5},
		Chunk:  models.Chunk{Text: "chunk text", Metadata: map[string]string{"source": "a.pdf", "page": "2"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotBody.Points) != 1 {
		t.Fatalf("points = %d", len(gotBody.Points))
	}
	p := gotBody.Points[0]
	if p.Payload["text"] != "chunk text" || p.Payload["meta_source"] != "a.pdf" || p.Payload["meta_page"] != "2" {
		t.Errorf("payload = %v", p.Payload)
	}
}

func TestQdrantStore_SearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score":   0.91,
					"vector":  []float32{1, 0},
					"payload": map[string]any{"text": "hit one", "meta_source": "a.pdf"},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "docs"})
	results, err := s.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Chunk.Text != "hit one" || results[0].Chunk.Metadata["source"] != "a.pdf" {
		t.Errorf("chunk = %+v", results[0].Chunk)
	}
	if results[0].Score != 0.91 {
		t.Errorf("score = %f", results[0].Score)
	}
}

func TestQdrantStore_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "docs"})
	if _, err := s.Search(context.Background(), []float32{1}, 3); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestQdrantStore_CountMissingCollectionIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "docs"})
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("missing collection should count as zero: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d", n)
	}
}

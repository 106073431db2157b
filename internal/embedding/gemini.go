package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiEmbedder embeds text through the Google Generative Language REST API.
// The embedding dimension is learned from the first response.
type GeminiEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	cache      *EmbeddingCache
	client     *http.Client
}

// GeminiEmbedderConfig configures a GeminiEmbedder.
type GeminiEmbedderConfig struct {
	BaseURL   string // empty = production endpoint
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	CacheSize int // 0 = no cache
}

// NewGeminiEmbedder creates an embedder from cfg. Returns an error when the
// API key environment variable is unset.
func NewGeminiEmbedder(cfg GeminiEmbedderConfig) (*GeminiEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	var cache *EmbeddingCache
	if cfg.CacheSize > 0 {
		cache = NewEmbeddingCache(cfg.CacheSize)
	}
	return &GeminiEmbedder{
		baseURL: cfg.BaseURL,
		apiKey:  key,
		model:   cfg.Model,
		cache:   cache,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type geminiContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

func newGeminiContent(text string) geminiContent {
	var c geminiContent
	c.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	return c
}

// Embed returns an embedding vector for the given text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in a single batchEmbedContents call. Cached entries
// are served locally; only misses are sent to the API.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	for i, t := range texts {
		if e.cache != nil {
			if v, ok := e.cache.Get(t); ok {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	type embedRequest struct {
		Model   string        `json:"model"`
		Content geminiContent `json:"content"`
	}
	body := struct {
		Requests []embedRequest `json:"requests"`
	}{}
	for _, i := range missIdx {
		body.Requests = append(body.Requests, embedRequest{
			Model:   "models/" + e.model,
			Content: newGeminiContent(texts[i]),
		})
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(missIdx) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d texts", len(parsed.Embeddings), len(missIdx))
	}
	for j, i := range missIdx {
		vec := parsed.Embeddings[j].Values
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding API returned empty vector")
		}
		if e.dimensions == 0 {
			e.dimensions = len(vec)
		}
		out[i] = vec
		if e.cache != nil {
			e.cache.Set(texts[i], vec)
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension (0 until the first successful call).
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for GeminiEmbedder.
func (e *GeminiEmbedder) Close() error {
	return nil
}

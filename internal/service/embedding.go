package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/go-resty/resty/v2"
)

const jinaEndpoint = "https://api.jina.ai/v1/embeddings"

// QueryEmbedder converts query text into an embedding vector. The production
// catalog embeddings come from an external pipeline; this capability only
// has to produce query vectors in the same space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
}

// EmbeddingConfig holds configuration for the query embedder.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
}

// NewQueryEmbedder creates a QueryEmbedder for the configured provider.
// "jina" talks to the remote embedding API; anything else falls back to the
// deterministic local embedder.
func NewQueryEmbedder(cfg *EmbeddingConfig) QueryEmbedder {
	if cfg != nil && cfg.Provider == "jina" {
		return NewJinaEmbedder(cfg)
	}
	dims := 256
	if cfg != nil && cfg.Dimensions > 0 {
		dims = cfg.Dimensions
	}
	return NewLocalEmbedder(dims)
}

// JinaEmbedder generates query embeddings via the Jina API.
type JinaEmbedder struct {
	client     *resty.Client
	model      string
	dimensions int
}

// NewJinaEmbedder creates a new Jina-backed embedder.
func NewJinaEmbedder(cfg *EmbeddingConfig) *JinaEmbedder {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &JinaEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Jina API request/response structures
type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// EmbedQuery generates an embedding optimized for query/search.
func (e *JinaEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	req := jinaRequest{
		Model:         e.model,
		Task:          "retrieval.query",
		Dimensions:    e.dimensions,
		Input:         []string{query},
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(jinaEndpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call Jina API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("Jina API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("Jina API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

// LocalEmbedder derives a unit vector deterministically from the query text.
// The same query always maps to the same vector, which is what the cache
// key contract and the tests rely on. Not a semantic model.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a deterministic local embedder.
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &LocalEmbedder{dimensions: dimensions}
}

// EmbedQuery returns the deterministic unit vector for the query.
func (e *LocalEmbedder) EmbedQuery(_ context.Context, query string) ([]float64, error) {
	h := fnv.New64a()
	h.Write([]byte(query))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float64, e.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = rng.Float64()*2 - 1
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

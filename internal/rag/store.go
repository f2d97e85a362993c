// Package rag implements the embedded vector-store lookup backing the
// read-only lookup_services_info manifest tool: a small local-embedding
// collection queried in-process, no ingestion pipeline attached.
package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// Document is one indexable piece of service/FAQ copy a workspace wants the
// bot able to answer from (spec's supplemented "read-only info lookup" tool:
// the orchestrator only ever issues read queries through it).
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is one scored hit from Query.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float64
}

// Store wraps a single chromem-go collection per workspace.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// New builds an empty, in-process Store.
func New() *Store {
	return &Store{db: chromem.NewDB(), collections: make(map[string]*chromem.Collection)}
}

// collection lazily creates the per-workspace collection, keeping tenants
// isolated the way the Tool Manifest cache isolates them by workspace.
func (s *Store) collection(workspaceID string) (*chromem.Collection, error) {
	if c, ok := s.collections[workspaceID]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection("ws_"+workspaceID, nil, localEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection for workspace %s: %w", workspaceID, err)
	}
	s.collections[workspaceID] = c
	return c, nil
}

// Index adds or replaces docs in workspaceID's collection.
func (s *Store) Index(ctx context.Context, workspaceID string, docs []Document) error {
	c, err := s.collection(workspaceID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := c.AddDocument(ctx, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		}); err != nil {
			return fmt.Errorf("index document %s: %w", d.ID, err)
		}
	}
	return nil
}

// Query returns the topK closest documents to query in workspaceID's
// collection. An empty/absent collection returns an empty result set, never
// an error (spec's "no manifest → treat as empty" discipline applied here
// too).
func (s *Store) Query(ctx context.Context, workspaceID, query string, topK int) ([]Result, error) {
	c, ok := s.collections[workspaceID]
	if !ok || c.Count() == 0 {
		return []Result{}, nil
	}
	if topK <= 0 || topK > c.Count() {
		topK = c.Count()
	}

	hits, err := c.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query workspace %s: %w", workspaceID, err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{ID: h.ID, Content: h.Content, Metadata: h.Metadata, Score: float64(h.Similarity)}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// localEmbeddingFunc is a dependency-free embedding: a deterministic
// bag-of-hashed-tokens vector. It never calls an external API, trading
// semantic quality for the orchestrator's hard rule that a tool call never
// blocks on an unbounded external round trip outside the Tool Broker's own
// budget machinery.
const embeddingDims = 256

func localEmbeddingFunc(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := sha256.Sum256([]byte(tok))
		idx := int(h[0])<<8 | int(h[1])
		vec[idx%embeddingDims] += 1
	}
	normalize(vec)
	return vec, nil
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= norm
	}
}

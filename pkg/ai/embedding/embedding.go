// Package embedding defines the interface documents and vector stores use
// to turn text into vectors. Providers call out to real embedding APIs;
// DeterministicEmbedder here is the dependency-free fallback the History
// Vectorizer and its tests run against when no network embedding model is
// configured.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Usage reports token accounting for a provider embedding call. Providers
// that don't bill by token (or the deterministic fallback) leave it zeroed.
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

// Embedding is a single vector result plus the text it came from.
type Embedding struct {
	Vector []float32
	Text   string
	Usage  Usage
}

// Options configures an embedding call (model override, dimensions, etc).
type Options struct {
	Model      string
	Dimensions int
	User       string
}

// DefaultOptions returns the zero-value Options a provider falls back to
// when the caller supplies none.
func DefaultOptions() *Options {
	return &Options{}
}

// Option mutates Options.
type Option func(*Options)

// WithModel overrides the embedding model identifier.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithDimensions requests a specific output dimensionality, for models that
// support truncation (e.g. Matryoshka embeddings).
func WithDimensions(n int) Option {
	return func(o *Options) { o.Dimensions = n }
}

// WithUser attaches an end-user identifier to the request, for providers
// that use it for abuse monitoring.
func WithUser(user string) Option {
	return func(o *Options) { o.User = user }
}

// Embedder turns text into vectors. EmbedQuery and EmbedDocuments are
// separate because some providers apply different instructions/prefixes
// to queries versus indexed documents.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string, opts ...Option) ([]Embedding, error)
	EmbedQuery(ctx context.Context, text string, opts ...Option) (Embedding, error)
}

// DeterministicEmbedder produces a reproducible pseudo-random vector from a
// hash of the input text. It is not semantically meaningful — it exists so
// the Context Engine and Vector Store can run end-to-end (including
// similarity ranking and tests) without a configured network embedding
// model, degrading gracefully rather than failing closed.
type DeterministicEmbedder struct {
	Dims int
}

// NewDeterministicEmbedder creates a DeterministicEmbedder producing dims
// dimensional vectors (defaults to 256 when dims <= 0).
func NewDeterministicEmbedder(dims int) *DeterministicEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &DeterministicEmbedder{Dims: dims}
}

func (e *DeterministicEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, e.Dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	// xorshift64* PRNG seeded from the content hash — deterministic across
	// runs for the same text, spread across [-1, 1].
	state := seed
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	next := func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return float64(state%1000000) / 1000000.0
	}

	var norm float64
	for i := range vec {
		v := next()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func (e *DeterministicEmbedder) EmbedDocuments(_ context.Context, texts []string, _ ...Option) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		out[i] = Embedding{Vector: e.vectorFor(t), Text: t}
	}
	return out, nil
}

func (e *DeterministicEmbedder) EmbedQuery(_ context.Context, text string, _ ...Option) (Embedding, error) {
	return Embedding{Vector: e.vectorFor(text), Text: text}, nil
}

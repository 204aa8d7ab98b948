// Package mock provides a deterministic test double for the
// embeddings.Provider interface.
//
// The mock derives each vector from a hash of the input text, so identical
// inputs always produce identical vectors without any network access. That
// makes it suitable for exercising the long-term memory store's similarity
// path in unit tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/nexuslabs/nexus/pkg/provider/embeddings"
)

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a deterministic, in-process embeddings.Provider.
// The zero value is not usable; create instances with New.
type Provider struct {
	dims int

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	mu         sync.Mutex
	embedCalls []string
}

// New creates a mock provider emitting vectors of the given dimension.
// A non-positive dims defaults to 384.
func New(dims int) *Provider {
	if dims <= 0 {
		dims = 384
	}
	return &Provider{dims: dims}
}

// Embed returns a normalised pseudo-embedding derived from text.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.embedCalls = append(p.embedCalls, text)
	err := p.Err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// EmbedBatch returns one pseudo-embedding per input text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dims }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embed" }

// EmbedCalls returns a copy of every text passed to Embed, in order.
func (p *Provider) EmbedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.embedCalls))
	copy(out, p.embedCalls)
	return out
}

// vector spreads character hashes across the dimension space and normalises
// the result to unit length.
func (p *Provider) vector(text string) []float32 {
	vec := make([]float32, p.dims)
	for i := 0; i < len(text); i++ {
		h := fnv.New32a()
		h.Write([]byte{text[i], byte(i)})
		vec[int(h.Sum32())%p.dims]++
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

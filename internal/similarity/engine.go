// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity decides whether a candidate article is too close to
// anything already accepted in the current batch. It combines a lexical
// shingle-overlap signal, always available, with an optional semantic
// signal from an embedding comparator.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pdiddy/content-engine/internal/slug"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Embedder is the semantic comparator. A nil Embedder degrades the engine
// to lexical-only mode.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// summary is the lightweight representation of an accepted article kept in
// batch memory for future comparisons.
type summary struct {
	id        string
	title     string
	topic     string
	headings  []string
	shingles  map[string]struct{}
	embedding []float64
}

// Engine holds one batch's memory of accepted articles. Construct one per
// batch session; there is no shared global state. Memory access is guarded
// so concurrent batch mode cannot corrupt it, though sequential mode is the
// supported default.
type Engine struct {
	cfg      types.SimilarityConfig
	embedder Embedder

	mu     sync.RWMutex
	memory map[string]*summary
	order  []string // insertion order, for deterministic tie-breaks
}

// NewEngine builds an engine for one batch session. embedder may be nil.
func NewEngine(cfg types.SimilarityConfig, embedder Embedder) *Engine {
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = 3
	}
	if cfg.LexicalWeight <= 0 && cfg.SemanticWeight <= 0 {
		cfg.LexicalWeight, cfg.SemanticWeight = 0.4, 0.6
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 72
	}
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		memory:   make(map[string]*summary),
	}
}

// Check scores the candidate against every accepted article and returns the
// verdict for the best match. It never fails: an embedding comparator error
// produces a fail-open result with Mode set to "error" and a zero score —
// the quality gate elsewhere catches genuinely bad output.
func (e *Engine) Check(ctx context.Context, candidate *types.Article) types.SimilarityResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.memory) == 0 {
		return types.SimilarityResult{Mode: types.ModeNone}
	}

	mode := types.ModeLexicalOnly
	var candEmbedding []float64
	if e.embedder != nil {
		emb, err := e.embedder.Embed(ctx, embedText(candidate))
		if err != nil {
			return types.SimilarityResult{
				Mode:   types.ModeError,
				Issues: []string{fmt.Sprintf("embedding comparator failed: %v", err)},
			}
		}
		candEmbedding = emb
		mode = types.ModeHybrid
	}

	candShingles := shingleSet(candidate.Body, e.cfg.ShingleSize)

	result := types.SimilarityResult{Mode: mode}
	for _, id := range e.order {
		stored := e.memory[id]

		lex := jaccard(candShingles, stored.shingles) * 100

		combined := lex
		sem := 0.0
		if mode == types.ModeHybrid && len(stored.embedding) > 0 {
			sem = cosine(candEmbedding, stored.embedding) * 100
			total := e.cfg.LexicalWeight + e.cfg.SemanticWeight
			combined = (e.cfg.LexicalWeight*lex + e.cfg.SemanticWeight*sem) / total
		}

		if combined > result.Score || result.MatchedID == "" {
			result.Score = combined
			result.LexicalScore = lex
			result.SemanticScore = sem
			result.MatchedID = id
		}
	}

	if result.Score > e.cfg.Threshold {
		result.TooSimilar = true
		result.RegenerationNeeded = e.cfg.AllowRegeneration
	}
	return result
}

// Add summarizes an approved article and stores it in batch memory under a
// slug derived from its title. Only call Add after a candidate is accepted.
// An embedding failure is not fatal; the entry is stored without a vector
// and later checks against it fall back to the lexical signal.
func (e *Engine) Add(ctx context.Context, a *types.Article) (string, error) {
	if a == nil || strings.TrimSpace(a.Body) == "" {
		return "", fmt.Errorf("add: empty candidate")
	}

	s := &summary{
		title:    a.Title,
		topic:    a.Topic,
		headings: headings(a.Body),
		shingles: shingleSet(a.Body, e.cfg.ShingleSize),
	}
	if e.embedder != nil {
		if emb, err := e.embedder.Embed(ctx, embedText(a)); err == nil {
			s.embedding = emb
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := slug.Make(a.Title)
	if id == "untitled" && a.Topic != "" {
		id = slug.Make(a.Topic)
	}
	base := id
	for n := 2; ; n++ {
		if _, taken := e.memory[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	s.id = id

	e.memory[id] = s
	e.order = append(e.order, id)
	return id, nil
}

// Clear empties batch memory, starting a fresh session.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory = make(map[string]*summary)
	e.order = nil
}

// Len reports how many accepted articles are in memory.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.memory)
}

// embedText is the text sent to the comparator: title plus body, truncated
// so long articles stay within embedding input limits.
func embedText(a *types.Article) string {
	text := a.Title + "\n\n" + a.Body
	const limit = 8000
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}

// shingleSet builds the set of overlapping k-word windows over the
// normalized text. Language-agnostic and always available.
func shingleSet(text string, k int) map[string]struct{} {
	words := normalize(text)
	set := make(map[string]struct{})
	if len(words) < k {
		if len(words) > 0 {
			set[strings.Join(words, " ")] = struct{}{}
		}
		return set
	}
	for i := 0; i+k <= len(words); i++ {
		set[strings.Join(words[i:i+k], " ")] = struct{}{}
	}
	return set
}

// normalize lowercases text and strips everything but letters, digits, and
// word boundaries.
func normalize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x80:
			// Keep non-ASCII letters as-is; shingles stay language-agnostic.
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

// jaccard is |A∩B| / |A∪B| over shingle sets, in [0,1].
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for s := range small {
		if _, ok := large[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// cosine is the cosine similarity of two vectors, clamped to [0,1].
// Mismatched lengths score 0.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// headings collects Markdown headings from the body for the stored summary.
func headings(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}
	}
	return out
}

// Package recall implements MemoryRecall: given a textual query, return
// the most relevant active memories for a tenant/user. The Hybrid mode
// fuses vector, lexical, and temporal channels by reciprocal rank into a
// multi-channel, NaN-safe, cancellation-aware retrieval engine.
package recall

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// Mode selects which channel(s) MemoryRecall consults.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeLexical  Mode = "lexical"
	ModeHybrid   Mode = "hybrid"
	ModeTemporal Mode = "temporal"
)

// Config bounds the recall engine's fusion behavior.
type Config struct {
	// RRFK is the reciprocal-rank-fusion constant (spec default 60).
	RRFK int

	// SemanticWeight, LexicalWeight, TemporalWeight weight each channel's
	// contribution in Hybrid fusion. Must sum to a positive number.
	SemanticWeight float64
	LexicalWeight  float64
	TemporalWeight float64

	// CandidateMultiplier sizes each channel's candidate list as
	// multiplier*limit before fusion (spec default 3).
	CandidateMultiplier int

	// DefaultLimit is used when a request specifies no limit.
	DefaultLimit int

	// DecayWindow, DecayFactor, ArchiveThreshold drive the lazy
	// importance-decay-on-read applied to every successfully recalled
	// memory whose last update is older than DecayWindow (spec §4.9,
	// applied opportunistically here rather than only in the background
	// maintenance sweep).
	DecayWindow      time.Duration
	DecayFactor      float64
	ArchiveThreshold float64
}

// DefaultConfig matches the engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		RRFK:                 60,
		SemanticWeight:       0.6,
		LexicalWeight:        0.3,
		TemporalWeight:       0.1,
		CandidateMultiplier:  3,
		DefaultLimit:         10,
		DecayWindow:          30 * 24 * time.Hour,
		DecayFactor:          0.95,
		ArchiveThreshold:     0.05,
	}
}

// Filter narrows candidates beyond tenant/active scoping.
type Filter struct {
	Kind  *memory.Kind
	Tags  []string
	Since *time.Time
	Until *time.Time
}

// Request is the input to Recall.
type Request struct {
	Query     string
	TenantID  ids.TenantID
	UserID    string
	Mode      Mode
	// Limit bounds the number of results. Zero explicitly means "return
	// nothing" (no candidates are scored, no accessed_at is touched);
	// a negative value means "unspecified" and falls back to the
	// engine's configured DefaultLimit.
	Limit     int
	Threshold *float64
	Filter    Filter
}

// ChannelScores carries each channel's raw contribution to a result, for
// diagnostics. A channel a result did not appear in reports 0.
type ChannelScores struct {
	Vector   float64
	Lexical  float64
	Temporal float64
}

// Result is one recalled memory with its fused (or single-channel) score.
type Result struct {
	Memory   *memory.Memory
	Score    float64
	Channels ChannelScores
}

// Engine is the default MemoryRecall implementation.
type Engine struct {
	memories     ports.MemoryRepository
	vectorIndex  ports.VectorIndex
	lexicalIndex ports.LexicalIndex
	embeddings   ports.EmbeddingProvider
	cfg          Config
}

// New creates a recall Engine.
func New(
	memories ports.MemoryRepository,
	vectorIndex ports.VectorIndex,
	lexicalIndex ports.LexicalIndex,
	embeddings ports.EmbeddingProvider,
	cfg Config,
) *Engine {
	return &Engine{memories: memories, vectorIndex: vectorIndex, lexicalIndex: lexicalIndex, embeddings: embeddings, cfg: cfg}
}

type candidate struct {
	id       ids.MemoryID
	score    float64
	channels ChannelScores
}

// Recall returns up to limit relevant active memories for the request's
// tenant (and user, if supplied). Cancellation is checked before any
// write: if ctx is already done, Recall returns Cancelled without having
// touched accessed_at on any memory.
func (e *Engine) Recall(ctx context.Context, req Request) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelled("recall cancelled before starting")
	}
	if req.TenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}

	if req.Limit == 0 {
		return []Result{}, nil
	}
	limit := req.Limit
	if limit < 0 {
		limit = e.cfg.DefaultLimit
	}
	multiplier := e.cfg.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = 3
	}
	k := multiplier * limit

	var candidates []candidate
	var err error

	switch req.Mode {
	case ModeSemantic:
		candidates, err = e.semanticCandidates(ctx, req, k)
	case ModeLexical:
		candidates, err = e.lexicalCandidates(ctx, req, k)
	case ModeTemporal:
		candidates, err = e.temporalCandidates(ctx, req, k)
	case ModeHybrid, "":
		candidates, err = e.hybridCandidates(ctx, req, k)
	default:
		return nil, pkgerrors.NewValidation("unknown recall mode")
	}
	if err != nil {
		return nil, err
	}

	sortCandidatesDesc(candidates)

	results := make([]Result, 0, limit)
	for _, c := range candidates {
		if len(results) >= limit {
			break
		}
		if req.Threshold != nil && !math.IsNaN(c.score) && c.score < *req.Threshold {
			continue
		}
		if math.IsNaN(c.score) && req.Threshold != nil {
			continue
		}

		m, getErr := e.memories.Get(ctx, req.TenantID, c.id)
		if getErr != nil {
			continue
		}
		if !m.IsActive() {
			continue
		}
		if req.UserID != "" && m.UserID() != req.UserID {
			continue
		}
		if !matchesFilter(m, req.Filter) {
			continue
		}
		results = append(results, Result{Memory: m, Score: c.score, Channels: c.channels})
	}

	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelled("recall cancelled before recording access")
	}
	e.recordAccess(ctx, results)

	return results, nil
}

// recordAccess bumps accessed_at and lazily applies importance decay for
// every surviving result. A mid-loop cancellation stops further writes;
// results already recorded remain, since each is its own independently
// committed optimistic-concurrency update and recording it does not
// violate that single memory's invariants.
func (e *Engine) recordAccess(ctx context.Context, results []Result) {
	for _, r := range results {
		if ctx.Err() != nil {
			return
		}
		m := r.Memory
		m.BumpAccessed(time.Now())

		if e.cfg.DecayWindow > 0 && time.Since(m.UpdatedAt()) >= e.cfg.DecayWindow {
			factor := e.cfg.DecayFactor
			if factor <= 0 {
				factor = 0.95
			}
			shouldArchive := m.ApplyImportanceDecay(factor, e.cfg.ArchiveThreshold)
			if shouldArchive {
				_ = m.Archive("importance decayed below archive threshold")
			}
		}

		_ = e.memories.Update(ctx, m)
	}
}

func (e *Engine) semanticCandidates(ctx context.Context, req Request, k int) ([]candidate, error) {
	query, err := e.embeddings.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectorIndex.Search(ctx, req.TenantID, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{id: h.MemoryID, score: h.Score, channels: ChannelScores{Vector: h.Score}}
	}
	return out, nil
}

func (e *Engine) lexicalCandidates(ctx context.Context, req Request, k int) ([]candidate, error) {
	hits, err := e.lexicalIndex.Search(ctx, req.TenantID, req.Query, k)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{id: h.MemoryID, score: h.Score, channels: ChannelScores{Lexical: h.Score}}
	}
	return out, nil
}

func (e *Engine) temporalCandidates(ctx context.Context, req Request, k int) ([]candidate, error) {
	active, err := e.memories.FindActive(ctx, req.TenantID, req.UserID)
	if err != nil {
		return nil, err
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt().After(active[j].CreatedAt())
	})
	if len(active) > k {
		active = active[:k]
	}
	out := make([]candidate, len(active))
	for i, m := range active {
		score := 1.0 / float64(i+1)
		out[i] = candidate{id: m.ID(), score: score, channels: ChannelScores{Temporal: score}}
	}
	return out, nil
}

// hybridCandidates embeds the query once, runs the vector and lexical
// searches (and the temporal candidate fetch) concurrently via errgroup,
// and fuses the three channels by reciprocal rank.
func (e *Engine) hybridCandidates(ctx context.Context, req Request, k int) ([]candidate, error) {
	var vectorHits, lexicalHits []ports.ScoredID
	var temporalIDs []ids.MemoryID

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query, err := e.embeddings.Embed(gctx, req.Query)
		if err != nil {
			return err
		}
		hits, err := e.vectorIndex.Search(gctx, req.TenantID, query, k)
		if err != nil {
			return err
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.lexicalIndex.Search(gctx, req.TenantID, req.Query, k)
		if err != nil {
			return err
		}
		lexicalHits = hits
		return nil
	})
	g.Go(func() error {
		active, err := e.memories.FindActive(gctx, req.TenantID, req.UserID)
		if err != nil {
			return err
		}
		sort.Slice(active, func(i, j int) bool {
			return active[i].CreatedAt().After(active[j].CreatedAt())
		})
		if len(active) > k {
			active = active[:k]
		}
		ids := make([]ids.MemoryID, len(active))
		for i, m := range active {
			ids[i] = m.ID()
		}
		temporalIDs = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, pkgerrors.NewCancelled("recall cancelled during channel search")
		}
		return nil, err
	}

	rrfK := e.cfg.RRFK
	if rrfK <= 0 {
		rrfK = 60
	}
	wv, wl, wt := e.cfg.SemanticWeight, e.cfg.LexicalWeight, e.cfg.TemporalWeight
	if wv+wl+wt <= 0 {
		wv, wl, wt = 0.6, 0.3, 0.1
	}

	type entry struct {
		score    float64
		channels ChannelScores
	}
	fused := make(map[string]*entry)
	order := make([]string, 0)

	touch := func(key string) *entry {
		if e, ok := fused[key]; ok {
			return e
		}
		e := &entry{}
		fused[key] = e
		order = append(order, key)
		return e
	}

	for rank, h := range vectorHits {
		key := h.MemoryID.String()
		en := touch(key)
		en.score += wv / (float64(rrfK) + float64(rank+1))
		en.channels.Vector = h.Score
	}
	for rank, h := range lexicalHits {
		key := h.MemoryID.String()
		en := touch(key)
		en.score += wl / (float64(rrfK) + float64(rank+1))
		en.channels.Lexical = h.Score
	}
	for rank, id := range temporalIDs {
		key := id.String()
		en := touch(key)
		en.score += wt / (float64(rrfK) + float64(rank+1))
		en.channels.Temporal = 1.0 / float64(rank+1)
	}

	byID := make(map[string]ids.MemoryID, len(order))
	for _, h := range vectorHits {
		byID[h.MemoryID.String()] = h.MemoryID
	}
	for _, h := range lexicalHits {
		byID[h.MemoryID.String()] = h.MemoryID
	}
	for _, id := range temporalIDs {
		byID[id.String()] = id
	}

	out := make([]candidate, 0, len(order))
	for _, key := range order {
		out = append(out, candidate{id: byID[key], score: fused[key].score, channels: fused[key].channels})
	}
	return out, nil
}

// sortCandidatesDesc orders by descending score. Every real score sorts
// ahead of a NaN and NaNs compare equal to each other, so NaN-scored
// candidates sit at the tail, in their original relative order, instead
// of panicking or corrupting the sort.
func sortCandidatesDesc(c []candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i].score, c[j].score
		aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
		if aNaN || bNaN {
			return !aNaN
		}
		return a > b
	})
}

func matchesFilter(m *memory.Memory, f Filter) bool {
	if f.Kind != nil && m.Kind() != *f.Kind {
		return false
	}
	if f.Since != nil && m.CreatedAt().Before(*f.Since) {
		return false
	}
	if f.Until != nil && m.CreatedAt().After(*f.Until) {
		return false
	}
	if len(f.Tags) > 0 {
		tagSet := make(map[string]bool, len(m.Tags()))
		for _, t := range m.Tags() {
			tagSet[strings.ToLower(t)] = true
		}
		found := false
		for _, want := range f.Tags {
			if tagSet[strings.ToLower(want)] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

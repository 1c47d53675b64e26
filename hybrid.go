package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HYBRID RETRIEVER: fusing BM25 and SPLADE rankings
// ═══════════════════════════════════════════════════════════════════════════════
// Neither retrieval signal is complete on its own: BM25 is precise about
// exact term matches but blind to paraphrase, while the learned sparse
// model captures semantic overlap but can drift on rare vocabulary. Running
// both and fusing their rankings, rather than picking one, is the whole
// point of this package.
//
// Reciprocal Rank Fusion combines two RANKINGS, not two SCORES — it never
// needs the two legs' scores to be on comparable scales, which BM25 and a
// learned sparse dot product otherwise are not.
//
//	rrf(doc) = Σ_list 1 / (rrf_k + rank_in_list(doc) + 1)
//
// rrf_k dampens the influence of rank 0 versus rank 1 (a large rrf_k makes
// the fusion closer to a plain rank-count vote; a small one makes the very
// top of each list dominate).
// ═══════════════════════════════════════════════════════════════════════════════

// RankedDoc is one scored result from a single retrieval leg or the fused
// hybrid result: a caller-facing doc_id and the score that produced its
// rank (BM25 score, sparse dot product, or RRF score, depending on where
// the value came from).
type RankedDoc struct {
	DocID string
	Score float64
}

// HybridConfig holds the tunable parameters of hybrid retrieval.
type HybridConfig struct {
	RRFK        int // reciprocal-rank-fusion damping constant, default 60
	CandidatesK int // how many results each leg contributes before fusion, default 2000
	TopK        int // how many fused results to return, default 10
}

// DefaultHybridConfig returns the documented defaults.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{RRFK: 60, CandidatesK: 2000, TopK: 10}
}

// HybridRetriever dispatches a query against both a BM25 positional index
// and a SPLADE-style sparse index, then fuses the two rankings.
type HybridRetriever struct {
	bm25    *InvertedIndex
	sparse  *SparseIndex
	encoder SparseEncoder
	cfg     HybridConfig
}

// NewHybridRetriever wires a finalized/loaded BM25 index, a finalized/
// loaded sparse index, and an encoder into a retriever. Both indices MUST
// be out of their building phase before Search is called.
func NewHybridRetriever(bm25 *InvertedIndex, sparse *SparseIndex, encoder SparseEncoder, cfg HybridConfig) *HybridRetriever {
	return &HybridRetriever{bm25: bm25, sparse: sparse, encoder: encoder, cfg: cfg}
}

// Search runs the BM25 and SPLADE legs concurrently and returns their RRF
// fusion. If the encoder fails (the "external service" leg is the one most
// likely to be unavailable), the fused result degrades to the BM25 leg
// alone rather than failing the whole query.
func (h *HybridRetriever) Search(ctx context.Context, query string) ([]RankedDoc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	var bm25Ranked, sparseRanked []RankedDoc

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		bm25Ranked = h.runBM25Leg(query)
		return nil
	})
	g.Go(func() error {
		sparseRanked = h.runSparseLeg(query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := reciprocalRankFusion(h.cfg.RRFK, bm25Ranked, sparseRanked)
	if len(fused) > h.cfg.TopK {
		fused = fused[:h.cfg.TopK]
	}
	return fused, nil
}

func (h *HybridRetriever) runBM25Leg(query string) []RankedDoc {
	matches := h.bm25.RankBM25(query, h.cfg.CandidatesK)
	out := make([]RankedDoc, 0, len(matches))
	for _, m := range matches {
		docID, ok := h.bm25.DocIDOf(m.DocID)
		if !ok {
			continue
		}
		out = append(out, RankedDoc{DocID: docID, Score: m.Score})
	}
	return out
}

func (h *HybridRetriever) runSparseLeg(query string) []RankedDoc {
	vec, err := h.encoder.Encode(query)
	if err != nil {
		slog.Warn("sparse encoder unavailable, degrading to BM25-only", slog.String("error", err.Error()))
		return nil
	}
	return h.sparse.Search(vec, h.cfg.CandidatesK)
}

// reciprocalRankFusion merges any number of ranked lists (already sorted
// best-first) into one fused ranking. A doc_id absent from a list simply
// doesn't receive that list's contribution — partial leg availability (an
// empty list) degrades gracefully rather than erroring.
func reciprocalRankFusion(rrfK int, lists ...[]RankedDoc) []RankedDoc {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, doc := range list {
			scores[doc.DocID] += 1.0 / float64(rrfK+rank+1)
		}
	}

	fused := make([]RankedDoc, 0, len(scores))
	for docID, score := range scores {
		fused = append(fused, RankedDoc{DocID: docID, Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].DocID < fused[j].DocID
	})
	return fused
}

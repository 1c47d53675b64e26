package retrieval

import (
	"hash/fnv"
	"math"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPARSE ENCODER: the learned-term side of the hybrid retriever
// ═══════════════════════════════════════════════════════════════════════════════
// SPLADE-style models expand a piece of text into a sparse vector over a
// fixed vocabulary: a handful of term_ids get a nonzero weight, most of the
// vocabulary stays at zero. The model itself is an external, opaque
// dependency — this package only needs the shape of its output, not its
// internals.
//
// SparseEncoder is that shape. A production deployment wires in a client
// for a real model server; StubEncoder below is a deterministic stand-in
// that lets the rest of the pipeline (indexing, building, searching,
// fusing) run and be tested without one.
// ═══════════════════════════════════════════════════════════════════════════════

// SparseTerm is one nonzero coordinate of a sparse vector: a term_id in the
// encoder's vocabulary and the weight assigned to it for a given text.
type SparseTerm struct {
	TermID uint32
	Weight float32
}

// SparseVector is the set of nonzero coordinates the encoder produced for
// one piece of text. Order is not significant.
type SparseVector []SparseTerm

// SparseEncoder turns text into a sparse vector over a fixed vocabulary.
// Implementations are expected to be safe for concurrent use.
type SparseEncoder interface {
	Encode(text string) (SparseVector, error)
	EncodeBatch(texts []string) ([]SparseVector, error)
}

// StubEncoder is a deterministic feature-hashing encoder: it tokenizes text
// with the same pipeline used for the positional index, hashes each stemmed
// token into a fixed-size term_id space, and weighs each term_id by
// 1+log(term frequency). It has no learned semantics — it exists so the
// hybrid retriever, persistence layer, and CLI have something real to run
// against before a neural model is wired in.
type StubEncoder struct {
	Dimension int
	tokenizer AnalyzerConfig
}

// NewStubEncoder returns a StubEncoder hashing into [0, dimension).
func NewStubEncoder(dimension int) *StubEncoder {
	return &StubEncoder{Dimension: dimension, tokenizer: DefaultConfig()}
}

func (e *StubEncoder) Encode(text string) (SparseVector, error) {
	tokens := AnalyzeWithConfig(text, e.tokenizer)
	if len(tokens) == 0 {
		return SparseVector{}, nil
	}

	counts := make(map[uint32]int, len(tokens))
	for _, tok := range tokens {
		counts[e.hash(tok)]++
	}

	vec := make(SparseVector, 0, len(counts))
	for termID, count := range counts {
		vec = append(vec, SparseTerm{
			TermID: termID,
			Weight: float32(1.0 + math.Log(float64(count))),
		})
	}
	return vec, nil
}

func (e *StubEncoder) EncodeBatch(texts []string) ([]SparseVector, error) {
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *StubEncoder) hash(token string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(token))
	return h.Sum32() % uint32(e.Dimension)
}

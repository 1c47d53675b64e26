package retrieval

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPARSE VECTOR INDEX
// ═══════════════════════════════════════════════════════════════════════════════
// Mirrors the positional index's hybrid-storage idiom, but keyed by learned
// term_id instead of a stemmed string, and carrying a weight alongside each
// posting instead of only a position:
//
//	SparseIndex
//	├── postings: map[term_id]*sparsePosting (FINALIZED, after Build)
//	│   ├── bitmap:  roaring.Bitmap of doc handles with a nonzero weight
//	│   └── weights: []float32, aligned to bitmap's ascending iteration order
//	└── staging: map[term_id]map[handle]float32 (BUILDING, before Build)
//
// Build() exists because a roaring bitmap's iteration order is fixed once
// constructed — appending to it term by term during AddBatch would mean
// re-deriving the weight alignment on every insert. Staging defers that
// cost to a single pass.
// ═══════════════════════════════════════════════════════════════════════════════

type sparsePosting struct {
	bitmap  *roaring.Bitmap
	weights []float32
}

// SparseIndex stores learned sparse vectors for a corpus and scores queries
// against them via a sparse dot product.
type SparseIndex struct {
	mu       sync.Mutex
	ids      *docIDTable
	staging  map[uint32]map[int]float32
	postings map[uint32]*sparsePosting
	phase    indexPhase
}

// NewSparseIndex creates an empty, buildable sparse index.
func NewSparseIndex() *SparseIndex {
	return &SparseIndex{
		ids:     newDocIDTable(),
		staging: make(map[uint32]map[int]float32),
		phase:   phaseBuilding,
	}
}

// AddBatch adds a batch of (doc_id, sparse vector) pairs. Only valid while
// the index is building.
func (si *SparseIndex) AddBatch(docIDs []string, vectors []SparseVector) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.phase.readOnly() {
		return ErrInvalidState
	}
	if len(docIDs) != len(vectors) {
		return ErrUnknownDoc
	}

	for i, docID := range docIDs {
		handle, err := si.ids.intern(docID)
		if err != nil {
			return err
		}
		for _, term := range vectors[i] {
			byHandle, ok := si.staging[term.TermID]
			if !ok {
				byHandle = make(map[int]float32)
				si.staging[term.TermID] = byHandle
			}
			byHandle[handle] += term.Weight
		}
	}
	return nil
}

// Build compacts the staged postings into sorted bitmap+weight pairs and
// freezes the index for search. Build is one-way: AddBatch is rejected
// afterward.
func (si *SparseIndex) Build() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.phase != phaseBuilding {
		return ErrInvalidState
	}

	si.postings = make(map[uint32]*sparsePosting, len(si.staging))
	for termID, byHandle := range si.staging {
		handles := make([]int, 0, len(byHandle))
		for h := range byHandle {
			handles = append(handles, h)
		}
		sort.Ints(handles)

		bitmap := roaring.NewBitmap()
		weights := make([]float32, 0, len(handles))
		for _, h := range handles {
			bitmap.Add(uint32(h))
			weights = append(weights, byHandle[h])
		}

		si.postings[termID] = &sparsePosting{bitmap: bitmap, weights: weights}
	}

	si.staging = nil
	si.phase = phaseFinalized
	return nil
}

// Search scores a query's sparse vector against every document that shares
// at least one nonzero term with it and returns the topK highest-scoring
// documents by descending score (ties broken by ascending doc_id).
func (si *SparseIndex) Search(query SparseVector, topK int) []RankedDoc {
	if si.phase == phaseBuilding {
		return nil
	}

	scores := make(map[int]float64)
	for _, qterm := range query {
		posting, ok := si.postings[qterm.TermID]
		if !ok {
			continue
		}
		iter := posting.bitmap.Iterator()
		i := 0
		for iter.HasNext() {
			handle := int(iter.Next())
			scores[handle] += float64(qterm.Weight) * float64(posting.weights[i])
			i++
		}
	}

	results := make([]RankedDoc, 0, len(scores))
	for handle, score := range scores {
		docID, ok := si.ids.docIDOf(handle)
		if !ok {
			continue
		}
		results = append(results, RankedDoc{DocID: docID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// DocCount reports how many distinct documents have been staged or built.
func (si *SparseIndex) DocCount() int {
	return si.ids.len()
}

// Phase reports the index's lifecycle stage.
func (si *SparseIndex) Phase() string {
	switch si.phase {
	case phaseBuilding:
		return "building"
	case phaseFinalized:
		return "finalized"
	case phaseLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

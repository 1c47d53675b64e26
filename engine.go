package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/2Jaeheon/cascading-hybrid-search-engine/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE: the top-level handle callers construct and drive
// ═══════════════════════════════════════════════════════════════════════════════
// Engine owns the three persisted artifacts (positional index, sparse
// index, title store) and the encoder, and exposes the operations a CLI or
// any other caller actually needs: building a corpus, loading a previously
// built one, warming up the encoder, and querying. There is no package-
// level mutable state — every caller constructs and owns its own Engine,
// and Close releases everything it opened.
// ═══════════════════════════════════════════════════════════════════════════════

// Engine ties the positional index, sparse index, title store, and encoder
// together behind the operations a caller needs.
type Engine struct {
	cfg     *config.Config
	bm25    *InvertedIndex
	sparse  *SparseIndex
	titles  *TitleStore
	encoder SparseEncoder
	hybrid  *HybridRetriever
}

// New constructs an Engine from configuration. New is cheap: it does not
// load or build anything on its own. Call Load or Build next, and WarmUp
// before serving the first real query if the encoder has its own expensive
// initialization.
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	titles, err := OpenTitleStore(cfg.TitlesPath)
	if err != nil {
		return nil, fmt.Errorf("opening title store: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		encoder: NewStubEncoder(cfg.EncoderDimension),
		titles:  titles,
	}, nil
}

// WarmUp materializes anything about the encoder that's expensive to
// initialize lazily. StubEncoder has nothing to warm up, but the hook
// exists so a real neural-backed encoder can do its model load here
// instead of on an engine's very first query.
func (e *Engine) WarmUp(ctx context.Context) error {
	_, err := e.encoder.Encode("warm up")
	return err
}

// Load opens the persisted artifacts at the configured paths. loaded
// reports whether at least one artifact was found and opened; a fully
// missing store (first run, nothing built yet) is not an error. A present
// but corrupt artifact IS an error.
func (e *Engine) Load() (loaded bool, err error) {
	bm25, bm25Loaded, err := LoadIndex(e.cfg.IndexPath, DefaultConfig())
	if err != nil {
		return false, fmt.Errorf("loading positional index: %w", err)
	}
	sparse, sparseLoaded, err := LoadSparseIndex(e.cfg.SparseIndexPath)
	if err != nil {
		return false, fmt.Errorf("loading sparse index: %w", err)
	}

	if bm25Loaded {
		e.bm25 = bm25
	}
	if sparseLoaded {
		e.sparse = sparse
	}
	e.rebuildRetriever()

	return bm25Loaded || sparseLoaded, nil
}

// Corpus is one document to index: its caller-facing doc_id, the text
// indexed for BM25 and SPLADE scoring, and an optional display title.
// Per the engine's corpus-enrichment convention, a non-empty Title is
// folded into the BM25 text twice (once for each appearance the original
// reference corpus gives a promoted title) before tokenization.
type Corpus struct {
	DocID string
	Text  string
	Title string
}

// Build indexes a corpus from scratch: a fresh positional index and a
// fresh sparse index, encoded via the engine's SparseEncoder, finalized,
// and saved to the configured paths. Titles, if present, are written to
// the title store alongside.
func (e *Engine) Build(ctx context.Context, docs []Corpus) error {
	bm25 := NewInvertedIndex()
	sparse := NewSparseIndex()

	docIDs := make([]string, 0, len(docs))
	texts := make([]string, 0, len(docs))
	titleDocIDs := make([]string, 0, len(docs))
	titles := make([]string, 0, len(docs))

	for _, doc := range docs {
		bm25Text := doc.Text
		if doc.Title != "" {
			bm25Text = doc.Title + " " + doc.Title + " " + doc.Text
			titleDocIDs = append(titleDocIDs, doc.DocID)
			titles = append(titles, doc.Title)
		}
		if err := bm25.AddDocument(doc.DocID, bm25Text); err != nil {
			return fmt.Errorf("indexing %q: %w", doc.DocID, err)
		}
		docIDs = append(docIDs, doc.DocID)
		texts = append(texts, doc.Text)
	}
	if err := bm25.Finalize(); err != nil {
		return err
	}

	vectors, err := e.encoder.EncodeBatch(texts)
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}
	if err := sparse.AddBatch(docIDs, vectors); err != nil {
		return err
	}
	if err := sparse.Build(); err != nil {
		return err
	}

	if len(titleDocIDs) > 0 {
		if err := e.titles.PutBatch(titleDocIDs, titles); err != nil {
			return fmt.Errorf("persisting titles: %w", err)
		}
	}

	if err := bm25.Save(e.cfg.IndexPath); err != nil {
		return fmt.Errorf("saving positional index: %w", err)
	}
	if err := sparse.Save(e.cfg.SparseIndexPath); err != nil {
		return fmt.Errorf("saving sparse index: %w", err)
	}

	e.bm25 = bm25
	e.sparse = sparse
	e.rebuildRetriever()
	return nil
}

func (e *Engine) rebuildRetriever() {
	if e.bm25 == nil || e.sparse == nil {
		e.hybrid = nil
		return
	}
	cfg := HybridConfig{RRFK: e.cfg.RRFK, CandidatesK: e.cfg.CandidatesK, TopK: e.cfg.TopK}
	e.hybrid = NewHybridRetriever(e.bm25, e.sparse, e.encoder, cfg)
}

// Result is one ranked, title-resolved search result.
type Result struct {
	DocID string
	Title string
	Score float64
}

// Search runs hybrid retrieval for a query and resolves titles for display.
// When only one of the two indices is loaded, it runs that leg alone.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, error) {
	var ranked []RankedDoc
	var err error
	switch {
	case e.hybrid != nil:
		ranked, err = e.hybrid.Search(ctx, query)
	case e.bm25 != nil:
		return e.SearchBM25Only(query, e.cfg.TopK)
	case e.sparse != nil:
		var vec SparseVector
		if vec, err = e.encoder.Encode(query); err == nil {
			ranked = e.sparse.Search(vec, e.cfg.TopK)
		}
	default:
		return nil, fmt.Errorf("engine has no loaded or built indices")
	}
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		title, _, _ := e.titles.Get(r.DocID)
		results = append(results, Result{DocID: r.DocID, Title: title, Score: r.Score})
	}
	return results, nil
}

// SearchBM25Only runs the positional index alone, bypassing fusion — used
// by the CLI's --mode bm25 flag and useful when the sparse leg's encoder
// is known to be unavailable.
func (e *Engine) SearchBM25Only(query string, topK int) ([]Result, error) {
	if e.bm25 == nil {
		return nil, fmt.Errorf("no positional index loaded")
	}
	matches := e.bm25.RankBM25(query, topK)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		docID, ok := e.bm25.DocIDOf(m.DocID)
		if !ok {
			continue
		}
		title, _, _ := e.titles.Get(docID)
		results = append(results, Result{DocID: docID, Title: title, Score: m.Score})
	}
	return results, nil
}

// SearchProximity ranks by term proximity instead of BM25 — documents where
// the query terms appear close together outrank documents where they're
// merely present. Bypasses the sparse leg entirely, like SearchBM25Only.
func (e *Engine) SearchProximity(query string, topK int) ([]Result, error) {
	if e.bm25 == nil {
		return nil, fmt.Errorf("no positional index loaded")
	}
	matches := e.bm25.RankProximity(query, topK)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		docID, ok := e.bm25.DocIDOf(m.DocID)
		if !ok {
			continue
		}
		title, _, _ := e.titles.Get(docID)
		results = append(results, Result{DocID: docID, Title: title, Score: m.Score})
	}
	return results, nil
}

// SearchBoolean runs a hand-built boolean query (see QueryBuilder) and ranks
// the matching set with BM25. terms are AND-ed together; any term prefixed
// with "-" is negated (AND NOT) rather than required.
func (e *Engine) SearchBoolean(terms []string, topK int) ([]Result, error) {
	if e.bm25 == nil {
		return nil, fmt.Errorf("no positional index loaded")
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("boolean query needs at least one term")
	}

	qb := NewQueryBuilder(e.bm25)
	for i, term := range terms {
		if i > 0 {
			qb.And()
		}
		if strings.HasPrefix(term, "-") && len(term) > 1 {
			qb.Not().Term(strings.TrimPrefix(term, "-"))
			continue
		}
		qb.Term(term)
	}

	matches := qb.ExecuteWithBM25(topK)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		docID, ok := e.bm25.DocIDOf(m.DocID)
		if !ok {
			continue
		}
		title, _, _ := e.titles.Get(docID)
		results = append(results, Result{DocID: docID, Title: title, Score: m.Score})
	}
	return results, nil
}

// Close releases the title store's database handle. The positional and
// sparse indices hold no external resources once loaded into memory.
func (e *Engine) Close() error {
	if e.titles != nil {
		return e.titles.Close()
	}
	return nil
}

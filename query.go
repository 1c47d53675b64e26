package retrieval

import (
	"github.com/RoaringBitmap/roaring"
)

// QueryBuilder gives boolean queries a type-safe fluent API in place of
// parsing a string grammar:
//
//	results := NewQueryBuilder(index).
//	    Term("machine").And().Term("learning").
//	    Execute()
//
//	results := NewQueryBuilder(index).
//	    Group(func(q *QueryBuilder) { q.Term("cat").Or().Term("dog") }).
//	    And().Not().Term("snake").
//	    Execute()
//
// Every Term/Phrase/Group pushes a roaring bitmap of matching doc handles
// onto a stack; Execute folds the stack left-to-right with the pending
// And/Or operations, so AND/OR/NOT all reduce to bitmap intersection,
// union, and difference rather than any string-level logic.
type QueryBuilder struct {
	index  *InvertedIndex
	stack  []*roaring.Bitmap
	ops    []QueryOp
	negate bool
	terms  []string // accumulated for ExecuteWithBM25's scoring pass
}

type QueryOp int

const (
	OpNone QueryOp = iota
	OpAnd
	OpOr
)

func NewQueryBuilder(index *InvertedIndex) *QueryBuilder {
	return &QueryBuilder{
		index:  index,
		stack:  make([]*roaring.Bitmap, 0),
		ops:    make([]QueryOp, 0),
		negate: false,
		terms:  make([]string, 0),
	}
}

// Term pushes the bitmap of documents containing term (after running it
// through the same analyzer pipeline used at index time), negated first
// if a preceding Not() is pending.
func (qb *QueryBuilder) Term(term string) *QueryBuilder {
	tokens := AnalyzeWithConfig(term, qb.index.tokenizer)
	if len(tokens) == 0 {
		qb.pushBitmap(roaring.NewBitmap())
		return qb
	}

	analyzedTerm := tokens[0]
	if !qb.negate {
		qb.terms = append(qb.terms, analyzedTerm)
	}

	bitmap := qb.getTermBitmap(analyzedTerm)
	if qb.negate {
		bitmap = qb.negateBitmap(bitmap)
		qb.negate = false
	}

	qb.pushBitmap(bitmap)
	return qb
}

// Phrase pushes the bitmap of documents containing phrase as a
// consecutive sequence, analyzing it first so it matches what indexing
// produced, then delegating to FindAllPhrases for the actual positional
// search (a bitmap alone can't express "consecutive").
func (qb *QueryBuilder) Phrase(phrase string) *QueryBuilder {
	tokens := AnalyzeWithConfig(phrase, qb.index.tokenizer)
	if len(tokens) == 0 {
		qb.pushBitmap(roaring.NewBitmap())
		return qb
	}

	if !qb.negate {
		qb.terms = append(qb.terms, tokens...)
	}

	analyzedPhrase := ""
	for i, token := range tokens {
		if i > 0 {
			analyzedPhrase += " "
		}
		analyzedPhrase += token
	}

	matches := qb.index.FindAllPhrases(analyzedPhrase, BOFDocument)

	bitmap := roaring.NewBitmap()
	for _, match := range matches {
		if !match[0].IsEnd() {
			bitmap.Add(uint32(match[0].GetDocumentID()))
		}
	}

	if qb.negate {
		bitmap = qb.negateBitmap(bitmap)
		qb.negate = false
	}

	qb.pushBitmap(bitmap)
	return qb
}

// And queues an AND (bitmap intersection) between the next two pushed
// bitmaps.
func (qb *QueryBuilder) And() *QueryBuilder {
	qb.ops = append(qb.ops, OpAnd)
	return qb
}

// Or queues an OR (bitmap union) between the next two pushed bitmaps.
func (qb *QueryBuilder) Or() *QueryBuilder {
	qb.ops = append(qb.ops, OpOr)
	return qb
}

// Not negates whichever Term/Phrase/Group call comes next.
func (qb *QueryBuilder) Not() *QueryBuilder {
	qb.negate = true
	return qb
}

// Group runs fn against a fresh sub-builder and pushes its Execute result
// as a single bitmap, giving callers explicit control over precedence
// (e.g. (cat OR dog) AND pet).
func (qb *QueryBuilder) Group(fn func(*QueryBuilder)) *QueryBuilder {
	subQuery := NewQueryBuilder(qb.index)
	fn(subQuery)
	result := subQuery.Execute()

	if qb.negate {
		result = qb.negateBitmap(result)
		qb.negate = false
	}

	qb.pushBitmap(result)
	return qb
}

// Execute folds the pushed bitmaps left-to-right with their pending
// And/Or operations and returns the resulting bitmap of matching doc
// handles.
func (qb *QueryBuilder) Execute() *roaring.Bitmap {
	if len(qb.stack) == 0 {
		return roaring.NewBitmap()
	}

	result := qb.stack[0]
	for i := 1; i < len(qb.stack); i++ {
		if i-1 < len(qb.ops) {
			switch qb.ops[i-1] {
			case OpAnd:
				result = roaring.And(result, qb.stack[i])
			case OpOr:
				result = roaring.Or(result, qb.stack[i])
			}
		}
	}

	return result
}

// ExecuteWithBM25 runs Execute, then BM25-scores every matching document
// against the terms accumulated along the way, returning the maxResults
// best Matches.
func (qb *QueryBuilder) ExecuteWithBM25(maxResults int) []Match {
	resultBitmap := qb.Execute()
	terms := qb.extractTerms()

	var results []Match
	iter := resultBitmap.Iterator()
	for iter.HasNext() {
		docID := docHandle(iter.Next())
		score := qb.index.calculateBM25Score(docID, terms)

		if score > 0 {
			results = append(results, Match{
				DocID: docID,
				Score: score,
			})
		}
	}

	qb.index.sortMatchesByScore(results)

	return limitResults(results, maxResults)
}

func (qb *QueryBuilder) getTermBitmap(term string) *roaring.Bitmap {
	if bitmap, exists := qb.index.DocBitmaps[term]; exists {
		return bitmap.Clone()
	}
	return roaring.NewBitmap()
}

// negateBitmap returns every known document handle except those in bitmap.
func (qb *QueryBuilder) negateBitmap(bitmap *roaring.Bitmap) *roaring.Bitmap {
	allDocs := roaring.NewBitmap()
	for docID := range qb.index.DocStats {
		allDocs.Add(uint32(docID))
	}
	return roaring.AndNot(allDocs, bitmap)
}

func (qb *QueryBuilder) pushBitmap(bitmap *roaring.Bitmap) {
	qb.stack = append(qb.stack, bitmap)
}

func (qb *QueryBuilder) extractTerms() []string {
	return qb.terms
}

// AllOf finds documents containing every one of terms (AND-chained).
func AllOf(index *InvertedIndex, terms ...string) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.NewBitmap()
	}

	qb := NewQueryBuilder(index).Term(terms[0])
	for i := 1; i < len(terms); i++ {
		qb.And().Term(terms[i])
	}
	return qb.Execute()
}

// AnyOf finds documents containing at least one of terms (OR-chained).
func AnyOf(index *InvertedIndex, terms ...string) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.NewBitmap()
	}

	qb := NewQueryBuilder(index).Term(terms[0])
	for i := 1; i < len(terms); i++ {
		qb.Or().Term(terms[i])
	}
	return qb.Execute()
}

// TermExcluding finds documents containing include but not exclude.
func TermExcluding(index *InvertedIndex, include, exclude string) *roaring.Bitmap {
	return NewQueryBuilder(index).
		Term(include).
		And().Not().Term(exclude).
		Execute()
}

package retrieval

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Phrase search: finding an exact, consecutive sequence of words. NextPhrase
// hops through the index one term at a time to find *an* occurrence of all
// terms (not necessarily consecutive), walks backward to find where a
// consecutive run starting with the first term would have to begin, and
// then validates that the run really is consecutive. A failed validation
// just means two of the terms occurred in the document but out of order or
// with gaps between them — NextPhrase recurses from the candidate start to
// keep looking.

// NextPhrase finds the next occurrence of a phrase (its terms already
// split) after startPos, returning [EOFDocument, EOFDocument] if no
// further occurrence exists.
func (idx *InvertedIndex) NextPhrase(query string, startPos Position) []Position {
	terms := strings.Fields(query)

	endPos := idx.findPhraseEnd(terms, startPos)
	if endPos.IsEnd() {
		return []Position{EOFDocument, EOFDocument}
	}

	phraseStart := idx.findPhraseStart(terms, endPos)

	if idx.isValidPhrase(phraseStart, endPos, len(terms)) {
		return []Position{phraseStart, endPos}
	}

	// Terms matched but weren't consecutive (e.g. "brown dog brown fox"
	// when searching "brown fox") — retry past this false candidate.
	return idx.NextPhrase(query, phraseStart)
}

// findPhraseEnd hops through terms in order, each time finding the next
// occurrence after the previous term's position, and returns where the
// last term landed — or EOFDocument if any term has no further occurrence.
func (idx *InvertedIndex) findPhraseEnd(terms []string, startPos Position) Position {
	currentPos := startPos

	for _, term := range terms {
		currentPos, _ = idx.Next(term, currentPos)
		if currentPos.IsEnd() {
			return EOFDocument
		}
	}

	return currentPos
}

// findPhraseStart walks backward from endPos (the position of the last
// term) through every term but the last, landing on where the first term
// of a would-be consecutive run occurred.
func (idx *InvertedIndex) findPhraseStart(terms []string, endPos Position) Position {
	currentPos := endPos

	for i := len(terms) - 2; i >= 0; i-- {
		currentPos, _ = idx.Previous(terms[i], currentPos)
	}

	return currentPos
}

// isValidPhrase confirms start and end fall in the same document and are
// exactly termCount-1 offsets apart — i.e. the terms really did occur back
// to back, not merely somewhere in the same document.
func (idx *InvertedIndex) isValidPhrase(start, end Position, termCount int) bool {
	expectedDistance := termCount - 1
	actualDistance := end.GetOffset() - start.GetOffset()
	return start.DocumentID == end.DocumentID && actualDistance == expectedDistance
}

// FindAllPhrases repeatedly calls NextPhrase from where the previous
// occurrence started until the index is exhausted, collecting every
// [start, end] pair found along the way.
func (idx *InvertedIndex) FindAllPhrases(query string, startPos Position) [][]Position {
	var allMatches [][]Position
	currentPos := BOFDocument

	for !currentPos.IsEnd() {
		phrasePositions := idx.NextPhrase(query, currentPos)
		phraseStart := phrasePositions[0]

		if !phraseStart.IsEnd() {
			allMatches = append(allMatches, phrasePositions)
		}

		currentPos = phraseStart
	}

	return allMatches
}

// Proximity search: a "cover" is the smallest range of positions in one
// document containing every token, in any order. NextCover finds the
// furthest occurrence of any token first (the cover's end), then walks
// backward to find each token's earliest occurrence still before that end
// (the cover's start). If the resulting start and end land in different
// documents, no single document covers every token within that window, and
// NextCover recurses from the candidate start.

// NextCover finds the next minimal cover of tokens after startPos.
func (idx *InvertedIndex) NextCover(tokens []string, startPos Position) []Position {
	coverEnd := idx.findCoverEnd(tokens, startPos)
	if coverEnd.IsEnd() {
		return []Position{EOFDocument, EOFDocument}
	}

	coverStart := idx.findCoverStart(tokens, coverEnd)

	if coverStart.DocumentID == coverEnd.DocumentID {
		return []Position{coverStart, coverEnd}
	}

	return idx.NextCover(tokens, coverStart)
}

// findCoverEnd returns the furthest of each token's next occurrence after
// startPos, or EOFDocument if any token has no further occurrence at all.
func (idx *InvertedIndex) findCoverEnd(tokens []string, startPos Position) Position {
	maxPos := startPos

	for _, token := range tokens {
		tokenPos, _ := idx.Next(token, startPos)
		if tokenPos.IsEnd() {
			return EOFDocument
		}
		if tokenPos.IsAfter(maxPos) {
			maxPos = tokenPos
		}
	}

	return maxPos
}

// findCoverStart returns the earliest of each token's occurrence at or
// before endPos. Searching from endPos.Offset+1 (rather than endPos
// itself) matters because Previous returns positions strictly before its
// search bound, and a token may occur exactly at endPos.
func (idx *InvertedIndex) findCoverStart(tokens []string, endPos Position) Position {
	minPos := BOFDocument

	searchBound := Position{
		DocumentID: endPos.DocumentID,
		Offset:     endPos.Offset + 1,
	}

	for _, token := range tokens {
		tokenPos, _ := idx.Previous(token, searchBound)
		if minPos.IsBeginning() || tokenPos.IsBefore(minPos) {
			minPos = tokenPos
		}
	}

	return minPos
}

// Match is one scored hit against the positional index: the internal
// docHandle it was found in, the cover/phrase positions that produced the
// score, and the score itself (BM25 or proximity, depending on caller).
type Match struct {
	DocID   docHandle
	Offsets []Position
	Score   float64
}

// GetKey returns a stable per-match identifier, used where callers need to
// deduplicate or cache by match identity rather than by score.
func (m *Match) GetKey() (string, error) {
	data, err := json.Marshal(m.DocID)
	if err != nil {
		return "", err
	}
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:]), nil
}

// calculateIDF returns a term's BM25 inverse document frequency:
//
//	IDF(term) = log((N - df + 0.5) / (df + 0.5) + 1)
//
// where N is the corpus size and df is the term's document frequency.
// df comes from the term's roaring bitmap cardinality rather than a skip
// list traversal — O(1) instead of O(postings), which matters for common
// terms with large posting lists.
func (idx *InvertedIndex) calculateIDF(term string) float64 {
	bitmap, exists := idx.DocBitmaps[term]
	if !exists {
		return 0.0
	}

	df := float64(bitmap.GetCardinality())
	if df == 0 {
		return 0.0
	}

	N := float64(idx.TotalDocs)
	return math.Log((N-df+0.5)/(df+0.5) + 1.0)
}

// countDocsInPostingList counts unique documents in a term's skip list by
// traversal, predating calculateIDF's bitmap-cardinality shortcut. Kept as
// a cross-check against the bitmap path; its own test exercises it
// directly rather than through any scoring hot path.
func (idx *InvertedIndex) countDocsInPostingList(skipList SkipList) int {
	uniqueDocs := make(map[docHandle]bool)

	current := skipList.Head.Tower[0]
	for current != nil {
		uniqueDocs[current.Key.GetDocumentID()] = true
		current = current.Tower[0]
	}

	return len(uniqueDocs)
}

// calculateBM25Score scores one document against queryTerms (query terms
// are NOT deduplicated — a term repeated in the query contributes its IDF
// term more than once, matching how a user typing the same word twice
// means it twice):
//
//	score = Σ_term IDF(term) * TF(term,doc)*(k1+1) / (TF(term,doc) + k1*(1-b+b*docLen/avgDocLen))
func (idx *InvertedIndex) calculateBM25Score(docID docHandle, queryTerms []string) float64 {
	docStats, exists := idx.DocStats[docID]
	if !exists {
		return 0.0
	}

	avgDocLen := float64(idx.TotalTerms) / float64(idx.TotalDocs)
	docLen := float64(docStats.Length)

	score := 0.0
	k1 := idx.BM25Params.K1
	b := idx.BM25Params.B

	for _, term := range queryTerms {
		idf := idx.calculateIDF(term)
		tf := float64(docStats.TermFreqs[term])

		if tf > 0 {
			numerator := tf * (k1 + 1)
			denominator := tf + k1*(1-b+b*(docLen/avgDocLen))
			score += idf * (numerator / denominator)
		}
	}

	return score
}

// RankBM25 tokenizes query, scores every document containing at least one
// query term, and returns the maxResults highest-scoring Matches sorted
// descending by score (ties broken by ascending caller-facing doc_id).
func (idx *InvertedIndex) RankBM25(query string, maxResults int) []Match {
	slog.Info("BM25 ranking", slog.String("query", query))

	tokens := AnalyzeWithConfig(query, idx.tokenizer)
	if len(tokens) == 0 {
		return []Match{}
	}

	slog.Info("search tokens", slog.String("tokens", fmt.Sprintf("%v", tokens)))

	candidates := idx.findCandidateDocuments(tokens)

	results := make([]Match, 0, len(candidates))
	for docID := range candidates {
		score := idx.calculateBM25Score(docID, tokens)

		if score > 0 {
			results = append(results, Match{
				DocID:   docID,
				Offsets: candidates[docID],
				Score:   score,
			})
		}
	}

	idx.sortMatchesByScore(results)

	return limitResults(results, maxResults)
}

// findCandidateDocuments returns every document containing at least one of
// tokens, mapped to the positions those tokens occurred at. Candidate
// document handles come from a bitmap union — O(1) per term — so only
// candidate documents' skip lists need a full positional traversal
// afterward, rather than every posting list regardless of relevance.
func (idx *InvertedIndex) findCandidateDocuments(tokens []string) map[docHandle][]Position {
	candidates := make(map[docHandle][]Position)

	candidateDocs := make(map[docHandle]bool)
	for _, token := range tokens {
		bitmap, exists := idx.DocBitmaps[token]
		if !exists {
			continue
		}

		iter := bitmap.Iterator()
		for iter.HasNext() {
			candidateDocs[docHandle(iter.Next())] = true
		}
	}

	for _, token := range tokens {
		skipList, exists := idx.getPostingList(token)
		if !exists {
			continue
		}

		current := skipList.Head.Tower[0]
		for current != nil {
			docID := current.Key.GetDocumentID()
			if candidateDocs[docID] {
				candidates[docID] = append(candidates[docID], current.Key)
			}
			current = current.Tower[0]
		}
	}

	return candidates
}

// sortMatchesByScore sorts matches by score in descending order (higher
// scores first), breaking ties by ascending caller-facing doc_id so that
// equal-score results — and the RRF rank each one feeds into — are
// deterministic run to run, mirroring the sparse index's Search order.
func (idx *InvertedIndex) sortMatchesByScore(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		iID, _ := idx.DocIDOf(matches[i].DocID)
		jID, _ := idx.DocIDOf(matches[j].DocID)
		return iID < jID
	})
}

// RankProximity scores documents by how tightly query terms cluster
// together — smaller covers score higher — rather than by BM25's
// frequency/rarity model. It walks every cover in the index from BOF to
// EOF via NextCover, accumulating 1/(coverWidth) per cover into whichever
// document the cover falls in, and flushes a Match each time the
// document changes.
func (idx *InvertedIndex) RankProximity(query string, maxResults int) []Match {
	slog.Info("proximity ranking", slog.String("query", query))

	tokens := AnalyzeWithConfig(query, idx.tokenizer)
	if len(tokens) == 0 {
		return []Match{}
	}

	slog.Info("search tokens", slog.String("tokens", fmt.Sprintf("%v", tokens)))

	results := idx.collectProximityMatches(tokens)
	idx.sortMatchesByScore(results)

	return limitResults(results, maxResults)
}

// collectProximityMatches walks every cover of tokens in document order,
// accumulating a running score per document and emitting a Match each
// time a cover belongs to a new document.
func (idx *InvertedIndex) collectProximityMatches(tokens []string) []Match {
	var matches []Match

	coverPositions := idx.NextCover(tokens, BOFDocument)
	coverStart, coverEnd := coverPositions[0], coverPositions[1]

	currentCandidate := []Position{coverStart, coverEnd}
	currentScore := 0.0

	for !coverStart.IsEnd() {
		if currentCandidate[0].DocumentID < coverStart.DocumentID {
			matches = append(matches, Match{
				DocID:   currentCandidate[0].GetDocumentID(),
				Offsets: currentCandidate,
				Score:   currentScore,
			})

			currentCandidate = []Position{coverStart, coverEnd}
			currentScore = 0
		}

		// 1/(distance+1): closer terms score higher; +1 avoids a
		// division by zero when a cover's start and end coincide.
		proximity := float64(coverEnd.Offset - coverStart.Offset + 1)
		currentScore += 1 / proximity

		coverPositions = idx.NextCover(tokens, coverStart)
		coverStart, coverEnd = coverPositions[0], coverPositions[1]
	}

	if !currentCandidate[0].IsEnd() {
		matches = append(matches, Match{
			DocID:   currentCandidate[0].GetDocumentID(),
			Offsets: currentCandidate,
			Score:   currentScore,
		})
	}

	return matches
}

// limitResults truncates matches to at most maxResults entries.
func limitResults(matches []Match, maxResults int) []Match {
	limit := int(math.Min(float64(maxResults), float64(len(matches))))
	return matches[:limit]
}

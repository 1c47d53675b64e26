package retrieval

import (
	"errors"
	"math"
	"math/rand"
)

// A skip list backs each term's positional postings: a probabilistic
// structure offering O(log n) search/insert with a much simpler
// implementation than a balanced tree, since there are no rotations to
// maintain — only a randomly chosen tower height per node.
//
// Level 0 holds every position in sorted order; each level above it holds
// roughly half the nodes of the level below, so a search starts at the top
// and drops down whenever it can't advance further — similar to binary
// search over a linked structure.

const MaxHeight = 32

// BOF and EOF bound every real position: BOF < any real Position < EOF,
// so callers never special-case "the list is empty" or "we fell off the
// end" — they just compare against these sentinels like any other Position.
var (
	EOF = math.Inf(1)
	BOF = math.Inf(-1)
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoElementFound = errors.New("no element found")
)

// Position locates one occurrence of a term: the internal docHandle it
// occurred in (see docids.go) and its 0-indexed offset within that
// document. Both fields are float64 rather than docHandle/int so that BOF
// and EOF — needed to bound phrase/proximity scans without a nil check at
// every step — can be represented as ±∞ alongside every real position.
// GetDocumentID/GetOffset truncate back to the concrete integer types
// callers actually want once a Position is known not to be a sentinel.
type Position struct {
	DocumentID float64
	Offset     float64
}

var (
	BOFDocument = Position{DocumentID: BOF, Offset: BOF}
	EOFDocument = Position{DocumentID: EOF, Offset: EOF}
)

// GetDocumentID returns the docHandle this position belongs to. It is the
// dense internal handle docIDTable assigned at AddDocument time, not the
// caller-facing doc_id string — callers needing the string form resolve it
// through InvertedIndex.DocIDOf.
func (p *Position) GetDocumentID() docHandle {
	return docHandle(p.DocumentID)
}

func (p *Position) GetOffset() int {
	return int(p.Offset)
}

func (p *Position) IsBeginning() bool {
	return p.Offset == BOF
}

func (p *Position) IsEnd() bool {
	return p.Offset == EOF
}

// IsBefore orders positions by DocumentID first, then by Offset within
// the same document.
func (p *Position) IsBefore(other Position) bool {
	if p.DocumentID < other.DocumentID {
		return true
	}
	return p.DocumentID == other.DocumentID && p.Offset < other.Offset
}

func (p *Position) IsAfter(other Position) bool {
	if p.DocumentID > other.DocumentID {
		return true
	}
	return p.DocumentID == other.DocumentID && p.Offset > other.Offset
}

func (p *Position) Equals(other Position) bool {
	return p.DocumentID == other.DocumentID && p.Offset == other.Offset
}

// Node is one entry in a skip list: a Position plus a tower of forward
// pointers, one per level the node was promoted to. Tower[0] always
// points to the next node in sorted order; Tower[k] for k>0 skips ahead
// past however many lower-level nodes didn't get promoted to level k.
type Node struct {
	Key   Position
	Tower [MaxHeight]*Node
}

// SkipList holds one term's positional postings. Head is a sentinel node
// that never stores real data; Height tracks the tallest tower currently
// in use so Search/Insert/Delete don't have to probe empty upper levels.
type SkipList struct {
	Head   *Node
	Height int
}

func NewSkipList() *SkipList {
	return &SkipList{
		Head:   &Node{},
		Height: 1,
	}
}

// Search walks from the top level down, advancing along each level as far
// as possible before dropping down, and returns both the exact-match node
// (nil if key isn't present) and the journey: the predecessor of key at
// every level. Insert, Delete, and FindLessThan all reuse the journey
// instead of re-searching.
func (sl *SkipList) Search(key Position) (*Node, [MaxHeight]*Node) {
	var journey [MaxHeight]*Node
	current := sl.Head

	for level := sl.Height - 1; level >= 0; level-- {
		current = sl.traverseLevel(current, key, level)
		journey[level] = current
	}

	next := current.Tower[0]
	if next != nil && next.Key.Equals(key) {
		return next, journey
	}
	return nil, journey
}

// traverseLevel advances from start along one level while the next node's
// key is still less than target, and returns the last node reached.
func (sl *SkipList) traverseLevel(start *Node, target Position, level int) *Node {
	current := start
	next := current.Tower[level]
	for next != nil {
		if sl.shouldAdvance(next.Key, target) {
			current = next
			next = current.Tower[level]
		} else {
			break
		}
	}
	return current
}

func (sl *SkipList) shouldAdvance(nodeKey, targetKey Position) bool {
	if nodeKey.Equals(targetKey) {
		return false
	}
	return nodeKey.IsBefore(targetKey)
}

// Find returns the stored key matching key exactly, or ErrKeyNotFound.
func (sl *SkipList) Find(key Position) (Position, error) {
	found, _ := sl.Search(key)
	if found == nil {
		return EOFDocument, ErrKeyNotFound
	}
	return found.Key, nil
}

// FindLessThan returns the largest stored key strictly less than key. The
// journey from Search already names this node as its level-0 predecessor.
func (sl *SkipList) FindLessThan(key Position) (Position, error) {
	_, journey := sl.Search(key)

	predecessor := journey[0]
	if predecessor == nil || predecessor == sl.Head {
		return BOFDocument, ErrNoElementFound
	}
	return predecessor.Key, nil
}

// FindGreaterThan returns the smallest stored key strictly greater than
// key, whether or not key itself is present.
func (sl *SkipList) FindGreaterThan(key Position) (Position, error) {
	found, journey := sl.Search(key)

	if found != nil {
		if found.Tower[0] != nil {
			return found.Tower[0].Key, nil
		}
		return EOFDocument, ErrNoElementFound
	}

	predecessor := journey[0]
	if predecessor != nil && predecessor.Tower[0] != nil {
		return predecessor.Tower[0].Key, nil
	}
	return EOFDocument, ErrNoElementFound
}

// Insert adds key to the skip list, or overwrites the existing node's key
// if key is already present (Position equality ignores everything but
// DocumentID/Offset, so this only matters if callers reuse a key value).
func (sl *SkipList) Insert(key Position) {
	found, journey := sl.Search(key)
	if found != nil {
		found.Key = key
		return
	}

	height := sl.randomHeight()
	newNode := &Node{Key: key}
	sl.linkNode(newNode, journey, height)

	if height > sl.Height {
		sl.Height = height
	}
}

// linkNode splices node into the list at every level below height, using
// journey's per-level predecessors computed by the preceding Search.
func (sl *SkipList) linkNode(node *Node, journey [MaxHeight]*Node, height int) {
	for level := 0; level < height; level++ {
		predecessor := journey[level]
		if predecessor == nil {
			predecessor = sl.Head
		}
		node.Tower[level] = predecessor.Tower[level]
		predecessor.Tower[level] = node
	}
}

// Delete removes key from the skip list, reporting whether it was present.
func (sl *SkipList) Delete(key Position) bool {
	found, journey := sl.Search(key)
	if found == nil {
		return false
	}

	for level := 0; level < sl.Height; level++ {
		if journey[level].Tower[level] != found {
			break
		}
		journey[level].Tower[level] = found.Tower[level]
	}

	sl.shrink()
	return true
}

// Last returns the largest key in the list by walking level 0 to its end.
func (sl *SkipList) Last() Position {
	current := sl.Head
	for next := current.Tower[0]; next != nil; next = next.Tower[0] {
		current = next
	}
	return current.Key
}

// shrink drops any top levels left empty by a Delete, so later searches
// don't probe levels with nothing on them.
func (sl *SkipList) shrink() {
	for level := sl.Height - 1; level >= 0; level-- {
		if sl.Head.Tower[level] == nil {
			sl.Height--
		} else {
			break
		}
	}
}

// randomHeight flips a fair coin until it comes up tails (or MaxHeight is
// reached), giving a geometric distribution over tower heights: height 1
// with probability 1/2, height 2 with probability 1/4, and so on. This is
// the randomization that keeps search/insert/delete at O(log n) on
// average without ever rebalancing.
//
// rand.Float64 draws from the package-level source, which the runtime
// auto-seeds once; reseeding per call (as from time.Now().UnixNano()) is
// both wasted work and a source of correlated heights when inserts land
// within the same clock tick.
func (sl *SkipList) randomHeight() int {
	height := 1
	for rand.Float64() < 0.5 && height < MaxHeight {
		height++
	}
	return height
}

// Iterator walks a skip list's level 0 in sorted order. Higher levels
// only exist to make Search fast; a full scan never needs them.
type Iterator struct {
	current *Node
}

func (sl *SkipList) Iterator() *Iterator {
	return &Iterator{current: sl.Head.Tower[0]}
}

func (it *Iterator) HasNext() bool {
	return it.current != nil && it.current.Tower[0] != nil
}

// Next advances to and returns the next position, or EOFDocument once the
// list is exhausted. Callers should check HasNext before calling Next.
func (it *Iterator) Next() Position {
	if it.current == nil {
		return EOFDocument
	}

	it.current = it.current.Tower[0]
	if it.current == nil {
		return EOFDocument
	}

	return it.current.Key
}

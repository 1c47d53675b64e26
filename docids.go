package retrieval

import "fmt"

// ═══════════════════════════════════════════════════════════════════════════════
// DOCUMENT IDENTITY
// ═══════════════════════════════════════════════════════════════════════════════
// Callers identify documents by an opaque string (whatever key their corpus
// uses — a URL, a UUID, a row id rendered as text). Internally the index
// keeps every posting, bitmap, and on-disk column keyed by a dense integer
// handle: bitmaps and skip lists are dramatically smaller and faster over a
// compact integer range than over arbitrary strings.
//
// docIDTable is the bridge between the two. It never reassigns or reuses a
// handle once given out, so a handle recorded in a posting list remains
// valid for the table's entire lifetime.
// ═══════════════════════════════════════════════════════════════════════════════

type docHandle = int

type docIDTable struct {
	byID     map[string]docHandle
	byHandle []string
}

func newDocIDTable() *docIDTable {
	return &docIDTable{
		byID:     make(map[string]docHandle),
		byHandle: make([]string, 0),
	}
}

// intern returns the handle for docID, assigning a new one if this is the
// first time docID has been seen. Re-interning an already-seen docID is an
// error: a corpus must not present the same document twice under one build.
func (t *docIDTable) intern(docID string) (docHandle, error) {
	if h, ok := t.byID[docID]; ok {
		return h, fmt.Errorf("document %q already indexed (handle %d)", docID, h)
	}
	h := len(t.byHandle)
	t.byID[docID] = h
	t.byHandle = append(t.byHandle, docID)
	return h, nil
}

func (t *docIDTable) handleOf(docID string) (docHandle, bool) {
	h, ok := t.byID[docID]
	return h, ok
}

func (t *docIDTable) docIDOf(h docHandle) (string, bool) {
	if h < 0 || h >= len(t.byHandle) {
		return "", false
	}
	return t.byHandle[h], true
}

func (t *docIDTable) len() int {
	return len(t.byHandle)
}

// all returns every known doc_id in handle order (0..n-1).
func (t *docIDTable) all() []string {
	out := make([]string, len(t.byHandle))
	copy(out, t.byHandle)
	return out
}

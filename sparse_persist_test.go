package retrieval

import (
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring"
)

func newTestBitmap(values ...uint32) *roaring.Bitmap {
	bitmap := roaring.NewBitmap()
	for _, v := range values {
		bitmap.Add(v)
	}
	return bitmap
}

func TestSparseIndex_SaveRejectsBuildingPhase(t *testing.T) {
	si := NewSparseIndex()
	si.AddBatch([]string{"doc1"}, []SparseVector{{{TermID: 1, Weight: 1}}})

	dir := filepath.Join(t.TempDir(), "sparse")
	if err := si.Save(dir); err != ErrInvalidState {
		t.Errorf("Save() on a building index = %v, want %v", err, ErrInvalidState)
	}
}

func TestSparseIndex_SaveAndLoadRoundTrip(t *testing.T) {
	si := NewSparseIndex()
	docs := []string{"doc1", "doc2"}
	vectors := []SparseVector{
		{{TermID: 1, Weight: 2.0}, {TermID: 2, Weight: 1.0}},
		{{TermID: 1, Weight: 0.5}},
	}
	if err := si.AddBatch(docs, vectors); err != nil {
		t.Fatalf("AddBatch() error = %v", err)
	}
	if err := si.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	dir := filepath.Join(t.TempDir(), "sparse")
	if err := si.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, found, err := LoadSparseIndex(dir)
	if err != nil {
		t.Fatalf("LoadSparseIndex() error = %v", err)
	}
	if !found {
		t.Fatal("LoadSparseIndex() found = false, want true")
	}
	if loaded.Phase() != "loaded" {
		t.Errorf("loaded.Phase() = %q, want loaded", loaded.Phase())
	}
	if loaded.DocCount() != 2 {
		t.Errorf("loaded.DocCount() = %d, want 2", loaded.DocCount())
	}

	results := loaded.Search(SparseVector{{TermID: 1, Weight: 1.0}}, 10)
	if len(results) != 2 {
		t.Fatalf("Search() on loaded index returned %d results, want 2", len(results))
	}
	if results[0].DocID != "doc1" {
		t.Errorf("top result = %q, want doc1 (stronger weight on term 1)", results[0].DocID)
	}
}

func TestLoadSparseIndex_MissingDirIsNotAnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	si, found, err := LoadSparseIndex(dir)
	if err != nil {
		t.Fatalf("LoadSparseIndex() on a missing dir error = %v, want nil", err)
	}
	if found {
		t.Error("LoadSparseIndex() found = true for a missing directory, want false")
	}
	if si != nil {
		t.Error("LoadSparseIndex() returned a non-nil index for a missing directory")
	}
}

func TestSparseIndex_TermKeyRoundTrip(t *testing.T) {
	for _, termID := range []uint32{0, 1, 42, 1 << 20} {
		key := termKey(termID)
		if decodeTermKey(key) != termID {
			t.Errorf("decodeTermKey(termKey(%d)) = %d, want %d", termID, decodeTermKey(key), termID)
		}
	}
}

func TestEncodeDecodePosting_RoundTrip(t *testing.T) {
	bitmap := newTestBitmap(3, 7, 12)
	posting := &sparsePosting{bitmap: bitmap, weights: []float32{1.5, 2.25, 0.125}}

	data, err := encodePosting(posting)
	if err != nil {
		t.Fatalf("encodePosting() error = %v", err)
	}

	decoded, err := decodePosting(data)
	if err != nil {
		t.Fatalf("decodePosting() error = %v", err)
	}
	if !decoded.bitmap.Equals(posting.bitmap) {
		t.Errorf("decoded bitmap = %v, want %v", decoded.bitmap.ToArray(), posting.bitmap.ToArray())
	}
	if len(decoded.weights) != len(posting.weights) {
		t.Fatalf("decoded weights len = %d, want %d", len(decoded.weights), len(posting.weights))
	}
	for i, w := range posting.weights {
		if decoded.weights[i] != w {
			t.Errorf("decoded.weights[%d] = %v, want %v", i, decoded.weights[i], w)
		}
	}
}

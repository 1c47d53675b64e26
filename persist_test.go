package retrieval

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInvertedIndex_SaveRejectsBuildingPhase(t *testing.T) {
	idx := NewInvertedIndex()
	addDoc(t, idx, "doc1", "quick brown fox")

	path := filepath.Join(t.TempDir(), "index.blz")
	if err := idx.Save(path); err != ErrInvalidState {
		t.Errorf("Save() on a building index = %v, want %v", err, ErrInvalidState)
	}
}

func TestInvertedIndex_SaveAndLoadRoundTrip(t *testing.T) {
	idx := NewInvertedIndex()
	addDoc(t, idx, "doc1", "the quick brown fox")
	addDoc(t, idx, "doc2", "the lazy dog sleeps")
	if err := idx.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "index.blz")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, found, err := LoadIndex(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if !found {
		t.Fatal("LoadIndex() found = false, want true")
	}
	if loaded.Phase() != "loaded" {
		t.Errorf("loaded.Phase() = %q, want loaded", loaded.Phase())
	}
	if loaded.DocCount() != idx.DocCount() {
		t.Errorf("loaded.DocCount() = %d, want %d", loaded.DocCount(), idx.DocCount())
	}

	matches := loaded.RankBM25("quick fox", 10)
	if len(matches) == 0 {
		t.Fatal("RankBM25() on a loaded index returned no matches")
	}
	docID, ok := loaded.DocIDOf(matches[0].DocID)
	if !ok || docID != "doc1" {
		t.Errorf("top match doc_id = %q, want doc1", docID)
	}
}

func TestLoadIndex_MissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.blz")
	idx, found, err := LoadIndex(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadIndex() on a missing file error = %v, want nil", err)
	}
	if found {
		t.Error("LoadIndex() found = true for a missing file, want false")
	}
	if idx != nil {
		t.Error("LoadIndex() returned a non-nil index for a missing file")
	}
}

func TestLoadIndex_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.blz")
	writeFile(t, path, []byte("NOTZ1xx garbage bytes that are not a container"))

	_, _, err := LoadIndex(path, DefaultConfig())
	if !errors.Is(err, ErrCorruptArtifact) {
		t.Errorf("LoadIndex() on bad magic = %v, want ErrCorruptArtifact", err)
	}
}

func TestLoadIndex_RejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.blz")
	writeFile(t, path, []byte("BL"))

	_, _, err := LoadIndex(path, DefaultConfig())
	if !errors.Is(err, ErrCorruptArtifact) {
		t.Errorf("LoadIndex() on a truncated header = %v, want ErrCorruptArtifact", err)
	}
}

func TestLoadIndex_RejectsFingerprintMismatch(t *testing.T) {
	idx := NewInvertedIndex()
	addDoc(t, idx, "doc1", "quick brown fox")
	if err := idx.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "index.blz")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mismatched := AnalyzerConfig{MinTokenLength: 3, EnableStemming: true, EnableStopwords: true}
	_, _, err := LoadIndex(path, mismatched)
	if !errors.Is(err, ErrCorruptArtifact) {
		t.Errorf("LoadIndex() with mismatched tokenizer config = %v, want ErrCorruptArtifact", err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing test fixture %s: %v", path, err)
	}
}

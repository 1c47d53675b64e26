package retrieval

import "testing"

func TestStubEncoder_Deterministic(t *testing.T) {
	enc := NewStubEncoder(1024)

	v1, err := enc.Encode("the quick brown fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	v2, err := enc.Encode("the quick brown fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	m1 := termWeights(v1)
	m2 := termWeights(v2)
	if len(m1) != len(m2) {
		t.Fatalf("Encode() produced %d terms then %d terms for identical input", len(m1), len(m2))
	}
	for termID, w := range m1 {
		if m2[termID] != w {
			t.Errorf("term %d weight = %v on first call, %v on second", termID, w, m2[termID])
		}
	}
}

func TestStubEncoder_StopwordsOnlyTextProducesEmptyVector(t *testing.T) {
	enc := NewStubEncoder(1024)
	v, err := enc.Encode("the a an")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(v) != 0 {
		t.Errorf("Encode(stopwords-only) = %v, want empty vector", v)
	}
}

func TestStubEncoder_TermIDsWithinDimension(t *testing.T) {
	enc := NewStubEncoder(64)
	v, err := enc.Encode("quick brown fox jumps over lazy dog")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(v) == 0 {
		t.Fatal("Encode() produced no terms for non-stopword text")
	}
	for _, term := range v {
		if term.TermID >= 64 {
			t.Errorf("term_id %d out of [0, 64) range", term.TermID)
		}
		if term.Weight <= 0 {
			t.Errorf("term_id %d weight = %v, want > 0", term.TermID, term.Weight)
		}
	}
}

func TestStubEncoder_RepeatedTermGetsHigherWeight(t *testing.T) {
	enc := NewStubEncoder(4096)

	once, err := enc.Encode("fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	repeated, err := enc.Encode("fox fox fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(once) != 1 || len(repeated) != 1 {
		t.Fatalf("expected a single term_id for a repeated single word, got %v and %v", once, repeated)
	}
	if once[0].TermID != repeated[0].TermID {
		t.Fatalf("same stemmed token hashed to different term_ids: %d vs %d", once[0].TermID, repeated[0].TermID)
	}
	if repeated[0].Weight <= once[0].Weight {
		t.Errorf("repeated[0].Weight = %v, want > once[0].Weight = %v", repeated[0].Weight, once[0].Weight)
	}
}

func TestStubEncoder_EncodeBatchMatchesEncode(t *testing.T) {
	enc := NewStubEncoder(1024)
	texts := []string{"quick brown fox", "lazy dog", ""}

	batch, err := enc.EncodeBatch(texts)
	if err != nil {
		t.Fatalf("EncodeBatch() error = %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("EncodeBatch() returned %d vectors, want %d", len(batch), len(texts))
	}

	for i, text := range texts {
		single, err := enc.Encode(text)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", text, err)
		}
		if len(single) != len(batch[i]) {
			t.Errorf("EncodeBatch()[%d] has %d terms, Encode(%q) has %d", i, len(batch[i]), text, len(single))
		}
	}
}

func termWeights(v SparseVector) map[uint32]float32 {
	m := make(map[uint32]float32, len(v))
	for _, term := range v {
		m[term.TermID] = term.Weight
	}
	return m
}

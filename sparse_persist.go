package retrieval

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/RoaringBitmap/roaring"
	"github.com/dgraph-io/badger/v4"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPARSE INDEX PERSISTENCE
// ═══════════════════════════════════════════════════════════════════════════════
// The sparse index is directory-based rather than a single file: each
// term_id's posting is one Badger key, and a small manifest record (the
// doc_id table) lives under a reserved key. Badger's LSM-tree gives this
// the crash-safe, append-mostly write path a growing vocabulary of sparse
// postings wants, without hand-rolling a WAL.
// ═══════════════════════════════════════════════════════════════════════════════

var manifestKey = []byte("\x00manifest")

type sparseManifest struct {
	DocIDs []string
}

// Save persists a built sparse index to a Badger directory at dir.
func (si *SparseIndex) Save(dir string) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.phase == phaseBuilding {
		return ErrInvalidState
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(txn *badger.Txn) error {
		var manifestBuf bytes.Buffer
		if err := gob.NewEncoder(&manifestBuf).Encode(sparseManifest{DocIDs: si.ids.all()}); err != nil {
			return err
		}
		if err := txn.Set(manifestKey, manifestBuf.Bytes()); err != nil {
			return err
		}

		for termID, posting := range si.postings {
			key := termKey(termID)
			val, err := encodePosting(posting)
			if err != nil {
				return err
			}
			if err := txn.Set(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSparseIndex opens a sparse index directory saved by Save. A missing
// directory is not an error — it returns (nil, false, nil) so callers can
// degrade gracefully, exactly like LoadIndex for the positional index.
func LoadSparseIndex(dir string) (*SparseIndex, bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	defer db.Close()

	si := NewSparseIndex()
	si.postings = make(map[uint32]*sparsePosting)

	err = db.View(func(txn *badger.Txn) error {
		manifestItem, err := txn.Get(manifestKey)
		if err != nil {
			return fmt.Errorf("missing manifest: %w", err)
		}
		var manifest sparseManifest
		if err := manifestItem.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&manifest)
		}); err != nil {
			return err
		}
		for _, docID := range manifest.DocIDs {
			if _, err := si.ids.intern(docID); err != nil {
				return err
			}
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if bytes.Equal(key, manifestKey) {
				continue
			}
			termID := decodeTermKey(key)
			err := item.Value(func(val []byte) error {
				posting, err := decodePosting(val)
				if err != nil {
					return err
				}
				si.postings[termID] = posting
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}

	si.staging = nil
	si.phase = phaseLoaded
	return si, true, nil
}

func termKey(termID uint32) []byte {
	key := make([]byte, 5)
	key[0] = 1
	binary.BigEndian.PutUint32(key[1:], termID)
	return key
}

func decodeTermKey(key []byte) uint32 {
	return binary.BigEndian.Uint32(key[1:])
}

func encodePosting(p *sparsePosting) ([]byte, error) {
	bitmapBytes, err := p.bitmap.ToBytes()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(bitmapBytes))); err != nil {
		return nil, err
	}
	buf.Write(bitmapBytes)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(p.weights))); err != nil {
		return nil, err
	}
	for _, w := range p.weights {
		if err := binary.Write(&buf, binary.LittleEndian, w); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodePosting(data []byte) (*sparsePosting, error) {
	offset := 0
	bitmapLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	bitmap := roaring.NewBitmap()
	if err := bitmap.UnmarshalBinary(data[offset : offset+bitmapLen]); err != nil {
		return nil, err
	}
	offset += bitmapLen

	numWeights := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	weights := make([]float32, numWeights)
	for i := 0; i < numWeights; i++ {
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		weights[i] = math.Float32frombits(bits)
		offset += 4
	}

	return &sparsePosting{bitmap: bitmap, weights: weights}, nil
}

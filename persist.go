package retrieval

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ON-DISK CONTAINER FORMAT
// ═══════════════════════════════════════════════════════════════════════════════
// The byte layout Encode/Decode produce (see serialization.go) has no
// versioning or self-description of its own — it's a trusting, internal
// format. Save/Load wrap it in a small container that makes a stale or
// foreign file detectable before we start trusting its bytes:
//
//	[magic: 4 bytes "BLZ1"]
//	[version: uint16]
//	[fingerprint: length-prefixed string]
//	[doc id table: uint32 count, then length-prefixed strings in handle order]
//	[payload: length-prefixed bytes — the Encode() output]
//
// The fingerprint ties a saved index to the tokenizer configuration (and
// pipeline version) it was built under; Load refuses to open a file whose
// fingerprint doesn't match the running binary's tokenizer, since a silent
// mismatch there would mean queries tokenize differently than the documents
// did at index time.
// ═══════════════════════════════════════════════════════════════════════════════

const (
	indexMagic   = "BLZ1"
	indexVersion = uint16(1)
)

var (
	ErrCorruptArtifact = errors.New("index artifact is corrupt or was built under an incompatible configuration")
)

// Save persists a finalized or loaded index to path. It refuses to save an
// index still in its building phase: a correct avgdl/corpus-stats snapshot
// only exists once Finalize has run.
func (idx *InvertedIndex) Save(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.phase == phaseBuilding {
		return ErrInvalidState
	}

	buf := new(bytes.Buffer)
	buf.WriteString(indexMagic)
	if err := binary.Write(buf, binary.LittleEndian, indexVersion); err != nil {
		return err
	}
	if err := writeLPString(buf, idx.tokenizer.Fingerprint()); err != nil {
		return err
	}

	ids := idx.ids.all()
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	for _, docID := range ids {
		if err := writeLPString(buf, docID); err != nil {
			return err
		}
	}

	payload, err := idx.Encode()
	if err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	if _, err := buf.Write(payload); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadIndex reads a saved index from path. A missing file is not an error —
// it reports (nil, false, nil) so callers can degrade gracefully when an
// artifact simply hasn't been built yet. A present-but-unreadable or
// fingerprint-mismatched file is reported as ErrCorruptArtifact.
func LoadIndex(path string, tokenizer AnalyzerConfig) (*InvertedIndex, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if len(data) < len(indexMagic)+2 {
		return nil, false, fmt.Errorf("%w: truncated header", ErrCorruptArtifact)
	}
	if string(data[:len(indexMagic)]) != indexMagic {
		return nil, false, fmt.Errorf("%w: bad magic", ErrCorruptArtifact)
	}
	offset := len(indexMagic)

	version := binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2
	if version != indexVersion {
		return nil, false, fmt.Errorf("%w: unsupported version %d", ErrCorruptArtifact, version)
	}

	fingerprint, offset, err := readLPString(data, offset)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if want := tokenizer.Fingerprint(); fingerprint != want {
		return nil, false, fmt.Errorf("%w: tokenizer fingerprint %s does not match running configuration %s", ErrCorruptArtifact, fingerprint, want)
	}

	if offset+4 > len(data) {
		return nil, false, fmt.Errorf("%w: truncated doc id table", ErrCorruptArtifact)
	}
	numIDs := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	ids := newDocIDTable()
	for i := 0; i < numIDs; i++ {
		var docID string
		docID, offset, err = readLPString(data, offset)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
		if _, err := ids.intern(docID); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
	}

	if offset+4 > len(data) {
		return nil, false, fmt.Errorf("%w: truncated payload length", ErrCorruptArtifact)
	}
	payloadLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+payloadLen > len(data) {
		return nil, false, fmt.Errorf("%w: truncated payload", ErrCorruptArtifact)
	}
	payload := data[offset : offset+payloadLen]

	idx := NewInvertedIndex()
	idx.tokenizer = tokenizer
	idx.ids = ids
	if err := idx.Decode(payload); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	idx.rebuildBitmaps()
	idx.phase = phaseLoaded

	return idx, true, nil
}

// rebuildBitmaps recomputes DocBitmaps from PostingsList. The container
// format doesn't serialize roaring bitmaps directly — they're rebuilt on
// load from the positional postings, which are already the source of
// truth for "does this document contain this term".
func (idx *InvertedIndex) rebuildBitmaps() {
	idx.DocBitmaps = make(map[string]*roaring.Bitmap, len(idx.PostingsList))
	for term, skipList := range idx.PostingsList {
		bitmap := roaring.NewBitmap()
		current := skipList.Head.Tower[0]
		for current != nil {
			bitmap.Add(uint32(current.Key.GetDocumentID()))
			current = current.Tower[0]
		}
		idx.DocBitmaps[term] = bitmap
	}
}

func writeLPString(buf *bytes.Buffer, s string) error {
	data := []byte(s)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := buf.Write(data)
	return err
}

func readLPString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", offset, fmt.Errorf("truncated string length")
	}
	length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+length > len(data) {
		return "", offset, fmt.Errorf("truncated string body")
	}
	return string(data[offset : offset+length]), offset + length, nil
}

package retrieval

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Binary (not JSON) encoding for the positional index: smaller on disk,
// faster to parse, and able to preserve the skip list's tower structure
// exactly. Skip list nodes are linked by in-memory pointers, which are
// meaningless once reloaded into a different process — so encoding first
// assigns every node a stable sequential index and rewrites its tower as
// indices into that numbering rather than as pointers.
//
// Encode writes, in order: a header (corpus stats + BM25 params), one
// docHandle/length/term-frequency record per document, then one
// term/positions/tower record per posting list. persist.go wraps this
// payload with the format's magic/version header and the tokenizer
// fingerprint; this file only knows about the postings themselves.

// Encode serializes the inverted index, including its BM25 statistics,
// to the binary posting-list format persist.go stores on disk.
func (idx *InvertedIndex) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := idx.encodeHeader(buf); err != nil {
		return nil, err
	}
	if err := idx.encodeDocStats(buf); err != nil {
		return nil, err
	}

	encoder := newIndexEncoder(buf)
	for term, skipList := range idx.PostingsList {
		if err := encoder.encodeTerm(term, skipList); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func (idx *InvertedIndex) encodeHeader(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(idx.TotalDocs)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(idx.TotalTerms)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, idx.BM25Params.K1); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, idx.BM25Params.B); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, uint32(len(idx.DocStats)))
}

// encodeDocStats writes one record per document: its docHandle, length in
// tokens, and per-term frequencies — the inputs RankBM25 needs without
// re-walking every posting list at query time.
func (idx *InvertedIndex) encodeDocStats(buf *bytes.Buffer) error {
	for _, docStats := range idx.DocStats {
		if err := binary.Write(buf, binary.LittleEndian, uint32(docStats.DocID)); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(docStats.Length)); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(docStats.TermFreqs))); err != nil {
			return err
		}

		for term, freq := range docStats.TermFreqs {
			termBytes := []byte(term)
			if err := binary.Write(buf, binary.LittleEndian, uint32(len(termBytes))); err != nil {
				return err
			}
			if _, err := buf.Write(termBytes); err != nil {
				return err
			}
			if err := binary.Write(buf, binary.LittleEndian, uint32(freq)); err != nil {
				return err
			}
		}
	}

	return nil
}

// indexEncoder accumulates posting-list bytes into buffer across however
// many encodeTerm calls the caller makes.
type indexEncoder struct {
	buffer *bytes.Buffer
}

func newIndexEncoder(buffer *bytes.Buffer) *indexEncoder {
	return &indexEncoder{buffer: buffer}
}

// encodeTerm writes one posting list: the term string, its nodes'
// (docHandle, offset) positions, then the tower structure linking them.
func (e *indexEncoder) encodeTerm(term string, skipList SkipList) error {
	if err := e.writeString(term); err != nil {
		return err
	}

	nodeMap := e.buildNodeIndexMap(skipList)

	nodeData := e.encodeNodePositions(skipList)
	if err := e.writeBytes(nodeData); err != nil {
		return err
	}

	return e.encodeTowerStructure(skipList, nodeMap)
}

// writeString writes a length-prefixed string: [uint32 length][bytes].
func (e *indexEncoder) writeString(s string) error {
	data := []byte(s)
	if err := binary.Write(e.buffer, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := e.buffer.Write(data)
	return err
}

func (e *indexEncoder) writeBytes(data []byte) error {
	if err := binary.Write(e.buffer, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := e.buffer.Write(data)
	return err
}

// buildNodeIndexMap assigns every node in skipList a stable sequential
// index (1-based; 0 means "no node" in the tower encoding), keyed by its
// (docHandle, offset) position so the tower pass can look pointers back up
// by value instead of by address.
func (e *indexEncoder) buildNodeIndexMap(skipList SkipList) map[nodePosition]int {
	nodeMap := make(map[nodePosition]int)
	current := skipList.Head
	index := 1

	for current != nil {
		pos := nodePosition{
			DocHandle: docHandle(current.Key.DocumentID),
			Offset:    int32(current.Key.Offset),
		}
		nodeMap[pos] = index
		index++
		current = current.Tower[0]
	}

	return nodeMap
}

// encodeNodePositions writes every node's (docHandle, offset) pair, in
// level-0 order, as consecutive int32 pairs.
func (e *indexEncoder) encodeNodePositions(skipList SkipList) []byte {
	buf := new(bytes.Buffer)
	current := skipList.Head

	for current != nil {
		binary.Write(buf, binary.LittleEndian, int32(current.Key.DocumentID))
		binary.Write(buf, binary.LittleEndian, int32(current.Key.Offset))
		current = current.Tower[0]
	}

	return buf.Bytes()
}

// encodeTowerStructure writes, per node in level-0 order, the tower of
// indices (from nodeMap) that node's Tower pointers resolve to.
func (e *indexEncoder) encodeTowerStructure(skipList SkipList, nodeMap map[nodePosition]int) error {
	current := skipList.Head

	for current != nil {
		towerData := e.encodeTowerForNode(current, nodeMap)
		if err := e.writeBytes(towerData); err != nil {
			return err
		}
		current = current.Tower[0]
	}

	return nil
}

// encodeTowerForNode writes node's non-nil tower levels as uint16 indices;
// an empty tower is written as a single zero.
func (e *indexEncoder) encodeTowerForNode(node *Node, nodeMap map[nodePosition]int) []byte {
	buf := new(bytes.Buffer)

	towerIndices := e.collectTowerIndices(node, nodeMap)
	if len(towerIndices) == 0 {
		binary.Write(buf, binary.LittleEndian, uint16(0))
	} else {
		for _, index := range towerIndices {
			binary.Write(buf, binary.LittleEndian, uint16(index))
		}
	}

	return buf.Bytes()
}

// collectTowerIndices walks node's tower from level 0 upward until the
// first nil pointer, resolving each target through nodeMap.
func (e *indexEncoder) collectTowerIndices(node *Node, nodeMap map[nodePosition]int) []int {
	var indices []int

	for level := 0; level < MaxHeight; level++ {
		if node.Tower[level] == nil {
			break
		}

		pos := nodePosition{
			DocHandle: docHandle(node.Tower[level].Key.DocumentID),
			Offset:    int32(node.Tower[level].Key.Offset),
		}
		indices = append(indices, nodeMap[pos])
	}

	return indices
}

// nodePosition is a by-value key identifying a skip list node across the
// encode/decode boundary, where its real identity (a pointer) no longer
// means anything. DocHandle is the same dense int docIDTable hands out at
// AddDocument time, just narrowed to int32 for compact on-disk storage.
type nodePosition struct {
	DocHandle docHandle
	Offset    int32
}

// Decode reconstructs an inverted index, including its BM25 statistics
// and posting lists, from the format Encode produces.
func (idx *InvertedIndex) Decode(data []byte) error {
	offset := 0

	newOffset, err := idx.decodeHeader(data, offset)
	if err != nil {
		return err
	}
	offset = newOffset

	newOffset, err = idx.decodeDocStats(data, offset)
	if err != nil {
		return err
	}
	offset = newOffset

	decoder := newIndexDecoder(data, offset)
	recoveredIndex := make(map[string]SkipList)

	for !decoder.isComplete() {
		term, skipList, err := decoder.decodeTerm()
		if err != nil {
			return err
		}
		recoveredIndex[term] = skipList
	}

	idx.PostingsList = recoveredIndex
	idx.rebuildBitmaps()
	return nil
}

func (idx *InvertedIndex) decodeHeader(data []byte, offset int) (int, error) {
	idx.TotalDocs = int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	idx.TotalTerms = int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
	offset += 8

	idx.BM25Params.K1 = math.Float64frombits(binary.LittleEndian.Uint64(data[offset : offset+8]))
	offset += 8

	idx.BM25Params.B = math.Float64frombits(binary.LittleEndian.Uint64(data[offset : offset+8]))
	offset += 8

	return offset, nil
}

func (idx *InvertedIndex) decodeDocStats(data []byte, offset int) (int, error) {
	numDocs := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	idx.DocStats = make(map[int]DocumentStats, numDocs)

	for i := 0; i < numDocs; i++ {
		docID := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		numTerms := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		docStats := DocumentStats{
			DocID:     docID,
			Length:    length,
			TermFreqs: make(map[string]int, numTerms),
		}

		for j := 0; j < numTerms; j++ {
			termLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4

			term := string(data[offset : offset+termLen])
			offset += termLen

			freq := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4

			docStats.TermFreqs[term] = freq
		}

		idx.DocStats[docID] = docStats
	}

	return offset, nil
}

// indexDecoder tracks the read position across the decodeTerm calls
// Decode makes until the buffer is exhausted.
type indexDecoder struct {
	data   []byte
	offset int
}

func newIndexDecoder(data []byte, offset int) *indexDecoder {
	return &indexDecoder{data: data, offset: offset}
}

func (d *indexDecoder) isComplete() bool {
	return d.offset >= len(d.data)
}

// decodeTerm reads one posting list: the term, its nodes' positions, then
// the tower structure reconnecting those nodes into a SkipList.
func (d *indexDecoder) decodeTerm() (string, SkipList, error) {
	term, err := d.readString()
	if err != nil {
		return "", SkipList{}, err
	}

	nodeMap, err := d.decodeNodePositions()
	if err != nil {
		return "", SkipList{}, err
	}

	height, err := d.decodeTowerStructure(nodeMap)
	if err != nil {
		return "", SkipList{}, err
	}

	skipList := SkipList{
		Head:   nodeMap[1],
		Height: height,
	}

	return term, skipList, nil
}

func (d *indexDecoder) readString() (string, error) {
	length := int(binary.LittleEndian.Uint32(d.data[d.offset : d.offset+4]))
	d.offset += 4

	str := string(d.data[d.offset : d.offset+length])
	d.offset += length

	return str, nil
}

// decodeNodePositions reads the (docHandle, offset) pairs Encode wrote
// and allocates one bare Node per pair, numbered 1..n in level-0 order.
// Their towers are still unset — decodeTowerStructure links them next.
func (d *indexDecoder) decodeNodePositions() (map[int]*Node, error) {
	dataLength := int(binary.LittleEndian.Uint32(d.data[d.offset : d.offset+4]))
	d.offset += 4

	nodeMap := make(map[int]*Node)
	nodeIndex := 1

	numValues := dataLength / 4

	for i := 0; i < numValues; i += 2 {
		docID := int32(binary.LittleEndian.Uint32(d.data[d.offset : d.offset+4]))
		d.offset += 4

		offset := int32(binary.LittleEndian.Uint32(d.data[d.offset : d.offset+4]))
		d.offset += 4

		node := &Node{
			Key: Position{
				DocumentID: float64(docID),
				Offset:     float64(offset),
			},
		}

		nodeMap[nodeIndex] = node
		nodeIndex++
	}

	return nodeMap, nil
}

// decodeTowerStructure reads each node's tower indices and relinks the
// Node pointers nodeMap holds, returning the tallest tower seen.
func (d *indexDecoder) decodeTowerStructure(nodeMap map[int]*Node) (int, error) {
	maxHeight := 1
	nodeCount := len(nodeMap)

	for nodeIndex := 1; nodeIndex <= nodeCount; nodeIndex++ {
		towerLength := int(binary.LittleEndian.Uint32(d.data[d.offset : d.offset+4]))
		d.offset += 4

		numIndices := towerLength / 2

		for level := 0; level < numIndices; level++ {
			targetIndex := int(binary.LittleEndian.Uint16(d.data[d.offset : d.offset+2]))
			d.offset += 2

			if targetIndex != 0 {
				nodeMap[nodeIndex].Tower[level] = nodeMap[targetIndex]
				if level+1 > maxHeight {
					maxHeight = level + 1
				}
			}
		}
	}

	return maxHeight, nil
}

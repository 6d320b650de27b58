package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/hyperjump/tanya/pkg/utils"
)

// memoryIndexMagic identifies files written by MemoryIndex.Save.
var memoryIndexMagic = [4]byte{'T', 'N', 'Y', 'X'}

const (
	memoryIndexVersion    = 1
	memoryIndexHeaderSize = 4 + 4 + 4 + 8 // magic, version, dimension, count
)

// MemoryIndex is a flat index with brute-force inner product search.
// Search pads results with NoLabel entries when k exceeds the index size, the same
// way a FAISS flat index does.
type MemoryIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an empty in-memory index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the fixed vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors. Either all vectors are appended or none are.
func (m *MemoryIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != m.dimensions {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(vec), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vec := range vectors {
		cp := make([]float32, m.dimensions)
		copy(cp, vec)
		m.vectors = append(m.vectors, cp)
	}
	return nil
}

// Search returns exactly k results ordered by descending inner product; equal scores
// keep insertion order. Slots beyond the index size carry NoLabel.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make([]*VectorResult, len(m.vectors))
	for i, vec := range m.vectors {
		scores[i] = &VectorResult{Label: int64(i), Score: InnerProduct(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	results := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		if i < len(scores) {
			results[i] = scores[i]
			continue
		}
		results[i] = &VectorResult{Label: NoLabel, Score: -math.MaxFloat32}
	}
	return results, nil
}

// Reset removes all vectors, keeping the dimension.
func (m *MemoryIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make([][]float32, 0)
	return nil
}

// Save writes the index to path. Format (little endian): magic "TNYX", version (4),
// dimension (4), count (8), count*dimension float32 values, then a CRC-32 of all
// preceding bytes. The file is written to a temp file and renamed into place.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(memoryIndexHeaderSize + len(m.vectors)*m.dimensions*4 + 4)
	buf.Write(memoryIndexMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint32(memoryIndexVersion))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(m.dimensions))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(m.vectors)))
	for _, vec := range m.vectors {
		buf.Write(float32SliceToBytes(vec))
	}
	_ = binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes()))
	return utils.WriteFileAtomic(path, buf.Bytes())
}

// Load replaces the index contents with the file at path. A missing file yields an
// error wrapping os.ErrNotExist; any decoding failure wraps ErrCorrupt.
func (m *MemoryIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}
	vectors, err := decodeMemoryIndex(data, m.dimensions)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = vectors
	return nil
}

func decodeMemoryIndex(data []byte, dimensions int) ([][]float32, error) {
	if len(data) < memoryIndexHeaderSize+4 {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[:4], memoryIndexMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != memoryIndexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	if dim != dimensions {
		return nil, fmt.Errorf("%w: file has dimension %d, index expects %d", ErrCorrupt, dim, dimensions)
	}
	n := binary.LittleEndian.Uint64(data[12:20])
	payload := body[memoryIndexHeaderSize:]
	if uint64(len(payload)) != n*uint64(dim)*4 {
		return nil, fmt.Errorf("%w: expected %d vectors, payload has %d bytes", ErrCorrupt, n, len(payload))
	}
	vectors := make([][]float32, n)
	stride := dim * 4
	for i := range vectors {
		vectors[i] = bytesToFloat32Slice(payload[i*stride : (i+1)*stride])
	}
	return vectors, nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

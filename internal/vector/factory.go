package vector

import (
	"errors"
	"fmt"
	"strings"
)

// IndexType names a VectorIndex implementation.
type IndexType string

const (
	// IndexTypeMemory is the pure Go flat index. Default.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is a FAISS IndexFlatIP. Needs libfaiss_c and -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// ErrUnknownIndexType is returned for an index type other than memory or faiss.
var ErrUnknownIndexType = errors.New("unknown vector index type")

// ParseIndexType normalizes a configured index type. The empty string means memory.
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", IndexTypeMemory:
		return IndexTypeMemory, nil
	case IndexTypeFAISS:
		return IndexTypeFAISS, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: memory, faiss)", ErrUnknownIndexType, s)
	}
}

// NewVectorIndex creates an empty index of the given type and dimension.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	t, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	if t == IndexTypeFAISS {
		return NewFAISSIndex(dimensions)
	}
	return NewMemoryIndex(dimensions)
}

// ResolveIndexType parses indexType and swaps faiss for memory when this
// binary was built without FAISS. fellBack reports whether the swap happened.
func ResolveIndexType(indexType string) (t IndexType, fellBack bool, err error) {
	t, err = ParseIndexType(indexType)
	if err != nil {
		return "", false, err
	}
	if t == IndexTypeFAISS && !IsFAISSAvailable() {
		return IndexTypeMemory, true, nil
	}
	return t, false, nil
}

// IsFAISSAvailable reports whether FAISS support is compiled in (-tags=faiss).
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}

//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatIP. FAISS assigns labels sequentially from 0,
// so labels are insertion positions without any extra mapping.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS inner product index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	index, err := newFlatIP(dimensions)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{index: index, dimensions: dimensions}, nil
}

func newFlatIP(dimensions int) (*C.FaissIndex, error) {
	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(unsafe.Pointer(flat)), nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors in one FAISS call.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ret := C.faiss_Index_add(f.index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns k results; FAISS fills missing slots with label -1.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	results := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		label := labels[i]
		if label < 0 {
			label = NoLabel
		}
		results[i] = &VectorResult{Label: label, Score: float64(distances[i])}
	}
	return results, nil
}

// Reset removes all vectors.
func (f *FAISSIndex) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	return nil
}

// Save writes the native FAISS index file to path via a temp file and rename.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmpPath := path + ".tmp"
	cPath := C.CString(tmpPath)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the index with the FAISS file at path.
func (f *FAISSIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("%w: %s", ErrCorrupt, faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has dimension %d, index expects %d", ErrCorrupt, d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int(C.faiss_Index_ntotal(f.index))
}

// Dimensions returns the fixed vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

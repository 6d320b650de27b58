package storage

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/tanya/internal/store"
)

// DiskUsage is the on-disk footprint of one tanya data set, in bytes.
type DiskUsage struct {
	Index    int64 `json:"index_bytes"`
	Metadata int64 `json:"metadata_bytes"`
	Registry int64 `json:"registry_bytes"`
	Keyword  int64 `json:"keyword_bytes"`
}

// Total sums every component.
func (u DiskUsage) Total() int64 {
	return u.Index + u.Metadata + u.Registry + u.Keyword
}

// MeasureDiskUsage sizes the vector store's two artifacts under storeDir, the
// SQLite registry at registryPath with its WAL and shared-memory files, and
// the keyword index directory. Absent artifacts count as zero; an empty path
// skips that component.
func MeasureDiskUsage(storeDir, registryPath, keywordDir string) (DiskUsage, error) {
	var u DiskUsage
	var err error
	if storeDir != "" {
		if u.Index, err = fileSize(filepath.Join(storeDir, store.IndexFileName)); err != nil {
			return DiskUsage{}, err
		}
		if u.Metadata, err = fileSize(filepath.Join(storeDir, store.MetadataFileName)); err != nil {
			return DiskUsage{}, err
		}
	}
	if registryPath != "" {
		for _, p := range []string{registryPath, registryPath + "-wal", registryPath + "-shm"} {
			n, err := fileSize(p)
			if err != nil {
				return DiskUsage{}, err
			}
			u.Registry += n
		}
	}
	if keywordDir != "" {
		if u.Keyword, err = treeSize(keywordDir); err != nil {
			return DiskUsage{}, err
		}
	}
	return u, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

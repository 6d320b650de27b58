package store

import "errors"

var (
	// ErrIndexInsertion is returned when Add cannot append: mismatched
	// lengths, wrong dimension or an index failure. Nothing is appended.
	ErrIndexInsertion = errors.New("index insertion failed")

	// ErrPersist is returned when writing the snapshot fails. The in-memory
	// state is kept.
	ErrPersist = errors.New("persist failed")

	// ErrPersistenceCorruption is returned by Open when the on-disk
	// artifacts exist but cannot be restored.
	ErrPersistenceCorruption = errors.New("persisted store is corrupted")

	// ErrInconsistent reports that texts, metadatas and the index diverged.
	ErrInconsistent = errors.New("store is internally inconsistent")

	// ErrNoEmbedder is returned when text must be embedded but no embedder was injected.
	ErrNoEmbedder = errors.New("no embedder configured")
)

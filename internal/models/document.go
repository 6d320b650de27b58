// Package models defines data structures shared by the store, ingestion,
// retrieval and API layers.
package models

import "time"

// ChunkMetadata describes where a stored chunk came from. DocumentID,
// ChunkIndex and Source are always set; Extra carries open-ended fields
// such as the document title.
type ChunkMetadata struct {
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Source     string            `json:"source"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Title returns the "title" extra field, if any.
func (m ChunkMetadata) Title() string {
	return m.Extra["title"]
}

// Document is a registry record for one ingested source. Its chunks occupy
// store positions [FirstPosition, FirstPosition+ChunkCount).
type Document struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Source        string    `json:"source" db:"source"`
	FirstPosition int       `json:"first_position" db:"first_position"`
	ChunkCount    int       `json:"chunk_count" db:"chunk_count"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	ModifiedAt    time.Time `json:"modified_at" db:"modified_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for ingesting raw text.
type DocumentInput struct {
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title,omitempty"`
	Source   string            `json:"source,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

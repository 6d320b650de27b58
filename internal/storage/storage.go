// Package storage keeps the document registry: one record per ingested
// source with the store positions its chunks occupy.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tanya/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Registry defines document record persistence.
type Registry interface {
	// PutDocument inserts doc, replacing any record with the same ID.
	PutDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentBySource(ctx context.Context, source string) (*models.Document, error)
	// FindByPosition returns the document whose chunk range contains position.
	FindByPosition(ctx context.Context, position int) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
	Close() error
}

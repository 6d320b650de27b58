package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		source TEXT NOT NULL,
		first_position INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		modified_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_position ON documents(first_position);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, title, source, first_position, chunk_count, size_bytes, modified_at, created_at`

// PutDocument inserts or replaces a document record.
func (s *SQLiteRegistry) PutDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.FirstPosition, doc.ChunkCount, doc.SizeBytes, doc.ModifiedAt, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteRegistry) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row, id)
}

// GetDocumentBySource returns the most recently ingested document for source.
func (s *SQLiteRegistry) GetDocumentBySource(ctx context.Context, source string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source = ?
		 ORDER BY first_position DESC LIMIT 1`, source)
	return scanDocument(row, source)
}

// FindByPosition returns the document owning the chunk at position.
func (s *SQLiteRegistry) FindByPosition(ctx context.Context, position int) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE first_position <= ? AND ? < first_position + chunk_count
		 LIMIT 1`, position, position)
	return scanDocument(row, fmt.Sprintf("position %d", position))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, key string) (*models.Document, error) {
	var doc models.Document
	var title sql.NullString
	var modified sql.NullTime
	err := row.Scan(&doc.ID, &title, &doc.Source, &doc.FirstPosition, &doc.ChunkCount,
		&doc.SizeBytes, &modified, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	doc.Title = title.String
	if modified.Valid {
		doc.ModifiedAt = modified.Time
	}
	return &doc, nil
}

// ListDocuments returns documents in ingestion order.
func (s *SQLiteRegistry) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 ORDER BY first_position ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows, "")
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of registered documents.
func (s *SQLiteRegistry) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// CountChunks returns the number of chunks covered by registered documents.
func (s *SQLiteRegistry) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(chunk_count), 0) FROM documents").Scan(&count)
	return count, err
}

// Clear deletes every record.
func (s *SQLiteRegistry) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents")
	return err
}

// Close closes the database.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

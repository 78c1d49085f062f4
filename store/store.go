// Package store persists processed documents and their answers in
// SQLite. Answers are indexed with FTS5 so solved homework can be
// searched from the CLI.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrBusy is returned by ClaimDocument when the document is already
// being processed.
var ErrBusy = errors.New("store: document already being processed")

// Document status values.
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Document represents a row in the documents table.
type Document struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	Format       string `json:"format"`
	ContentHash  string `json:"content_hash"`
	Status       string `json:"status"`
	FailedStep   string `json:"failed_step,omitempty"`
	ElementCount int    `json:"element_count"`
	ProblemCount int    `json:"problem_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Problem represents a row in the problems table.
type Problem struct {
	ID              int64  `json:"id"`
	DocumentID      int64  `json:"document_id"`
	Label           string `json:"label"`
	Stem            string `json:"stem"`
	NumSubquestions int    `json:"num_subquestions"`
	Position        int    `json:"position"`
}

// Answer represents a row in the answers table.
type Answer struct {
	ID         int64  `json:"id"`
	ProblemID  int64  `json:"problem_id"`
	DocumentID int64  `json:"document_id"`
	SubID      string `json:"sub_id"`
	SubText    string `json:"sub_text"`
	Answer     string `json:"answer"`
	Reason     string `json:"reason"`
	Position   int    `json:"position"`
}

// ProblemResult bundles one problem row with its answer rows.
type ProblemResult struct {
	Problem Problem  `json:"problem"`
	Answers []Answer `json:"answers"`
}

// SearchResult is one full-text hit over stored answers.
type SearchResult struct {
	AnswerID   int64   `json:"answer_id"`
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	Problem    string  `json:"problem"`
	SubID      string  `json:"sub_id"`
	SubText    string  `json:"sub_text"`
	Answer     string  `json:"answer"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// Store wraps the SQLite database for all gohomework persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the FTS5 virtual table.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Document operations ---

// ClaimDocument registers a document as processing and returns its row
// id. A document whose previous run is still marked processing is
// rejected with ErrBusy; completed or failed documents are reclaimed
// with their counters reset.
func (s *Store) ClaimDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			"SELECT id, status FROM documents WHERE path = ?", doc.Path).Scan(&id, &status)
		switch {
		case err == sql.ErrNoRows:
			// First time seeing this path.
		case err != nil:
			return err
		case status == StatusProcessing:
			return ErrBusy
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (path, filename, format, content_hash, status)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				filename = excluded.filename,
				format = excluded.format,
				content_hash = excluded.content_hash,
				status = excluded.status,
				failed_step = NULL,
				element_count = 0,
				problem_count = 0,
				updated_at = CURRENT_TIMESTAMP
		`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, StatusProcessing)
		if err != nil {
			return err
		}
		if id != 0 {
			return nil
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MarkDone flags a document as fully processed.
func (s *Store) MarkDone(ctx context.Context, id int64, elementCount, problemCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, failed_step = NULL,
			element_count = ?, problem_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusDone, elementCount, problemCount, id)
	return err
}

// MarkFailed flags a document as failed at the given pipeline step.
func (s *Store) MarkFailed(ctx context.Context, id int64, step string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, failed_step = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StatusFailed, step, id)
	return err
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, failed_step,
			element_count, problem_count, created_at, updated_at
		FROM documents WHERE id = ?
	`, id))
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, failed_step,
			element_count, problem_count, created_at, updated_at
		FROM documents WHERE path = ?
	`, path))
}

func (s *Store) scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	var failedStep sql.NullString
	err := row.Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Status, &failedStep,
		&doc.ElementCount, &doc.ProblemCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.FailedStep = failedStep.String
	return doc, nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, failed_step,
			element_count, problem_count, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var failedStep sql.NullString
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.Format,
			&d.ContentHash, &d.Status, &failedStep,
			&d.ElementCount, &d.ProblemCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.FailedStep = failedStep.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// --- Result operations ---

// ReplaceResults replaces the stored problems and answers for a
// document in one transaction.
func (s *Store) ReplaceResults(ctx context.Context, docID int64, results []ProblemResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Answer deletes go through the FTS sync triggers.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM answers WHERE document_id = ?", docID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM problems WHERE document_id = ?", docID); err != nil {
			return err
		}

		probStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO problems (document_id, label, stem, num_subquestions, position)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer probStmt.Close()

		ansStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO answers (problem_id, document_id, sub_id, sub_text, answer, reason, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer ansStmt.Close()

		for pos, r := range results {
			res, err := probStmt.ExecContext(ctx, docID,
				r.Problem.Label, r.Problem.Stem, r.Problem.NumSubquestions, pos)
			if err != nil {
				return err
			}
			probID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for apos, a := range r.Answers {
				if _, err := ansStmt.ExecContext(ctx, probID, docID,
					a.SubID, a.SubText, a.Answer, a.Reason, apos); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetResults returns the stored problems and answers for a document in
// insertion order.
func (s *Store) GetResults(ctx context.Context, docID int64) ([]ProblemResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, label, stem, num_subquestions, position
		FROM problems WHERE document_id = ? ORDER BY position
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProblemResult
	byRow := make(map[int64]int)
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Label, &p.Stem,
			&p.NumSubquestions, &p.Position); err != nil {
			return nil, err
		}
		byRow[p.ID] = len(results)
		results = append(results, ProblemResult{Problem: p, Answers: []Answer{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ansRows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.problem_id, a.document_id, a.sub_id, a.sub_text, a.answer, a.reason, a.position
		FROM answers a
		JOIN problems p ON p.id = a.problem_id
		WHERE a.document_id = ?
		ORDER BY p.position, a.position
	`, docID)
	if err != nil {
		return nil, err
	}
	defer ansRows.Close()

	for ansRows.Next() {
		var a Answer
		if err := ansRows.Scan(&a.ID, &a.ProblemID, &a.DocumentID,
			&a.SubID, &a.SubText, &a.Answer, &a.Reason, &a.Position); err != nil {
			return nil, err
		}
		if idx, ok := byRow[a.ProblemID]; ok {
			results[idx].Answers = append(results[idx].Answers, a)
		}
	}
	return results, ansRows.Err()
}

// --- Search ---

// SearchAnswers performs a full-text search over stored answers using
// FTS5 BM25 ranking. The snippet highlights the match inside the
// answer column.
func (s *Store) SearchAnswers(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid, f.rank, snippet(answers_fts, 1, '[', ']', '…', 16),
			a.sub_id, a.sub_text, a.answer,
			p.label, d.id, d.filename
		FROM answers_fts f
		JOIN answers a ON a.id = f.rowid
		JOIN problems p ON p.id = a.problem_id
		JOIN documents d ON d.id = a.document_id
		WHERE answers_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.AnswerID, &rank, &r.Snippet,
			&r.SubID, &r.SubText, &r.Answer,
			&r.Problem, &r.DocumentID, &r.Filename); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Stats ---

// Stats reports row counts for the status display.
type Stats struct {
	Documents int64 `json:"documents"`
	Problems  int64 `json:"problems"`
	Answers   int64 `json:"answers"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		sql string
		dst *int64
	}{
		{"SELECT COUNT(*) FROM documents", &st.Documents},
		{"SELECT COUNT(*) FROM problems", &st.Problems},
		{"SELECT COUNT(*) FROM answers", &st.Answers},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// --- Helpers ---

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

package retrieval

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TITLE STORE
// ═══════════════════════════════════════════════════════════════════════════════
// A document's title is opaque to retrieval — it plays no role in BM25 or
// sparse scoring — but the caller building a results UI needs it alongside
// the doc_id. A two-column embedded SQLite table is the least amount of
// machinery that gives us durable, crash-safe doc_id → title lookups
// without pulling in a full document store.
// ═══════════════════════════════════════════════════════════════════════════════

// TitleStore persists doc_id → title pairs in a local SQLite file.
type TitleStore struct {
	db *sql.DB
}

// OpenTitleStore opens (creating if necessary) the SQLite file at path.
func OpenTitleStore(path string) (*TitleStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS titles (doc_id TEXT PRIMARY KEY, title TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, err
	}
	return &TitleStore{db: db}, nil
}

// Close releases the underlying database handle.
func (t *TitleStore) Close() error {
	return t.db.Close()
}

// Put records or overwrites the title for a doc_id.
func (t *TitleStore) Put(docID, title string) error {
	_, err := t.db.Exec(`INSERT INTO titles (doc_id, title) VALUES (?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET title = excluded.title`, docID, title)
	return err
}

// PutBatch records titles for many documents in one transaction.
func (t *TitleStore) PutBatch(docIDs, titles []string) error {
	if len(docIDs) != len(titles) {
		return fmt.Errorf("docIDs and titles length mismatch: %d vs %d", len(docIDs), len(titles))
	}

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO titles (doc_id, title) VALUES (?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET title = excluded.title`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, docID := range docIDs {
		if _, err := stmt.Exec(docID, titles[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Get returns the title for a doc_id, and whether one was found.
func (t *TitleStore) Get(docID string) (string, bool, error) {
	var title string
	err := t.db.QueryRow(`SELECT title FROM titles WHERE doc_id = ?`, docID).Scan(&title)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return title, true, nil
}

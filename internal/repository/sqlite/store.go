package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/promptbox/internal/domain"
	"github.com/jaakkos/promptbox/internal/repository/flatfile"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	position INTEGER PRIMARY KEY,
	owner_token TEXT NOT NULL,
	category TEXT NOT NULL,
	text TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS roles (
	list TEXT NOT NULL,
	position INTEGER NOT NULL,
	role_id INTEGER NOT NULL,
	PRIMARY KEY (list, position),
	UNIQUE (list, role_id)
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// indexes for common query patterns (random/all by category)
const indexes = `
CREATE INDEX IF NOT EXISTS idx_submissions_category ON submissions(category);
`

// Store keeps submissions and both allow-lists in one SQLite database.
// Owners are stored as tokens, the same way the flat file does.
type Store struct {
	db     *sql.DB
	cipher flatfile.OwnerCipher
}

// New opens the SQLite database at path (creating parent dirs and schema).
func New(path string, cipher flatfile.OwnerCipher) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if _, err := db.Exec(indexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite indexes: %w", err)
	}
	if _, err := db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1')"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite meta: %w", err)
	}
	return &Store{db: db, cipher: cipher}, nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Submissions returns the submission repository view of the store.
func (s *Store) Submissions() *Submissions {
	return &Submissions{store: s}
}

// Roles returns the repository for one allow-list.
func (s *Store) Roles(list domain.RoleList) *Roles {
	return &Roles{store: s, list: list}
}

// Submissions implements app.SubmissionRepository.
type Submissions struct {
	store *Store
}

// Load implements app.SubmissionRepository.
func (r *Submissions) Load() ([]domain.Submission, error) {
	rows, err := r.store.db.Query("SELECT owner_token, category, text FROM submissions ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("submissions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Submission{}
	for rows.Next() {
		var token, category, text string
		if err := rows.Scan(&token, &category, &text); err != nil {
			return nil, err
		}
		c := domain.Category(category)
		if !c.Valid() {
			return nil, fmt.Errorf("submissions: unknown category %q", category)
		}
		owner, err := r.store.cipher.Open(token)
		if err != nil {
			return nil, fmt.Errorf("submissions owner: %w", err)
		}
		subs = append(subs, domain.Submission{Owner: owner, Category: c, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("submissions iteration: %w", err)
	}
	return subs, nil
}

// Save implements app.SubmissionRepository. The table is rewritten in one transaction.
func (r *Submissions) Save(subs []domain.Submission) error {
	tx, err := r.store.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM submissions"); err != nil {
		return err
	}
	for i, sub := range subs {
		token, err := r.store.cipher.Seal(sub.Owner)
		if err != nil {
			return fmt.Errorf("seal owner: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO submissions (position, owner_token, category, text) VALUES (?, ?, ?, ?)",
			i, token, string(sub.Category), sub.Text); err != nil {
			return fmt.Errorf("insert submission %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Roles implements app.RoleRepository for one allow-list.
type Roles struct {
	store *Store
	list  domain.RoleList
}

// Load implements app.RoleRepository.
func (r *Roles) Load() ([]int64, error) {
	rows, err := r.store.db.Query("SELECT role_id FROM roles WHERE list = ? ORDER BY position", string(r.list))
	if err != nil {
		return nil, fmt.Errorf("roles %s: %w", r.list, err)
	}
	defer rows.Close()

	roles := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roles = append(roles, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles %s iteration: %w", r.list, err)
	}
	return roles, nil
}

// Save implements app.RoleRepository.
func (r *Roles) Save(roles []int64) error {
	tx, err := r.store.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM roles WHERE list = ?", string(r.list)); err != nil {
		return err
	}
	for i, id := range roles {
		if _, err := tx.Exec("INSERT INTO roles (list, position, role_id) VALUES (?, ?, ?)", string(r.list), i, id); err != nil {
			return fmt.Errorf("insert role %d: %w", id, err)
		}
	}
	return tx.Commit()
}

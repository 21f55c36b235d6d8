package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps resource lines in a SQLite database. Each line is one row
// of the records table, ordered by insertion id, so the parsing rules are the
// same as for flat files.
type SQLiteStore struct {
	db *sqlx.DB

	appendStmt *sqlx.Stmt
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %w", ErrIO, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrIO, err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	store := &SQLiteStore{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: prepare statements: %w", ErrIO, err)
	}
	return store, nil
}

// Close releases prepared statements and closes the DB.
func (s *SQLiteStore) Close() error {
	if s.appendStmt != nil {
		s.appendStmt.Close()
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resources (
            name TEXT PRIMARY KEY
        );`,
		`CREATE TABLE IF NOT EXISTS records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            resource TEXT NOT NULL REFERENCES resources(name),
            line TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_resource ON records(resource, id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *SQLiteStore) prepareStatements() error {
	query, _, err := sq.Insert("records").Columns("resource", "line").Values("", "").ToSql()
	if err != nil {
		return err
	}
	s.appendStmt, err = s.db.Preparex(query)
	return err
}

// ---------------------------------------------------------------------------
// RecordStore
// ---------------------------------------------------------------------------

func (s *SQLiteStore) ReadAll(res Resource) ([]Record, error) {
	exists, err := resourceExists(s.db, res.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, res.Name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: resource %s does not exist", ErrIO, res.Name)
	}

	query, args, err := sq.Select("line").From("records").
		Where(sq.Eq{"resource": res.Name}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var lines []string
	if err := s.db.Select(&lines, query, args...); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, res.Name, err)
	}

	var rows []Record
	for i, line := range lines {
		rec, ok, err := parseLine(res, i+1, line)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, rec)
		}
	}
	return rows, nil
}

func (s *SQLiteStore) AppendLine(res Resource, fields Record) error {
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := registerResource(tx, res.Name); err != nil {
			return err
		}
		_, err := tx.Stmtx(s.appendStmt).Exec(res.Name, joinFields(fields))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

// OverwriteAll deletes and reinserts every line of res in one transaction.
func (s *SQLiteStore) OverwriteAll(res Resource, rows []Record) error {
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := registerResource(tx, res.Name); err != nil {
			return err
		}
		return s.replaceLines(tx, res.Name, rows)
	})
	if err != nil {
		return fmt.Errorf("%w: rewrite %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

func (s *SQLiteStore) Ensure(res Resource, seed []Record) error {
	err := s.withTx(func(tx *sqlx.Tx) error {
		exists, err := resourceExists(tx, res.Name)
		if err != nil || exists {
			return err
		}
		if err := registerResource(tx, res.Name); err != nil {
			return err
		}
		return s.replaceLines(tx, res.Name, seed)
	})
	if err != nil {
		return fmt.Errorf("%w: ensure %s: %w", ErrIO, res.Name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteStore) withTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func resourceExists(q sqlx.Queryer, name string) (bool, error) {
	query, args, err := sq.Select("1").Prefix("SELECT EXISTS(").From("resources").
		Where(sq.Eq{"name": name}).Suffix(")").ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := q.QueryRowx(query, args...).Scan(&exists); err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return exists, nil
}

func registerResource(tx *sqlx.Tx, name string) error {
	query, args, err := sq.Insert("resources").Options("OR IGNORE").
		Columns("name").Values(name).ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(query, args...)
	return err
}

func (s *SQLiteStore) replaceLines(tx *sqlx.Tx, name string, rows []Record) error {
	query, args, err := sq.Delete("records").Where(sq.Eq{"resource": name}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}
	stmt := tx.Stmtx(s.appendStmt)
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.Exec(name, joinFields(row)); err != nil {
			return err
		}
	}
	return nil
}

func joinFields(fields Record) string {
	return strings.TrimSuffix(formatLine(fields), "\n")
}

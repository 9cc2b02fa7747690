package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zipup/internal/database/migrations"
	"zipup/internal/zipup"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements zipup.History on SQLite.
type SQLiteDatabase struct {
	db *sql.DB
}

var _ zipup.History = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteDatabase{db: db}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection without migrating it.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens a SQLite connection configured for the history store.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// CreateUpload inserts rec as a running upload and assigns rec.ID.
func (s *SQLiteDatabase) CreateUpload(rec *zipup.UploadRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	rec.Status = zipup.StatusRunning

	res, err := s.db.Exec(`
		INSERT INTO uploads (operation_id, owner, repository, archive, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.OperationID, rec.Owner, rec.Repository, rec.Archive, rec.Status, rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("creating upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading upload id: %w", err)
	}
	rec.ID = id
	return nil
}

// FinishUpload records the outcome of upload id.
func (s *SQLiteDatabase) FinishUpload(id int64, outcome zipup.UploadOutcome) error {
	switch outcome.Status {
	case zipup.StatusSuccess, zipup.StatusError:
	default:
		return fmt.Errorf("finishing upload %d: invalid status %q", id, outcome.Status)
	}
	finished := outcome.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	res, err := s.db.Exec(`
		UPDATE uploads
		SET status = ?, url = ?, file_count = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		outcome.Status, outcome.URL, outcome.Files, outcome.Error, finished.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing upload %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing upload %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing upload %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListUploads returns up to limit uploads, newest first. A limit of zero or
// less returns all of them.
func (s *SQLiteDatabase) ListUploads(limit int) ([]*zipup.UploadRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, operation_id, owner, repository, archive, status, url,
		       file_count, error, started_at, finished_at
		FROM uploads
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	var out []*zipup.UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("listing uploads: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	return out, nil
}

// FindUpload returns the upload with the given operation id, or nil.
func (s *SQLiteDatabase) FindUpload(operationID string) (*zipup.UploadRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, operation_id, owner, repository, archive, status, url,
		       file_count, error, started_at, finished_at
		FROM uploads
		WHERE operation_id = ?`, operationID)
	rec, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding upload %s: %w", operationID, err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*zipup.UploadRecord, error) {
	var (
		rec      zipup.UploadRecord
		finished sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.OperationID, &rec.Owner, &rec.Repository, &rec.Archive,
		&rec.Status, &rec.URL, &rec.Files, &rec.Error, &rec.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

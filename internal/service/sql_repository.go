// internal/service/sql_repository.go
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure Go, no cgo

	"reel-editor/internal/models"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var schemas = map[Dialect]string{
	Postgres: `
	CREATE TABLE IF NOT EXISTS editor_projects (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'draft',
		project_json JSONB NOT NULL,
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_editor_projects_user_status
		ON editor_projects (user_id, status, updated_at DESC);
	`,
	SQLite: `
	CREATE TABLE IF NOT EXISTS editor_projects (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'done')),
		project_json TEXT NOT NULL,
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_editor_projects_user_status
		ON editor_projects (user_id, status, updated_at DESC);
	`,
}

// SQLRepository stores projects in the editor_projects table. Queries are
// written with $N placeholders and rebound for SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects to dsn, verifies the connection and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// Pool sized so concurrent saves cannot overwhelm the database.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLRepository(ctx, db, Postgres)
}

// OpenSQLite opens (or creates) the database file at path with WAL and a
// busy timeout on every pooled connection.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLRepository(ctx, db, SQLite)
}

// NewSQLRepository wraps an already opened database.
func NewSQLRepository(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	return newSQLRepository(ctx, db, dialect)
}

func newSQLRepository(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	schema, ok := schemas[dialect]
	if !ok {
		_ = db.Close()
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// fail fast rather than accepting traffic
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return &SQLRepository{db: db, dialect: dialect}, nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

func (r *SQLRepository) q(query string) string {
	if r.dialect == SQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

const selectProject = `
	SELECT id, user_id, title, status, project_json, version, created_at, updated_at
	FROM editor_projects
`

func (r *SQLRepository) Insert(ctx context.Context, doc *models.ProjectDocument) error {
	raw, err := json.Marshal(doc.ProjectJSON)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO editor_projects (id, user_id, title, status, project_json, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, r.q(query),
		doc.ID, doc.UserID, doc.Title, string(doc.Status), string(raw),
		doc.Version, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (r *SQLRepository) Get(ctx context.Context, id uuid.UUID) (*models.ProjectDocument, error) {
	row := r.db.QueryRowContext(ctx, r.q(selectProject+`WHERE id = $1`), id)
	doc, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *SQLRepository) Save(ctx context.Context, id uuid.UUID, pj models.ProjectJSON, status *models.Status, at time.Time) error {
	raw, err := json.Marshal(pj)
	if err != nil {
		return err
	}

	query := `
		UPDATE editor_projects
		SET project_json = $1,
		    version      = version + 1,
		    updated_at   = $2
		WHERE id = $3
	`
	args := []any{string(raw), at, id}
	if status != nil {
		query = `
		UPDATE editor_projects
		SET project_json = $1,
		    version      = version + 1,
		    updated_at   = $2,
		    status       = $4
		WHERE id = $3
	`
		args = append(args, string(*status))
	}

	result, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func (r *SQLRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, at time.Time) error {
	query := `UPDATE editor_projects SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, r.q(query), string(status), at, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func (r *SQLRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, r.q(`DELETE FROM editor_projects WHERE id = $1`), id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func (r *SQLRepository) List(ctx context.Context, userID uuid.UUID, status models.Status) ([]models.ProjectDocument, error) {
	query := selectProject + `
		WHERE user_id = $1 AND status = $2
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), userID, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ProjectDocument
	for rows.Next() {
		doc, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }
func (r *SQLRepository) Close() error                   { return r.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.ProjectDocument, error) {
	doc := &models.ProjectDocument{}
	var (
		status string
		raw    []byte
	)
	err := s.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&status,
		&raw,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = models.Status(status)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.ProjectJSON); err != nil {
			return nil, fmt.Errorf("project %s: decode project_json: %w", doc.ID, err)
		}
	}
	return doc, nil
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

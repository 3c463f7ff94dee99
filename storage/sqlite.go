package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/David-I7/graphcalculator-sub001/core"
)

//go:embed schema/sqlite/schema.sql
var sqliteSchema string

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) initSchema() error {
	_, err := r.db.Exec(sqliteSchema)
	return err
}

const userColumns = `id, email, email_verified, name, provider, subject, credential, created_at, updated_at`

func (r *SQLiteRepository) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) FindBySubject(ctx context.Context, provider core.Provider, subject string) (*core.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = ? AND subject = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, string(provider), subject))
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *core.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Email,
		user.EmailVerified,
		user.Name,
		string(user.Provider),
		user.Subject,
		user.Credential,
		user.CreatedAt.Unix(),
		user.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (r *SQLiteRepository) UpdateCredential(ctx context.Context, userID uuid.UUID, credential []byte) error {
	query := `UPDATE users SET credential = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, credential, time.Now().Unix(), userID.String())
	if err != nil {
		return err
	}

	return requireRowAffected(result)
}

func (r *SQLiteRepository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, time.Now().Unix(), userID.String())
	if err != nil {
		return err
	}

	return requireRowAffected(result)
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM users WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, userID.String())
	if err != nil {
		return err
	}

	return requireRowAffected(result)
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*core.User, error) {
	var user core.User
	var idStr, providerStr string
	var createdAt, updatedAt int64

	err := row.Scan(
		&idStr,
		&user.Email,
		&user.EmailVerified,
		&user.Name,
		&providerStr,
		&user.Subject,
		&user.Credential,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.ID = uuid.MustParse(idStr)
	user.Provider = core.Provider(providerStr)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

func requireRowAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "UNIQUE") ||
		strings.Contains(errMsg, "unique")
}

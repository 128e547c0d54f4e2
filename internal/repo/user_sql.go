package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/db"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

type SQLUserRepository struct {
	db *db.DB
}

func NewSQLUserRepository(d *db.DB) *SQLUserRepository {
	return &SQLUserRepository{db: d}
}

const userColumns = `id, username, password_hash, role, created_at`

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	u.Role = models.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, err
}

// GetByUsername matches the username exactly, case included.
func (r *SQLUserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	u, err := scanUser(r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, storageErr("get user", err)
	}
	return u, nil
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	u, err := scanUser(r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, storageErr("get user", err)
	}
	return u, nil
}

func (r *SQLUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), username).Scan(&n); err != nil {
		return false, storageErr("check user", err)
	}
	return n > 0, nil
}

// CreateUser inserts a user. The UNIQUE constraint on username is the
// authority on duplicates; a violation is reported as ErrUsernameTaken.
func (r *SQLUserRepository) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	u.CreatedAt = stamp(time.Now())
	query := r.db.Rebind(`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	err := r.db.QueryRowContext(ctx, query, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, storageErr("create user", err)
	}
	return u, nil
}

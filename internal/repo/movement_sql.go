package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/config"
	"github.com/rogerio-castellano/stock-ledger/internal/db"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

type SQLMovementRepository struct {
	db *db.DB
}

func NewSQLMovementRepository(d *db.DB) *SQLMovementRepository {
	return &SQLMovementRepository{db: d}
}

const movementSelect = `SELECT m.id, m.product_id, m.type, m.quantity, m.date, m.notes, m.created_by, p.name, u.username
FROM stock_movements m
JOIN products p ON p.id = m.product_id
JOIN users u ON u.id = m.created_by`

const movementOrder = ` ORDER BY m.date DESC, m.id DESC`

func scanMovement(row interface{ Scan(...any) error }) (models.Movement, error) {
	var m models.Movement
	var direction string
	err := row.Scan(&m.ID, &m.ProductID, &direction, &m.Quantity, &m.Date, &m.Notes, &m.CreatedBy, &m.ProductName, &m.CreatedByName)
	m.Direction = models.Direction(direction)
	m.Date = m.Date.UTC()
	return m, err
}

var errUnknownProduct = models.NewValidationError(models.FieldError{Field: "product_id", Description: "product does not exist"})

// Append validates and records a movement. A zero Date means now. The
// product existence check and the insert share a transaction.
func (r *SQLMovementRepository) Append(ctx context.Context, m models.Movement) (models.Movement, error) {
	if err := m.Validate(); err != nil {
		return models.Movement{}, err
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}
	m.Date = stamp(m.Date)

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Movement{}, storageErr("append movement", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT name FROM products WHERE id = ?`), m.ProductID).Scan(&m.ProductName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Movement{}, errUnknownProduct
	}
	if err != nil {
		return models.Movement{}, storageErr("append movement", err)
	}

	query := r.db.Rebind(`INSERT INTO stock_movements (product_id, type, quantity, date, notes, created_by) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err = tx.QueryRowContext(ctx, query, m.ProductID, string(m.Direction), m.Quantity, m.Date, m.Notes, m.CreatedBy).Scan(&m.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return models.Movement{}, errUnknownProduct
		}
		return models.Movement{}, storageErr("append movement", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Movement{}, storageErr("append movement", err)
	}
	return m, nil
}

// Remove deletes a movement and returns what was deleted.
func (r *SQLMovementRepository) Remove(ctx context.Context, id int64) (models.Movement, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Movement{}, storageErr("remove movement", err)
	}
	defer tx.Rollback()

	m, err := scanMovement(tx.QueryRowContext(ctx, r.db.Rebind(movementSelect+` WHERE m.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Movement{}, ErrMovementNotFound
	}
	if err != nil {
		return models.Movement{}, storageErr("remove movement", err)
	}

	res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM stock_movements WHERE id = ?`), id)
	if err != nil {
		return models.Movement{}, storageErr("remove movement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Movement{}, ErrMovementNotFound
	}

	if err := tx.Commit(); err != nil {
		return models.Movement{}, storageErr("remove movement", err)
	}
	return m, nil
}

func (r *SQLMovementRepository) GetByID(ctx context.Context, id int64) (models.Movement, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	m, err := scanMovement(r.db.QueryRowContext(ctx, r.db.Rebind(movementSelect+` WHERE m.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Movement{}, ErrMovementNotFound
	}
	if err != nil {
		return models.Movement{}, storageErr("get movement", err)
	}
	return m, nil
}

// GetAll returns the whole ledger, newest first.
func (r *SQLMovementRepository) GetAll(ctx context.Context) ([]models.Movement, error) {
	return r.query(ctx, "list movements", movementSelect+movementOrder)
}

// GetByDateRange returns movements whose date falls on any day from start
// to end, both included.
func (r *SQLMovementRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]models.Movement, error) {
	from, to := dayBounds(start, end)
	query := r.db.Rebind(movementSelect + ` WHERE m.date >= ? AND m.date < ?` + movementOrder)
	return r.query(ctx, "list movements by date", query, from, to)
}

// Filter returns one page of movements and the total number matching f.
func (r *SQLMovementRepository) Filter(ctx context.Context, f MovementFilter) ([]models.Movement, int, error) {
	conditions, args := filterConditions(f)

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM stock_movements m WHERE 1=1` + conditions)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count movements", err)
	}

	query := movementSelect + ` WHERE 1=1` + conditions + movementOrder
	switch {
	case f.Limit != nil && *f.Limit > 0:
		query += ` LIMIT ?`
		args = append(args, *f.Limit)
	case f.Offset != nil && *f.Offset > 0 && r.db.Driver == config.DriverSQLite:
		// sqlite only accepts OFFSET after a LIMIT
		query += ` LIMIT -1`
	}
	if f.Offset != nil && *f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, *f.Offset)
	}

	movements, err := r.query(ctx, "filter movements", r.db.Rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func filterConditions(f MovementFilter) (string, []any) {
	var b strings.Builder
	args := []any{}

	if f.ProductID != nil {
		b.WriteString(` AND m.product_id = ?`)
		args = append(args, *f.ProductID)
	}
	if f.Direction != nil {
		b.WriteString(` AND m.type = ?`)
		args = append(args, string(*f.Direction))
	}
	if f.Since != nil {
		b.WriteString(` AND m.date >= ?`)
		args = append(args, stamp(*f.Since))
	}
	if f.Until != nil {
		b.WriteString(` AND m.date <= ?`)
		args = append(args, stamp(*f.Until))
	}
	return b.String(), args
}

func (r *SQLMovementRepository) query(ctx context.Context, op, query string, args ...any) ([]models.Movement, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return movements, nil
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/db"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

type SQLProductRepository struct {
	db *db.DB
}

func NewSQLProductRepository(d *db.DB) *SQLProductRepository {
	return &SQLProductRepository{db: d}
}

const productColumns = `id, name, description, unit, min_stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Unit, &p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (r *SQLProductRepository) Create(ctx context.Context, p models.Product) (models.Product, error) {
	if err := p.Validate(); err != nil {
		return models.Product{}, err
	}

	now := stamp(time.Now())
	p.CreatedAt, p.UpdatedAt = now, now

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO products (name, description, unit, min_stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.Unit, p.MinStock, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return models.Product{}, storageErr("create product", err)
	}
	return p, nil
}

func (r *SQLProductRepository) Update(ctx context.Context, p models.Product) (models.Product, error) {
	if err := p.Validate(); err != nil {
		return models.Product{}, err
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`UPDATE products SET name = ?, description = ?, unit = ?, min_stock = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Description, p.Unit, p.MinStock, stamp(time.Now()), p.ID)
	if err != nil {
		return models.Product{}, storageErr("update product", err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return models.Product{}, ErrProductNotFound
	}
	return r.GetByID(ctx, p.ID)
}

// Delete removes a product. Products referenced by movements are kept and
// ErrProductHasMovements is returned.
func (r *SQLProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("delete product", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM stock_movements WHERE product_id = ?`), id).Scan(&count); err != nil {
		return storageErr("delete product", err)
	}
	if count > 0 {
		return ErrProductHasMovements
	}

	res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductHasMovements
		}
		return storageErr("delete product", err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	if err := tx.Commit(); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductHasMovements
		}
		return storageErr("delete product", err)
	}
	return nil
}

func (r *SQLProductRepository) GetByID(ctx context.Context, id int64) (models.Product, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, storageErr("get product", err)
	}
	return p, nil
}

// GetByName returns the oldest product with exactly this name.
func (r *SQLProductRepository) GetByName(ctx context.Context, name string) (models.Product, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE name = ? ORDER BY id LIMIT 1`)
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, storageErr("get product by name", err)
	}
	return p, nil
}

// GetAll lists the catalog ordered by name.
func (r *SQLProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storageErr("list products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

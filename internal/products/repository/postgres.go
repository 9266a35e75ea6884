package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"
)

const (
	healthCheckTimeout = 2 * time.Second

	selectColumns = `id, name, description, price, available, category`
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (products.Product, error) {
	var (
		p        products.Product
		category string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Available, &category); err != nil {
		return products.Product{}, err
	}
	p.Category = products.Category(category)
	return p, nil
}

func (r *PostgresRepository) Save(ctx context.Context, p products.Product) (products.Product, error) {
	query := `
		INSERT INTO products (name, description, price, available, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + selectColumns

	row := r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.Price, p.Available, string(p.Category))
	stored, err := scanProduct(row)
	if err != nil {
		return products.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return stored, nil
}

func (r *PostgresRepository) Fetch(ctx context.Context, id int64) (products.Product, bool, error) {
	query := `SELECT ` + selectColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return products.Product{}, false, nil
	}
	if err != nil {
		return products.Product{}, false, fmt.Errorf("select product %d: %w", id, err)
	}
	return p, true, nil
}

func (r *PostgresRepository) FetchAll(ctx context.Context) ([]products.Product, error) {
	return r.FetchMatching(ctx, search.Filter{})
}

func (r *PostgresRepository) FetchMatching(ctx context.Context, f search.Filter) ([]products.Product, error) {
	where, args := f.Where(1)
	query := `SELECT ` + selectColumns + ` FROM products WHERE ` + where + ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	list := make([]products.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return list, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p products.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, available = $5, category = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Available, string(p.Category))
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return products.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return products.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zest/productapi/internal/domain/product"
	"github.com/zest/productapi/internal/observability"
)

type ProductsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProductsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProductsRepo {
	return &ProductsRepo{pool: pool, prom: prom}
}

func (r *ProductsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ProductsRepo) Create(ctx context.Context, p product.Product) (product.Product, error) {
	err := r.observe("products.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO products (product_name, created_by, created_on, modified_by, modified_on)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, p.Name, p.CreatedBy, p.CreatedOn, p.ModifiedBy, p.ModifiedOn).Scan(&p.ID)
	})
	if err != nil {
		return product.Product{}, err
	}

	return p, nil
}

func (r *ProductsRepo) List(ctx context.Context, limit, offset int) ([]product.Product, int, error) {
	output := make([]product.Product, 0, limit)
	total := 0

	err := r.observe("products.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, product_name, created_by, created_on, modified_by, modified_on,
			       COUNT(*) OVER() AS total
			FROM products
			ORDER BY id ASC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p product.Product
			if err := rows.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedOn, &p.ModifiedBy, &p.ModifiedOn, &total); err != nil {
				return err
			}
			output = append(output, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	// window count is absent when the offset is past the last row
	if len(output) == 0 && offset > 0 {
		if err := r.observe("products.count", func() error {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
		}); err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

func (r *ProductsRepo) GetByID(ctx context.Context, id int64) (product.Product, error) {
	var p product.Product

	err := r.observe("products.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, product_name, created_by, created_on, modified_by, modified_on
			FROM products
			WHERE id = $1
		`, id).Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedOn, &p.ModifiedBy, &p.ModifiedOn)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, err
	}

	return p, nil
}

// Update writes the name and the modification stamp. Owner fields are never
// touched.
func (r *ProductsRepo) Update(ctx context.Context, p product.Product) (product.Product, error) {
	var out product.Product

	err := r.observe("products.update", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE products
			SET product_name = $2,
			    modified_by = $3,
			    modified_on = $4
			WHERE id = $1
			RETURNING id, product_name, created_by, created_on, modified_by, modified_on
		`, p.ID, p.Name, p.ModifiedBy, p.ModifiedOn).Scan(
			&out.ID, &out.Name, &out.CreatedBy, &out.CreatedOn, &out.ModifiedBy, &out.ModifiedOn,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, err
	}

	return out, nil
}

// Delete removes the items and then the product in one transaction. The
// product row is locked first so no item can be attached in between.
func (r *ProductsRepo) Delete(ctx context.Context, id int64) error {
	found := true

	err := r.observe("products.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var locked int64
		err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				found = false
				return nil
			}
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE product_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}

	if !found {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductsRepo) ListItems(ctx context.Context, productID int64) ([]product.Item, error) {
	if _, err := r.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	output := make([]product.Item, 0)

	err := r.observe("items.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, product_id, quantity
			FROM items
			WHERE product_id = $1
			ORDER BY id ASC
		`, productID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var it product.Item
			if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity); err != nil {
				return err
			}
			output = append(output, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *ProductsRepo) AddItem(ctx context.Context, it product.Item) (product.Item, error) {
	if it.Quantity < 0 || it.Quantity > product.MaxQuantity {
		return product.Item{}, product.ErrInvalidQuantity
	}

	err := r.observe("items.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO items (product_id, quantity)
			VALUES ($1, $2)
			RETURNING id
		`, it.ProductID, it.Quantity).Scan(&it.ID)
	})
	if err != nil {
		if code, _ := pgErrCode(err); code == foreignKeyViolation {
			return product.Item{}, product.ErrNotFound
		}
		return product.Item{}, err
	}

	return it, nil
}

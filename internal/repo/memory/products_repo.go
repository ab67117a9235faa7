package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zest/productapi/internal/domain/product"
)

type ProductsRepo struct {
	mu         sync.RWMutex
	nextID     int64
	nextItemID int64
	products   map[int64]product.Product
	items      map[int64]product.Item
}

func NewProductsRepo() *ProductsRepo {
	return &ProductsRepo{
		products: make(map[int64]product.Product),
		items:    make(map[int64]product.Item),
	}
}

func (r *ProductsRepo) Create(_ context.Context, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p

	return p, nil
}

func (r *ProductsRepo) List(_ context.Context, limit, offset int) ([]product.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return []product.Product{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

func (r *ProductsRepo) GetByID(_ context.Context, id int64) (product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (r *ProductsRepo) Update(_ context.Context, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[p.ID]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}

	existing.Name = p.Name
	existing.ModifiedBy = p.ModifiedBy
	existing.ModifiedOn = p.ModifiedOn
	r.products[p.ID] = existing

	return existing, nil
}

// Delete removes the product and its items under a single lock.
func (r *ProductsRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return product.ErrNotFound
	}

	for itemID, it := range r.items {
		if it.ProductID == id {
			delete(r.items, itemID)
		}
	}
	delete(r.products, id)

	return nil
}

func (r *ProductsRepo) ListItems(_ context.Context, productID int64) ([]product.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.products[productID]; !ok {
		return nil, product.ErrNotFound
	}

	out := make([]product.Item, 0)
	for _, it := range r.items {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductsRepo) AddItem(_ context.Context, it product.Item) (product.Item, error) {
	if it.Quantity < 0 || it.Quantity > product.MaxQuantity {
		return product.Item{}, product.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[it.ProductID]; !ok {
		return product.Item{}, product.ErrNotFound
	}

	r.nextItemID++
	it.ID = r.nextItemID
	r.items[it.ID] = it

	return it, nil
}

// CountItems is used by tests to check that no orphan items survive a delete.
func (r *ProductsRepo) CountItems() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/domain/product"
)

const (
	DefaultPage     = 0
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ErrAccessCountUnavailable = errors.New("access counters are not configured")

type ProductStore interface {
	Create(ctx context.Context, p product.Product) (product.Product, error)
	List(ctx context.Context, limit, offset int) ([]product.Product, int, error)
	GetByID(ctx context.Context, id int64) (product.Product, error)
	Update(ctx context.Context, p product.Product) (product.Product, error)
	Delete(ctx context.Context, id int64) error
	ListItems(ctx context.Context, productID int64) ([]product.Item, error)
	AddItem(ctx context.Context, it product.Item) (product.Item, error)
}

type AccessRecorder interface {
	Record(productID int64, actor string)
}

type AccessCounter interface {
	Count(ctx context.Context, productID int64) (int64, error)
}

type ProductService struct {
	store       ProductStore
	recorder    AccessRecorder
	counter     AccessCounter
	maxPageSize int
	now         func() time.Time
}

type ProductServiceOption func(*ProductService)

func WithAccessRecorder(r AccessRecorder) ProductServiceOption {
	return func(s *ProductService) { s.recorder = r }
}

func WithAccessCounter(c AccessCounter) ProductServiceOption {
	return func(s *ProductService) { s.counter = c }
}

// WithMaxPageSize sets the cap applied to caller-supplied page sizes.
func WithMaxPageSize(n int) ProductServiceOption {
	return func(s *ProductService) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func WithClock(now func() time.Time) ProductServiceOption {
	return func(s *ProductService) { s.now = now }
}

func NewProductService(store ProductStore, opts ...ProductServiceOption) *ProductService {
	s := &ProductService{
		store:       store,
		maxPageSize: MaxPageSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProductService) MaxPageSize() int {
	return s.maxPageSize
}

// List returns one page ordered by id ascending. Sizes above the cap are
// clamped rather than rejected.
func (s *ProductService) List(ctx context.Context, page, size int) (product.Page, error) {
	if page < 0 || size < 1 {
		return product.Page{}, product.ErrInvalidPage
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}
	if page > math.MaxInt32/size {
		return product.Page{}, product.ErrInvalidPage
	}

	items, total, err := s.store.List(ctx, size, page*size)
	if err != nil {
		return product.Page{}, fmt.Errorf("list products: %w", err)
	}

	return product.NewPage(items, page, size, total), nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (product.Product, error) {
	return s.store.GetByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, name string, actor auth.Principal) (product.Product, error) {
	p := product.New(name, actor.Username, s.now())

	created, err := s.store.Create(ctx, p)
	if err != nil {
		return product.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (s *ProductService) Update(ctx context.Context, id int64, name string, actor auth.Principal) (product.Product, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return product.Product{}, err
	}

	p.Name = name
	p.Touch(actor.Username, s.now())

	return s.store.Update(ctx, p)
}

// Delete removes the product together with all of its items.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

func (s *ProductService) ListItems(ctx context.Context, productID int64) ([]product.Item, error) {
	return s.store.ListItems(ctx, productID)
}

func (s *ProductService) AddItem(ctx context.Context, productID int64, quantity int) (product.Item, error) {
	it, err := product.NewItem(productID, quantity)
	if err != nil {
		return product.Item{}, err
	}
	return s.store.AddItem(ctx, it)
}

// RecordAccess hands the read off to the access recorder and returns at once.
func (s *ProductService) RecordAccess(productID int64, actor auth.Principal) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(productID, actor.Username)
}

func (s *ProductService) AccessCount(ctx context.Context, productID int64) (int64, error) {
	if s.counter == nil {
		return 0, ErrAccessCountUnavailable
	}

	if _, err := s.store.GetByID(ctx, productID); err != nil {
		return 0, err
	}

	return s.counter.Count(ctx, productID)
}

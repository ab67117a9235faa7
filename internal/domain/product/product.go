package product

import (
	"errors"
	"math"
	"time"
)

// MaxQuantity is the largest quantity the items column can hold.
const MaxQuantity = math.MaxInt32

var (
	ErrNotFound        = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be between 0 and 2147483647")
	ErrInvalidPage     = errors.New("page must be >= 0 and size >= 1")
)

type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"productName"`
	CreatedBy  string     `json:"createdBy"`
	CreatedOn  time.Time  `json:"createdOn"`
	ModifiedBy *string    `json:"modifiedBy"`
	ModifiedOn *time.Time `json:"modifiedOn"`
}

type Item struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Page is one offset page of products, ordered by id ascending.
type Page struct {
	Content       []Product `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
}

type ProductRequest struct {
	ProductName string `json:"productName" binding:"required,min=1,max=255"`
}

// Quantity is a pointer so that a missing field fails "required" while 0 is accepted.
type ItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=2147483647"`
}

func New(name, createdBy string, now time.Time) Product {
	return Product{
		Name:      name,
		CreatedBy: createdBy,
		CreatedOn: now.UTC(),
	}
}

// Touch stamps the modification audit fields. modifiedOn never precedes createdOn.
func (p *Product) Touch(modifiedBy string, now time.Time) {
	now = now.UTC()
	if now.Before(p.CreatedOn) {
		now = p.CreatedOn
	}

	p.ModifiedBy = &modifiedBy
	p.ModifiedOn = &now
}

func NewItem(productID int64, quantity int) (Item, error) {
	if quantity < 0 || quantity > MaxQuantity {
		return Item{}, ErrInvalidQuantity
	}

	return Item{ProductID: productID, Quantity: quantity}, nil
}

func NewPage(content []Product, page, size, total int) Page {
	if content == nil {
		content = []Product{}
	}

	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}

	return Page{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

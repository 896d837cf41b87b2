// Package model defines domain types used by the service.
package model

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is matched by errors for resources the catalog does not have.
var ErrNotFound = errors.New("not found")

// Review is a customer review attached to exactly one product.
type Review struct {
	ID        int    `json:"id"`
	ProductID int    `json:"productId"`
	UserName  string `json:"userName"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

// Product is a catalog entry as returned by the catalog backend.
type Product struct {
	ID              int             `json:"id"`
	ProductName     string          `json:"productName"`
	ProductCode     string          `json:"productCode,omitempty"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantityInStock,omitempty"`
	HasReviews      bool            `json:"hasReviews"`
	Reviews         []Review        `json:"reviews"`
}

// WithReviews returns a copy of p carrying reviews. p is left untouched.
func (p Product) WithReviews(reviews []Review) Product {
	p.Reviews = make([]Review, len(reviews))
	copy(p.Reviews, reviews)
	return p
}

// Result carries either fetched data or a user-facing error message.
type Result[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the result holds an error message.
func (r Result[T]) Failed() bool { return r.Error != "" }

// CartItem is one line of the shopping cart.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

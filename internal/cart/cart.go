// Package cart keeps the shopping cart products are added to from the
// detail view.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/product-catalog-store/internal/model"
)

var (
	freeDeliveryFrom = decimal.NewFromInt(50)
	deliveryFee      = decimal.RequireFromString("5.99")
	taxRate          = decimal.RequireFromString("0.1075")
)

// Totals summarizes the cart.
type Totals struct {
	SubTotal    decimal.Decimal `json:"subTotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Tax         decimal.Decimal `json:"tax"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// Cart is an in-memory cart, safe for concurrent use.
type Cart struct {
	mu    sync.RWMutex
	items []model.CartItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts one unit of p in the cart. A product already in the cart gets
// its quantity incremented.
func (c *Cart) Add(p model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID == p.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, model.CartItem{Product: p, Quantity: 1})
}

// SetQuantity changes the quantity of a line. qty <= 0 removes it. It
// reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID, qty int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Product.ID != productID {
			continue
		}
		if qty <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = qty
		}
		return true
	}
	return false
}

// Remove drops a line. It reports whether the product was in the cart.
func (c *Cart) Remove(productID int) bool {
	return c.SetQuantity(productID, 0)
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []model.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.CartItem{}, c.items...)
}

// Totals computes subtotal, delivery fee, tax and total. Delivery is free
// for an empty cart and from 50 up.
func (c *Cart) Totals() Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sub := decimal.Zero
	for _, it := range c.items {
		sub = sub.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	fee := decimal.Zero
	if sub.IsPositive() && sub.LessThan(freeDeliveryFrom) {
		fee = deliveryFee
	}
	tax := sub.Mul(taxRate).Round(2)
	return Totals{
		SubTotal:    sub,
		DeliveryFee: fee,
		Tax:         tax,
		TotalPrice:  sub.Add(fee).Add(tax),
	}
}

// Package backend is an in-memory catalog REST backend. It serves the
// endpoints the gateway consumes and is used for local runs and tests.
package backend

import (
	_ "embed"
	"os"
	"sort"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/product-catalog-store/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedProduct struct {
	ID              int    `yaml:"id"`
	ProductName     string `yaml:"productName"`
	ProductCode     string `yaml:"productCode"`
	Description     string `yaml:"description"`
	Price           string `yaml:"price"`
	QuantityInStock int    `yaml:"quantityInStock"`
	HasReviews      bool   `yaml:"hasReviews"`
}

type seedReview struct {
	ID        int    `yaml:"id"`
	ProductID int    `yaml:"productId"`
	UserName  string `yaml:"userName"`
	Title     string `yaml:"title"`
	Text      string `yaml:"text"`
}

type seed struct {
	Products []seedProduct `yaml:"products"`
	Reviews  []seedReview  `yaml:"reviews"`
}

// Repository holds products and reviews.
type Repository struct {
	mu       sync.RWMutex
	products map[int]model.Product
	reviews  map[int][]model.Review
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		products: make(map[int]model.Product),
		reviews:  make(map[int][]model.Review),
	}
}

// DefaultRepository returns a repository loaded with the embedded catalog.
func DefaultRepository() (*Repository, error) {
	return LoadSeed(defaultSeed)
}

// LoadSeedFile reads a YAML catalog from path.
func LoadSeedFile(path string) (*Repository, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed")
	}
	return LoadSeed(b)
}

// LoadSeed parses a YAML catalog with top-level products and reviews lists.
func LoadSeed(data []byte) (*Repository, error) {
	var sd seed
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return nil, errors.Wrap(err, "parse seed")
	}
	r := NewRepository()
	for _, sp := range sd.Products {
		if sp.ID <= 0 {
			return nil, errors.Errorf("seed product %q: id must be positive", sp.ProductName)
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "seed product %d: price", sp.ID)
		}
		r.Put(model.Product{
			ID:              sp.ID,
			ProductName:     sp.ProductName,
			ProductCode:     sp.ProductCode,
			Description:     sp.Description,
			Price:           price,
			QuantityInStock: sp.QuantityInStock,
			HasReviews:      sp.HasReviews,
		})
	}
	for _, sr := range sd.Reviews {
		if _, ok := r.Get(sr.ProductID); !ok {
			return nil, errors.Errorf("seed review %d: unknown product %d", sr.ID, sr.ProductID)
		}
		r.AddReview(model.Review(sr))
	}
	return r, nil
}

// Put inserts or replaces a product.
func (r *Repository) Put(p model.Product) {
	p.Reviews = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

// AddReview appends a review to its product's list.
func (r *Repository) AddReview(rv model.Review) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews[rv.ProductID] = append(r.reviews[rv.ProductID], rv)
}

// Get returns a product by id.
func (r *Repository) Get(id int) (model.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	return p, ok
}

// List returns all products ordered by id.
func (r *Repository) List() []model.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reviews returns the reviews of a product, never nil.
func (r *Repository) Reviews(productID int) []model.Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Review{}, r.reviews[productID]...)
}

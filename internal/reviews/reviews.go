// Package reviews looks up the reviews attached to a product.
package reviews

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fairyhunter13/product-catalog-store/internal/model"
)

// Getter is the slice of the catalog gateway the lookup needs.
type Getter interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out any, elem ...string) error
}

// Service fetches reviews through the catalog gateway.
type Service struct {
	gw Getter
}

// NewService returns a review lookup backed by gw.
func NewService(gw Getter) *Service {
	return &Service{gw: gw}
}

// ReviewPath returns the path and query used to list a product's reviews,
// relative to the catalog base URL.
func ReviewPath(productID int) (string, url.Values) {
	return "reviews", url.Values{"productId": {strconv.Itoa(productID)}}
}

// ReviewURL renders ReviewPath as a relative URL, e.g. "reviews?productId=5".
func ReviewURL(productID int) string {
	p, q := ReviewPath(productID)
	return p + "?" + q.Encode()
}

// ForProduct returns the reviews of productID. Reviews belonging to other
// products are dropped.
func (s *Service) ForProduct(ctx context.Context, productID int) ([]model.Review, error) {
	p, q := ReviewPath(productID)
	var rs []model.Review
	if err := s.gw.GetJSON(ctx, "reviews", q, &rs, p); err != nil {
		return nil, err
	}
	out := make([]model.Review, 0, len(rs))
	for _, r := range rs {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

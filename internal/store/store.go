// Package store holds the product catalog state shown to the UI: the
// product list, the current selection and the selected product's detail.
//
// The list is fetched once and shared by every caller. The detail is
// resolved by a pipeline that runs on each selection; only the result for
// the most recent selection is ever published. Fetch failures never escape
// as Go errors: they end up as the Error field of a model.Result.
package store

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/product-catalog-store/internal/errfmt"
	"github.com/fairyhunter13/product-catalog-store/internal/model"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
)

// ErrClosed is returned by WaitFor once the store has been closed.
var ErrClosed = errors.New("store closed")

const productsKey = "products"

// ProductSource fetches products from the catalog backend.
type ProductSource interface {
	Products(ctx context.Context) ([]model.Product, error)
	Product(ctx context.Context, id int) (model.Product, error)
}

// ReviewLookup fetches the reviews of one product.
type ReviewLookup interface {
	ForProduct(ctx context.Context, productID int) ([]model.Review, error)
}

// ErrorFormatter turns a fetch error into a display message.
type ErrorFormatter interface {
	FormatError(err error) string
}

// State is a point-in-time copy of everything the store exposes.
type State struct {
	Products       model.Result[[]model.Product] `json:"products"`
	ProductsLoaded bool                          `json:"productsLoaded"`
	SelectedID     int                           `json:"selectedId"`
	Detail         model.Result[*model.Product]  `json:"detail"`
	DetailLoading  bool                          `json:"detailLoading"`
	Generation     uint64                        `json:"generation"`
}

// EventKind names what changed in an Event.
type EventKind string

const (
	ProductsLoaded   EventKind = "products_loaded"
	SelectionChanged EventKind = "selection_changed"
	DetailResolved   EventKind = "detail_resolved"
)

// Event is delivered to subscribers after every state change.
type Event struct {
	Kind  EventKind `json:"event"`
	State State     `json:"state"`
}

// Store is the product state store. It is safe for concurrent use.
type Store struct {
	src     ProductSource
	reviews ReviewLookup
	errs    ErrorFormatter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	flight singleflight.Group
	seq    Sequencer
	subs   *broadcaster

	mu            sync.RWMutex
	products      model.Result[[]model.Product]
	productsOK    bool
	listEpoch     uint64
	selected      int
	detail        model.Result[*model.Product]
	detailLoading bool
	cancelDetail  context.CancelFunc
	closed        bool
}

// New creates a Store. A nil errs falls back to errfmt.Formatter.
func New(src ProductSource, reviews ReviewLookup, errs ErrorFormatter) *Store {
	if errs == nil {
		errs = errfmt.Formatter{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		src:      src,
		reviews:  reviews,
		errs:     errs,
		ctx:      ctx,
		cancel:   cancel,
		subs:     newBroadcaster(),
		products: model.Result[[]model.Product]{Data: []model.Product{}},
	}
}

// Products returns the product list, fetching it on first use. Concurrent
// callers share one request and a successful list is replayed without
// further requests. A failed fetch is not kept: the next call fetches
// again. ctx bounds only the caller's wait.
func (s *Store) Products(ctx context.Context) model.Result[[]model.Product] {
	s.mu.RLock()
	if s.productsOK {
		r := s.products
		s.mu.RUnlock()
		return r
	}
	s.mu.RUnlock()

	ch := s.flight.DoChan(productsKey, func() (any, error) {
		return s.fetchProducts(), nil
	})
	return s.awaitProducts(ctx, ch)
}

// awaitProducts waits for the shared fetch. A result that is ready wins
// over a ctx that has ended.
func (s *Store) awaitProducts(ctx context.Context, ch <-chan singleflight.Result) model.Result[[]model.Product] {
	select {
	case res := <-ch:
		return res.Val.(model.Result[[]model.Product])
	default:
	}
	select {
	case res := <-ch:
		return res.Val.(model.Result[[]model.Product])
	case <-ctx.Done():
		select {
		case res := <-ch:
			return res.Val.(model.Result[[]model.Product])
		default:
		}
		return model.Result[[]model.Product]{Data: []model.Product{}, Error: s.errs.FormatError(ctx.Err())}
	}
}

// Reload discards the shared list and fetches a fresh one, which replaces
// the old list wholesale.
func (s *Store) Reload(ctx context.Context) model.Result[[]model.Product] {
	s.mu.Lock()
	s.productsOK = false
	s.listEpoch++
	s.mu.Unlock()
	s.flight.Forget(productsKey)
	return s.Products(ctx)
}

func (s *Store) fetchProducts() model.Result[[]model.Product] {
	s.mu.RLock()
	epoch := s.listEpoch
	if s.productsOK {
		r := s.products
		s.mu.RUnlock()
		return r
	}
	s.mu.RUnlock()

	ps, err := s.src.Products(s.ctx)
	var r model.Result[[]model.Product]
	if err != nil {
		r = model.Result[[]model.Product]{Data: []model.Product{}, Error: s.errs.FormatError(err)}
		obs.StoreFetches.WithLabelValues("products", "error").Inc()
		obs.Logger.Warn("products_fetch_failed", "error", err)
	} else {
		if ps == nil {
			ps = []model.Product{}
		}
		r = model.Result[[]model.Product]{Data: ps}
		obs.StoreFetches.WithLabelValues("products", "ok").Inc()
		obs.Logger.Info("products_fetched", "count", len(ps))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || epoch != s.listEpoch {
		return r
	}
	s.products = r
	s.productsOK = err == nil
	s.subs.publish(Event{Kind: ProductsLoaded, State: s.stateLocked()})
	return r
}

// SelectProduct makes id the current selection and starts resolving its
// detail. Any detail fetch still running for an earlier selection is
// superseded and its result discarded. Selecting the same id again fetches
// again. id <= 0 clears the selection. It returns the generation assigned
// to this selection, or 0 once the store is closed.
func (s *Store) SelectProduct(id int) uint64 {
	if id < 0 {
		id = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	gen := s.seq.Next()
	if s.cancelDetail != nil {
		s.cancelDetail()
		s.cancelDetail = nil
	}
	s.selected = id
	obs.Logger.Debug("product_selected", "product_id", id, "generation", gen)

	if id == 0 {
		s.detail = model.Result[*model.Product]{}
		s.detailLoading = false
		s.subs.publish(Event{Kind: SelectionChanged, State: s.stateLocked()})
		return gen
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelDetail = cancel
	s.detailLoading = true
	s.subs.publish(Event{Kind: SelectionChanged, State: s.stateLocked()})

	s.wg.Add(1)
	go s.resolveDetail(ctx, cancel, gen, id)
	return gen
}

func (s *Store) resolveDetail(ctx context.Context, cancel context.CancelFunc, gen uint64, id int) {
	defer s.wg.Done()
	defer cancel()

	r, outcome := s.fetchDetail(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.seq.Current() {
		obs.StoreFetches.WithLabelValues("detail", "stale").Inc()
		obs.Logger.Debug("detail_stale_dropped", "product_id", id, "generation", gen)
		return
	}
	s.detail = r
	s.detailLoading = false
	s.cancelDetail = nil
	obs.StoreFetches.WithLabelValues("detail", outcome).Inc()
	if r.Failed() {
		obs.Logger.Warn("detail_fetch_failed", "product_id", id, "error", r.Error)
	}
	s.subs.publish(Event{Kind: DetailResolved, State: s.stateLocked()})
}

// fetchDetail runs the detail pipeline: product by id, then its reviews
// when it has any.
func (s *Store) fetchDetail(ctx context.Context, id int) (model.Result[*model.Product], string) {
	if !s.knownProduct(id) {
		return model.Result[*model.Product]{}, "not_found"
	}
	p, err := s.src.Product(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Result[*model.Product]{}, "not_found"
	}
	if err != nil {
		return model.Result[*model.Product]{Error: s.errs.FormatError(err)}, "error"
	}
	if p.HasReviews {
		rs, err := s.reviews.ForProduct(ctx, p.ID)
		if err != nil {
			return model.Result[*model.Product]{Error: s.errs.FormatError(err)}, "error"
		}
		p = p.WithReviews(rs)
	}
	return model.Result[*model.Product]{Data: &p}, "ok"
}

// knownProduct reports false only when a loaded list lacks id.
func (s *Store) knownProduct(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.productsOK {
		return true
	}
	for _, p := range s.products.Data {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) stateLocked() State {
	return State{
		Products:       s.products,
		ProductsLoaded: s.productsOK,
		SelectedID:     s.selected,
		Detail:         s.detail,
		DetailLoading:  s.detailLoading,
		Generation:     s.seq.Current(),
	}
}

// State returns a snapshot of the whole store.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// ProductsSnapshot returns the current list result without fetching.
func (s *Store) ProductsSnapshot() model.Result[[]model.Product] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

// Detail returns the resolved detail of the current selection.
func (s *Store) Detail() model.Result[*model.Product] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detail
}

// SelectedID returns the current selection, 0 for none.
func (s *Store) SelectedID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Subscribe returns a channel of state change events and a function that
// ends the subscription. The channel is closed when the store closes.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.subs.subscribe()
}

// SubscriberCount returns the number of open subscriptions.
func (s *Store) SubscriberCount() int { return s.subs.size() }

// WaitFor blocks until the store state satisfies pred or ctx ends.
func (s *Store) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	if st := s.State(); pred(st) {
		return st, nil
	}
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return s.State(), ErrClosed
			}
			if pred(ev.State) {
				return ev.State, nil
			}
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

// Close cancels in-flight fetches, waits for them and ends every
// subscription. The store ignores selections afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancelDetail != nil {
		s.cancelDetail()
		s.cancelDetail = nil
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.subs.close()
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/product-catalog-store/internal/cart"
	"github.com/fairyhunter13/product-catalog-store/internal/config"
	httpopenapi "github.com/fairyhunter13/product-catalog-store/internal/http/openapi"
	"github.com/fairyhunter13/product-catalog-store/internal/model"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
	"github.com/fairyhunter13/product-catalog-store/internal/store"
	"github.com/fairyhunter13/product-catalog-store/internal/view"
)

type App struct {
	Cfg     config.Config
	Store   *store.Store
	Cart    *cart.Cart
	closing atomic.Bool
	started time.Time
}

type selectAck struct {
	Status     string `json:"status"`
	RequestID  string `json:"request_id"`
	SelectedID int    `json:"selected_id"`
	Generation uint64 `json:"generation"`
}

type cartView struct {
	Items  []model.CartItem `json:"items"`
	Totals cart.Totals      `json:"totals"`
}

type addToCartRequest struct {
	ProductID int `json:"product_id"`
}

func NewApp(cfg config.Config, st *store.Store, c *cart.Cart) *App {
	return &App{Cfg: cfg, Store: st, Cart: c, started: time.Now()}
}

// StartShutdown makes state-changing endpoints answer 503.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	res := a.Store.Products(r.Context())
	st := a.Store.State()
	st.Products = res
	writeJSON(w, http.StatusOK, view.List(st))
}

func (a *App) selectProductHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	id, ok := pathID(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "id must be a non-negative integer")
		return
	}
	gen := a.Store.SelectProduct(id)
	ac := selectAck{
		Status:     "accepted",
		RequestID:  RequestIDFromContext(r.Context()),
		SelectedID: id,
		Generation: gen,
	}
	writeJSON(w, http.StatusAccepted, ac)
	obs.Logger.Info("product_selected",
		"request_id", ac.RequestID,
		"product_id", id,
		"generation", ac.Generation,
	)
}

func (a *App) clearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	a.Store.SelectProduct(0)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) selectedProductHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Store.State()
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && st.DetailLoading {
		ctx, cancel := context.WithTimeout(r.Context(), a.Cfg.ViewWaitTimeout)
		defer cancel()
		st, _ = a.Store.WaitFor(ctx, func(s store.State) bool { return !s.DetailLoading })
	}
	writeJSON(w, http.StatusOK, view.Detail(st))
}

func (a *App) cartView() cartView {
	return cartView{Items: a.Cart.Items(), Totals: a.Cart.Totals()}
}

func (a *App) getCartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.cartView())
}

func (a *App) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req addToCartRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID <= 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}
	p, ok := a.lookupProduct(r.Context(), req.ProductID)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "product is not in the catalog")
		return
	}
	a.Cart.Add(p)
	obs.Logger.Info("cart_item_added", "request_id", RequestIDFromContext(r.Context()), "product_id", p.ID)
	writeJSON(w, http.StatusCreated, a.cartView())
}

// lookupProduct prefers the resolved detail, which carries reviews, and
// falls back to the product list.
func (a *App) lookupProduct(ctx context.Context, id int) (model.Product, bool) {
	if d := a.Store.Detail().Data; d != nil && d.ID == id {
		return *d, true
	}
	for _, p := range a.Store.Products(ctx).Data {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

func (a *App) removeFromCartHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "id must be a non-negative integer")
		return
	}
	if !a.Cart.Remove(id) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Store.State()
	m := map[string]any{
		"products_loaded": st.ProductsLoaded,
		"product_count":   len(st.Products.Data),
		"selected_id":     st.SelectedID,
		"generation":      st.Generation,
		"detail_loading":  st.DetailLoading,
		"cart_items":      len(a.Cart.Items()),
		"subscribers":     a.Store.SubscriberCount(),
		"uptime_sec":      time.Since(a.started).Seconds(),
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Product Catalog API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}

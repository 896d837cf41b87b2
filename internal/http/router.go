package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/product-catalog-store/internal/obs"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()
	r.Use(withMetrics)

	r.HandleFunc("/products", app.listProductsHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/selected", app.selectedProductHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/selected", app.clearSelectionHandler).Methods(http.MethodDelete)
	r.HandleFunc("/products/{id}/select", app.selectProductHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart", app.getCartHandler).Methods(http.MethodGet)
	r.HandleFunc("/cart", app.addToCartHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/{id}", app.removeFromCartHandler).Methods(http.MethodDelete)
	r.HandleFunc("/ws", app.wsHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", app.healthHandler)
	r.Handle("/metrics", obs.MetricsHandler())
	r.HandleFunc("/debug/metrics", app.metricsHandler)
	r.Handle("/debug/vars", expvar.Handler())
	r.HandleFunc("/openapi.yaml", app.openapiHandler)
	r.HandleFunc("/docs", app.docsHandler)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(r))
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/product-catalog-store/internal/backend"
	"github.com/fairyhunter13/product-catalog-store/internal/cart"
	"github.com/fairyhunter13/product-catalog-store/internal/config"
	"github.com/fairyhunter13/product-catalog-store/internal/errfmt"
	"github.com/fairyhunter13/product-catalog-store/internal/gateway"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
	"github.com/fairyhunter13/product-catalog-store/internal/reviews"
	"github.com/fairyhunter13/product-catalog-store/internal/store"
	"github.com/fairyhunter13/product-catalog-store/internal/view"
)

func setupApp(t *testing.T, opts backend.Options) (*App, *backend.Server, http.Handler) {
	t.Helper()
	cfg := config.Load()
	cfg.ViewWaitTimeout = 2 * time.Second
	obs.InitLogger("error")

	repo, err := backend.DefaultRepository()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	bs := backend.NewServer(repo, opts)
	upstream := httptest.NewServer(bs.Handler())
	t.Cleanup(upstream.Close)

	gw, err := gateway.New(upstream.URL + "/api")
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	st := store.New(gw, reviews.NewService(gw), errfmt.Formatter{})
	t.Cleanup(st.Close)
	app := NewApp(cfg, st, cart.New())
	return app, bs, NewRouter(app)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func selectAndWait(t *testing.T, h http.Handler, id string) view.DetailView {
	t.Helper()
	rr := do(h, http.MethodPost, "/products/"+id+"/select", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("select: expected 202, got %d", rr.Code)
	}
	rr = do(h, http.MethodGet, "/products/selected?wait=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", rr.Code)
	}
	var d view.DetailView
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	return d
}

func TestOpenAPIServed(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	rr := do(mux, http.MethodGet, "/openapi.yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi yaml: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("unexpected openapi version: %v", doc["openapi"])
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/products", "/products/{id}/select", "/products/selected", "/cart", "/ws"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("openapi missing path %s", p)
		}
	}
}

func TestDocsServed(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	rr := do(mux, http.MethodGet, "/docs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "test-req-1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Request-Id"); got != "test-req-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	rr = do(mux, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestListProducts(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	rr := do(mux, http.MethodGet, "/products", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var lv view.ListView
	if err := json.Unmarshal(rr.Body.Bytes(), &lv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lv.PageTitle != "Products" || len(lv.Products) != 5 || lv.ErrorMessage != "" {
		t.Fatalf("unexpected list: %+v", lv)
	}
	if lv.Products[0].Price != "$19.95" {
		t.Fatalf("unexpected price: %s", lv.Products[0].Price)
	}
}

func TestListProducts_BackendFailure(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{FailStatus: http.StatusServiceUnavailable})
	rr := do(mux, http.MethodGet, "/products", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var lv view.ListView
	if err := json.Unmarshal(rr.Body.Bytes(), &lv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lv.Products) != 0 {
		t.Fatalf("expected no products, got %d", len(lv.Products))
	}
	if lv.ErrorMessage != "Server returned code: 503, error message is: injected_failure" {
		t.Fatalf("unexpected error message: %q", lv.ErrorMessage)
	}
}

func TestSelectProduct_DetailWithReviews(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	d := selectAndWait(t, mux, "5")
	if d.Product == nil || d.Product.ID != 5 {
		t.Fatalf("unexpected detail: %+v", d)
	}
	if d.PageTitle != "Product Detail for: Hammer" || d.Price != "$8.90" {
		t.Fatalf("unexpected detail presentation: %+v", d)
	}
	if len(d.Reviews) != 2 || d.Loading || d.ErrorMessage != "" {
		t.Fatalf("unexpected reviews/error: %+v", d)
	}
}

func TestSelectProduct_UnknownIsEmptyNotError(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	d := selectAndWait(t, mux, "404")
	if d.Product != nil || d.ErrorMessage != "" || d.PageTitle != "Product Detail" {
		t.Fatalf("unexpected detail: %+v", d)
	}
}

func TestSelectProduct_InvalidID(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	rr := do(mux, http.MethodPost, "/products/abc/select", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = do(mux, http.MethodGet, "/products/5/select", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestClearSelection(t *testing.T) {
	app, _, mux := setupApp(t, backend.Options{})
	selectAndWait(t, mux, "1")
	rr := do(mux, http.MethodDelete, "/products/selected", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if app.Store.SelectedID() != 0 || app.Store.Detail().Data != nil {
		t.Fatalf("expected cleared selection")
	}
}

func TestCart(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	selectAndWait(t, mux, "1")

	rr := do(mux, http.MethodPost, "/cart", `{"product_id":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(mux, http.MethodPost, "/cart", `{"product_id":8}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	rr = do(mux, http.MethodPost, "/cart", `{"product_id":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = do(mux, http.MethodGet, "/cart", "")
	var cv struct {
		Items []struct {
			Product  struct{ ID int } `json:"product"`
			Quantity int              `json:"quantity"`
		} `json:"items"`
		Totals struct {
			SubTotal string `json:"subTotal"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cv); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cv.Items) != 2 || cv.Items[0].Quantity != 2 || cv.Items[1].Product.ID != 8 {
		t.Fatalf("unexpected cart: %+v", cv)
	}
	if cv.Totals.SubTotal != "51.45" {
		t.Fatalf("unexpected subtotal: %s", cv.Totals.SubTotal)
	}

	if rr := do(mux, http.MethodDelete, "/cart/8", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodDelete, "/cart/8", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCart_Validation(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	if rr := do(mux, http.MethodPost, "/cart", `{"product_id":999}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodPost, "/cart", `{"product_id":1,"foo":"bar"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodPost, "/cart", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/cart", bytes.NewBufferString(`{"product_id":1}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestShutdownBehavior(t *testing.T) {
	app, _, mux := setupApp(t, backend.Options{})
	app.StartShutdown()
	if rr := do(mux, http.MethodPost, "/products/1/select", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodPost, "/cart", `{"product_id":1}`); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodGet, "/products", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads keep working, got %d", rr.Code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	_ = do(mux, http.MethodGet, "/products", "")

	rr := do(mux, http.MethodGet, "/debug/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("metrics json decode: %v", err)
	}
	if m["products_loaded"] != true {
		t.Fatalf("expected products_loaded true, got %v", m["products_loaded"])
	}

	rr = do(mux, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `catalog_store_http_requests_total{method="GET",route="/products",status="200"}`) {
		t.Fatalf("expected route-labelled request counter")
	}
	if !strings.Contains(body, "catalog_store_gateway_requests_total") {
		t.Fatalf("expected gateway counter")
	}
}

func TestNotFoundRoute(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	rr := do(mux, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var e jsonError
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Error != "not_found" || e.RequestID != rr.Header().Get("X-Request-Id") {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestWebsocketStream(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Event != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", msg.Event)
	}

	if err := conn.WriteJSON(wsCommand{Type: "select", ID: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Event == string(store.DetailResolved) {
			break
		}
	}
	if msg.Detail.Product == nil || msg.Detail.Product.ID != 2 || len(msg.Detail.Reviews) != 1 {
		t.Fatalf("unexpected detail over ws: %+v", msg.Detail)
	}
}

func TestWebsocketCommandsRunInOrder(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{Latency: 50 * time.Millisecond})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	for _, cmd := range []wsCommand{{Type: "reload"}, {Type: "reload"}, {Type: "select", ID: 8}} {
		if err := conn.WriteJSON(cmd); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var kinds []string
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		kinds = append(kinds, msg.Event)
		if msg.Event == string(store.DetailResolved) {
			break
		}
	}
	// Each reload finishes before the next command is read.
	want := []string{
		string(store.ProductsLoaded),
		string(store.ProductsLoaded),
		string(store.SelectionChanged),
		string(store.DetailResolved),
	}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event order: %v", kinds)
	}
}

func TestSelectAckCarriesOwnGeneration(t *testing.T) {
	_, _, mux := setupApp(t, backend.Options{})
	for want := uint64(1); want <= 3; want++ {
		rr := do(mux, http.MethodPost, "/products/1/select", "")
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rr.Code)
		}
		var ack selectAck
		if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Generation != want || ack.SelectedID != 1 {
			t.Fatalf("unexpected ack: %+v", ack)
		}
	}
}

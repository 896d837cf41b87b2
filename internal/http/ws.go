package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairyhunter13/product-catalog-store/internal/obs"
	"github.com/fairyhunter13/product-catalog-store/internal/store"
	"github.com/fairyhunter13/product-catalog-store/internal/view"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsMessage is pushed to websocket clients on connect and on every store
// event.
type wsMessage struct {
	Event  string          `json:"event"`
	List   view.ListView   `json:"list"`
	Detail view.DetailView `json:"detail"`
}

// wsCommand is what clients send: {"type":"select","id":5}.
type wsCommand struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

func messageFor(kind string, st store.State) wsMessage {
	return wsMessage{Event: kind, List: view.List(st), Detail: view.Detail(st)}
}

// wsHandler streams store state and forwards select commands into the
// store.
func (a *App) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		obs.Logger.Warn("ws_upgrade_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		return
	}
	reqID := RequestIDFromContext(r.Context())
	obs.Logger.Info("ws_connected", "request_id", reqID)

	events, unsubscribe := a.Store.Subscribe()
	done := make(chan struct{})
	go a.wsReadLoop(conn, done, reqID)

	defer func() {
		unsubscribe()
		_ = conn.Close()
		obs.Logger.Info("ws_disconnected", "request_id", reqID)
	}()

	if err := wsWrite(conn, messageFor("snapshot", a.Store.State())); err != nil {
		return
	}
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "store closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := wsWrite(conn, messageFor(string(ev.Kind), ev.State)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func wsWrite(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func (a *App) wsReadLoop(conn *websocket.Conn, done chan<- struct{}, reqID string) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		switch cmd.Type {
		case "select":
			if a.closing.Load() {
				continue
			}
			gen := a.Store.SelectProduct(cmd.ID)
			obs.Logger.Info("product_selected", "request_id", reqID, "product_id", cmd.ID, "generation", gen, "via", "ws")
		case "reload":
			// Inline so one connection runs at most one reload at a time.
			ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ViewWaitTimeout)
			a.Store.Reload(ctx)
			cancel()
		default:
			obs.Logger.Debug("ws_unknown_command", "request_id", reqID, "type", cmd.Type)
		}
	}
}

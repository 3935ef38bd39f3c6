package guide

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weft-dev/weft/pkg/protocol"
)

// ReloadPath is the WebSocket endpoint the guide's reload script
// connects to in --dir mode.
const ReloadPath = "/weft/reload"

// reloadHub fans a reload message out to every open guide tab.
type reloadHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	up      websocket.Upgrader
	codec   protocol.Codec
	logger  zerolog.Logger
}

func newReloadHub(logger zerolog.Logger) *reloadHub {
	return &reloadHub{
		clients: make(map[*websocket.Conn]bool),
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The guide serves a local working copy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// handle upgrades the connection and parks it until the browser goes
// away.
func (h *reloadHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast sends a reload message to every client, dropping the ones
// that fail to take it.
func (h *reloadHub) broadcast(reason string) {
	data, err := h.codec.Encode(protocol.NewReload(reason))
	if err != nil {
		h.logger.Error().Err(err).Msg("encode reload")
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}
	}
}

func (h *reloadHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *reloadHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

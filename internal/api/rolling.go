package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/draw"
	"github.com/minqi/luckydraw/internal/event"
)

// The feed ticks at the animation rate of the original stage display.
const rollingTick = 50 * time.Millisecond

const maskedName = "●●●"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is same-app presentation; the desktop shell serves from a
	// local origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

type rollingMessage struct {
	Type    string   `json:"type"`
	Name    string   `json:"name,omitempty"`
	Winners []string `json:"winners,omitempty"`
}

// rollingHub fans the cosmetic rolling names and the celebration signal out
// to connected clients. It only ever reads from the engine; winner
// selection never depends on it.
type rollingHub struct {
	engine *draw.Engine

	mu      sync.Mutex
	clients map[*websocket.Conn]chan rollingMessage
}

func newRollingHub(engine *draw.Engine) *rollingHub {
	return &rollingHub{
		engine:  engine,
		clients: make(map[*websocket.Conn]chan rollingMessage),
	}
}

// onDrawCompleted broadcasts the celebration exactly once per winner set;
// the engine's idempotence marker already guarantees no duplicates reach
// us.
func (h *rollingHub) onDrawCompleted(_ context.Context, e event.Event) error {
	ev := e.(domain.EventDrawCompleted)

	names := make([]string, len(ev.Winners))
	for i, w := range ev.Winners {
		names[i] = w.Name
	}

	h.broadcast(rollingMessage{Type: "winners", Winners: names})
	return nil
}

func (h *rollingHub) broadcast(msg rollingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow consumer; drop the frame rather than block the bus.
			_ = conn
		}
	}
}

func (h *rollingHub) add(conn *websocket.Conn) chan rollingMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan rollingMessage, 16)
	h.clients[conn] = ch
	return ch
}

func (h *rollingHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// rollingFeed streams random eligible names while the engine is rolling.
// The stream goes quiet the moment isDrawing flips false; nothing here
// mutates session state.
func (a *API) rollingFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := a.hub.add(conn)
	defer a.hub.remove(conn)

	// Discard client frames; the feed is one-way.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(rollingTick)
	defer ticker.Stop()

	for {
		select {
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			name, ok := a.engine.RollingName()
			if !ok {
				continue
			}
			if a.engine.Config().HideNamesWhileRolling {
				name = maskedName
			}
			if err := conn.WriteJSON(rollingMessage{Type: "rolling", Name: name}); err != nil {
				return
			}

		case <-c.Request.Context().Done():
			return
		}
	}
}

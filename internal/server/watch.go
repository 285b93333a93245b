package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// RevisionUpdate is pushed to watchers after every committed write, so
// an editing client can learn that its loaded revision went stale before
// its next save fails the concurrency check.
type RevisionUpdate struct {
	PropertyID string `json:"propertyId"`
	Version    string `json:"version"`
	Revision   int64  `json:"revision"`
}

// WatchHub fans revision updates out to connected websocket clients.
type WatchHub struct {
	mu      sync.Mutex
	nextID  int
	watches map[int]chan RevisionUpdate
}

// NewWatchHub creates an empty hub.
func NewWatchHub() *WatchHub {
	return &WatchHub{watches: make(map[int]chan RevisionUpdate)}
}

// Broadcast delivers an update to every watcher. Slow watchers drop
// updates rather than block the write path.
func (h *WatchHub) Broadcast(update RevisionUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.watches {
		select {
		case ch <- update:
		default:
			log.Printf("watch: dropping update for slow watcher %d", id)
		}
	}
}

func (h *WatchHub) register() (int, chan RevisionUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan RevisionUpdate, 16)
	h.watches[id] = ch
	return id, ch
}

func (h *WatchHub) unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watches, id)
}

// ServeHTTP upgrades to a websocket and streams revision updates until
// the client goes away.
func (h *WatchHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("watch: accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id, updates := h.register()
	defer h.unregister(id)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, update)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

package server

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single client write so one stalled browser cannot
// hold up state pushes to the others.
const writeWait = 2 * time.Second

// Hub fans state messages out to the connected browsers.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	broadcast  chan Message
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	quit     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan Message, 32),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
	}
}

// Run owns the client set until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[Server] Browser connected (%d open).", n)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				log.Println("[Server] Browser disconnected.")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := send(c, msg); err != nil {
					log.Printf("[Server] Dropping browser after %s push failed: %v", msg.Type, err)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *websocket.Conn) {
	c.Close()
	delete(h.clients, c)
}

func send(c *websocket.Conn, msg Message) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.WriteJSON(msg)
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues msg for every client; it is a no-op once stopped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// Clients reports how many browsers are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

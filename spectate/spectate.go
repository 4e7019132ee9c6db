// Package spectate serves a live view of a running search over a
// websocket, broadcasting JSON snapshots of the root's visit distribution
// as it evolves. It is the server-side mirror of
// scraper/downloader/downloader.go's long-lived websocket client: that
// file dials out and decodes a stream of game-replay frames; this package
// accepts connections and encodes a stream of search frames, the same
// read/decode-or-write/encode loop shape, inverted.
package spectate

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/search"
)

// Frame is one broadcast snapshot of a running search.
type Frame struct {
	ToMove    string             `json:"to_move"`
	NodeCount int64              `json:"node_count"`
	Visits    []search.VisitCount `json:"visits"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades HTTP connections to websockets and pushes Frames for
// whichever *search.Search it is currently watching, at a fixed tick
// interval.
type Server struct {
	Interval time.Duration

	mu      sync.RWMutex
	current *search.Search

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// NewServer returns a Server that ticks every interval (5 times a second
// if interval is zero).
func NewServer(interval time.Duration) *Server {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Server{Interval: interval, clients: make(map[*websocket.Conn]struct{})}
}

// Watch points the server at s; subsequent frames reflect s until Watch
// is called again.
func (srv *Server) Watch(s *search.Search) {
	srv.mu.Lock()
	srv.current = s
	srv.mu.Unlock()
}

// ServeHTTP upgrades the connection and registers it to receive frames
// until it disconnects.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("spectate: upgrade failed: %v", err)
		return
	}

	srv.clientsMu.Lock()
	srv.clients[conn] = struct{}{}
	srv.clientsMu.Unlock()

	defer func() {
		srv.clientsMu.Lock()
		delete(srv.clients, conn)
		srv.clientsMu.Unlock()
		conn.Close()
	}()

	// Drain and discard client messages so the read side stays alive and
	// close frames are noticed promptly; spectators never send commands.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run broadcasts frames on Interval until stop is closed.
func (srv *Server) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(srv.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			srv.broadcast()
		}
	}
}

func (srv *Server) broadcast() {
	srv.mu.RLock()
	s := srv.current
	srv.mu.RUnlock()
	if s == nil {
		return
	}

	toMove := "black"
	if s.RootPosition().ToMove() == board.White {
		toMove = "white"
	}
	frame := Frame{ToMove: toMove, NodeCount: s.NodeCount(), Visits: s.VisitDistribution()}
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("spectate: marshal frame: %v", err)
		return
	}

	srv.clientsMu.Lock()
	defer srv.clientsMu.Unlock()
	for conn := range srv.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("spectate: write to client failed: %v", err)
			conn.Close()
			delete(srv.clients, conn)
		}
	}
}

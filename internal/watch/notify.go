package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notifier broadcasts module reload events to connected WebSocket
// clients, so development tooling can react without polling.
type Notifier struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *Message
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// Message is a reload notification sent to clients.
type Message struct {
	Type      string `json:"type"` // "reload", "unload", "error"
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewNotifier creates a notifier and starts its hub goroutine.
func NewNotifier(log *zap.Logger) *Notifier {
	n := &Notifier{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *Message, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// Local development clients only
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go n.run()

	return n
}

// run handles the connection lifecycle
func (n *Notifier) run() {
	for {
		select {
		case <-n.done:
			return

		case conn := <-n.register:
			n.mutex.Lock()
			n.connections[conn] = true
			total := len(n.connections)
			n.mutex.Unlock()
			n.log.Debug("reload client connected", zap.Int("total", total))

		case conn := <-n.unregister:
			n.mutex.Lock()
			if _, ok := n.connections[conn]; ok {
				delete(n.connections, conn)
				conn.Close()
			}
			total := len(n.connections)
			n.mutex.Unlock()
			n.log.Debug("reload client disconnected", zap.Int("total", total))

		case message := <-n.broadcast:
			n.sendToAll(message)
		}
	}
}

// sendToAll sends a message to all connected clients
func (n *Notifier) sendToAll(message *Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		n.log.Warn("failed to marshal reload message", zap.Error(err))
		return
	}

	n.mutex.RLock()
	var failed []*websocket.Conn
	for conn := range n.connections {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			failed = append(failed, conn)
		}
	}
	n.mutex.RUnlock()

	if len(failed) > 0 {
		n.mutex.Lock()
		for _, conn := range failed {
			if _, ok := n.connections[conn]; ok {
				conn.Close()
				delete(n.connections, conn)
			}
		}
		n.mutex.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (n *Notifier) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	n.register <- conn

	go n.readMessages(conn)
}

// readMessages drains client messages for keepalive
func (n *Notifier) readMessages(conn *websocket.Conn) {
	defer func() {
		n.unregister <- conn
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// NotifyReload announces a successful module reload.
func (n *Notifier) NotifyReload(path string) {
	n.broadcast <- &Message{
		Type:      "reload",
		Path:      path,
		Timestamp: time.Now().Unix(),
	}
}

// NotifyUnload announces a module removal.
func (n *Notifier) NotifyUnload(path string) {
	n.broadcast <- &Message{
		Type:      "unload",
		Path:      path,
		Timestamp: time.Now().Unix(),
	}
}

// NotifyError announces a failed reload.
func (n *Notifier) NotifyError(path string, err error) {
	n.broadcast <- &Message{
		Type:      "error",
		Path:      path,
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	}
}

// ConnectionCount returns the number of active connections
func (n *Notifier) ConnectionCount() int {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return len(n.connections)
}

// Close closes all connections and stops the hub
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
	})

	n.mutex.Lock()
	defer n.mutex.Unlock()

	for conn := range n.connections {
		conn.Close()
	}
	n.connections = make(map[*websocket.Conn]bool)
}

package notifier

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client owns the only writer goroutine of one connection.
type client struct {
	conn      conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// Notifier pushes balance updates to every open websocket of a user.
// Sends never wait on a socket: a client whose queue is full is dropped.
type Notifier struct {
	clients map[string]map[conn]*client
	mu      sync.Mutex
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Notifier {
	return &Notifier{
		clients: make(map[string]map[conn]*client),
		logger:  logger,
	}
}

func (n *Notifier) Register(username string, c conn) {
	cl := &client{conn: c, send: make(chan []byte, sendBuffer)}

	n.mu.Lock()
	if n.clients[username] == nil {
		n.clients[username] = make(map[conn]*client)
	}
	n.clients[username][c] = cl
	n.mu.Unlock()

	go n.writePump(username, cl)
}

func (n *Notifier) Unregister(username string, c conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cl, ok := n.clients[username][c]; ok {
		n.removeLocked(username, cl)
		return
	}
	c.Close()
}

func (n *Notifier) Connections(username string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients[username])
}

func (n *Notifier) NotifyBalance(username string, balance float64) {
	n.send(username, WSMessage{
		Type: "balance_update",
		Data: map[string]interface{}{
			"username": username,
			"balance":  balance,
		},
	})
}

func (n *Notifier) send(username string, message WSMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		n.logger.Error("marshal ws message", zap.Error(err))
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, cl := range n.clients[username] {
		select {
		case cl.send <- payload:
		default:
			n.logger.Warn("dropping slow websocket client", zap.String("username", username))
			n.removeLocked(username, cl)
		}
	}
}

func (n *Notifier) writePump(username string, cl *client) {
	for payload := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			n.logger.Warn("dropping websocket client",
				zap.String("username", username),
				zap.Error(err))
			n.drop(username, cl)
			return
		}
	}
}

func (n *Notifier) drop(username string, cl *client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(username, cl)
}

func (n *Notifier) removeLocked(username string, cl *client) {
	if conns, ok := n.clients[username]; ok && conns[cl.conn] == cl {
		delete(conns, cl.conn)
		if len(conns) == 0 {
			delete(n.clients, username)
		}
	}
	cl.close()
}

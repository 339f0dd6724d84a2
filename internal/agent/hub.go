package agent

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var hubLog = logrus.WithField("component", "hub")

// StateEntry is one bot's row in a full-state snapshot.
type StateEntry struct {
	Username    string `json:"username"`
	Status      Status `json:"status"`
	CurrentTask string `json:"currentTask"`
	PID         *int   `json:"pid"`
}

type stateMessage struct {
	Type string       `json:"type"`
	Data []StateEntry `json:"data"`
}

type taskMessage struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Task     string `json:"task"`
}

// Hub fans out state to connected dashboard observers: a full snapshot on
// connect and every interval, plus immediate task deltas. Observers are cheap
// idempotent consumers, so resending the whole snapshot is fine.
type Hub struct {
	snapshot func() []StateEntry
	interval time.Duration

	mu        sync.Mutex
	observers map[string]*observer
}

type observer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewHub(interval time.Duration, snapshot func() []StateEntry) *Hub {
	return &Hub{
		snapshot:  snapshot,
		interval:  interval,
		observers: make(map[string]*observer),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origin enforcement happens at the reverse proxy, not here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the connection and runs the push channel until the
// observer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hubLog.WithError(err).Warn("websocket upgrade failed")
		return
	}
	ob := &observer{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.observers[ob.id] = ob
	h.mu.Unlock()
	hubLog.WithField("observer", ob.id).Info("dashboard connected")

	go h.writePump(ob)
	go h.snapshotLoop(ob)
	go h.readPump(ob)
}

func (h *Hub) writePump(ob *observer) {
	defer ob.conn.Close()
	for {
		select {
		case <-ob.closed:
			return
		case msg := <-ob.send:
			_ = ob.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ob.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(ob)
				return
			}
		}
	}
}

// snapshotLoop sends the full state immediately, then on every tick for the
// life of the connection.
func (h *Hub) snapshotLoop(ob *observer) {
	h.sendSnapshot(ob)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ob.closed:
			return
		case <-t.C:
			h.sendSnapshot(ob)
		}
	}
}

func (h *Hub) sendSnapshot(ob *observer) {
	msg, err := json.Marshal(stateMessage{Type: "state", Data: h.snapshot()})
	if err != nil {
		return
	}
	ob.trySend(msg)
}

func (h *Hub) readPump(ob *observer) {
	ob.conn.SetReadLimit(1024)
	for {
		if _, _, err := ob.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(ob)
}

func (ob *observer) trySend(msg []byte) {
	select {
	case ob.send <- msg:
	case <-ob.closed:
	default:
		// slow observer, skip; the next snapshot catches it up
	}
}

func (h *Hub) drop(ob *observer) {
	h.mu.Lock()
	delete(h.observers, ob.id)
	h.mu.Unlock()
	ob.once.Do(func() {
		close(ob.closed)
		_ = ob.conn.Close()
		hubLog.WithField("observer", ob.id).Info("dashboard disconnected")
	})
}

// BroadcastTask pushes a task-change delta to every observer immediately,
// without waiting for the next snapshot tick.
func (h *Hub) BroadcastTask(username, task string) {
	msg, err := json.Marshal(taskMessage{Type: "task", Username: username, Task: task})
	if err != nil {
		return
	}
	h.mu.Lock()
	obs := make([]*observer, 0, len(h.observers))
	for _, ob := range h.observers {
		obs = append(obs, ob)
	}
	h.mu.Unlock()
	for _, ob := range obs {
		ob.trySend(msg)
	}
}

// Close drops every observer; used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	obs := make([]*observer, 0, len(h.observers))
	for _, ob := range h.observers {
		obs = append(obs, ob)
	}
	h.mu.Unlock()
	for _, ob := range obs {
		h.drop(ob)
	}
}

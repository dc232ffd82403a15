package apitest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// EventStatusChanged is the push event emitted after every accepted update
const EventStatusChanged = "estado_changed"

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// peer is one connected push subscriber. Writes are serialized by mu.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

// hub tracks the connected subscribers
type hub struct {
	mu    sync.Mutex
	peers map[*peer]struct{}
}

func newHub() *hub {
	return &hub{peers: make(map[*peer]struct{})}
}

func (h *hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
}

func (h *hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)
}

func (h *hub) snapshot() []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		out = append(out, p)
	}
	return out
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *hub) broadcast(frame []byte) {
	for _, p := range h.snapshot() {
		if err := p.write(frame); err != nil {
			slog.Debug("Dropping push subscriber", "error", err)
			h.remove(p)
			_ = p.conn.Close()
		}
	}
}

func (h *hub) closeAll() {
	for _, p := range h.snapshot() {
		h.remove(p)
		_ = p.conn.Close()
	}
}

// encodeEvent renders a status change as a push frame. Socket.IO style frames carry
// the "42" message prefix with an [event, payload] array.
func encodeEvent(id int64, status attendance.Status, socketIO bool) []byte {
	payload := attendance.Edit{ID: id, Status: status}
	var (
		frame []byte
		err   error
	)
	if socketIO {
		frame, err = json.Marshal([]any{EventStatusChanged, payload})
		frame = append([]byte("42"), frame...)
	} else {
		frame, err = json.Marshal(struct {
			Event string          `json:"event"`
			Data  attendance.Edit `json:"data"`
		}{EventStatusChanged, payload})
	}
	if err != nil {
		// Edit always marshals
		panic(err)
	}
	return frame
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Push upgrade failed", "error", err)
		return
	}
	p := &peer{conn: conn}
	s.hub.add(p)
	defer func() {
		s.hub.remove(p)
		_ = conn.Close()
	}()

	// Subscribers never send anything meaningful; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

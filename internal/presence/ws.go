package presence

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"image-drop/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

// CountEvent is the frame pushed to clients whenever the count changes.
type CountEvent struct {
	GuestCount int `json:"guestCount"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the request and keeps the client admitted until
// the connection closes. Client frames are read and discarded.
func HandleWebSocket(b *Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket_upgrade_failed", logging.Fields{"remote": r.RemoteAddr}, err)
			return
		}

		sess := b.Connect()
		go writePump(conn, sess)
		readPump(conn)

		// A closed or failed connection is a normal transition.
		b.Disconnect(sess.ID)
		_ = conn.Close()
	}
}

func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket_read_error", logging.Fields{"error": err.Error()})
			}
			return
		}
	}
}

// writePump is the only writer on conn. It exits when the session is
// disconnected or a write fails; closing conn on failure unblocks readPump.
func writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n := <-sess.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(CountEvent{GuestCount: n}); err != nil {
				logging.Debug("websocket_write_failed", logging.Fields{"session": sess.ID, "error": err.Error()})
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-sess.Done():
			return
		}
	}
}

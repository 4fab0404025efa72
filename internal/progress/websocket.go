package progress

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds each send so a stalled subscriber cannot block the hub;
// a timed-out write surfaces as a Send error and drops the subscriber.
const writeTimeout = 5 * time.Second

// WebsocketConn adapts a gorilla websocket connection to the hub's Conn
// contract. Writes are serialized; gorilla connections permit one concurrent
// writer.
type WebsocketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebsocketConn(conn *websocket.Conn) *WebsocketConn {
	return &WebsocketConn{conn: conn}
}

func (w *WebsocketConn) Send(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(event)
}

func (w *WebsocketConn) Close() error {
	return w.conn.Close()
}

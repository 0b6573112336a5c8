// ABOUTME: WebSocket client transport for relay sessions
// ABOUTME: Serializes concurrent event writes onto one connection
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicebridge/voicebridge-go/pkg/protocol"
)

const clientWriteWait = 10 * time.Second

// wsTransport adapts a gorilla connection to ClientTransport. Reads
// happen from one goroutine; writes come from the read loop and the
// upstream pump, so they go through a mutex.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) SendEvent(ev protocol.ServerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

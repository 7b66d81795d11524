package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/smilemakc/floorplan/pkg/models"
)

// sseSink writes one progress event per Server-Sent Event frame and flushes
// immediately so a subscriber sees it as soon as Broadcast delivers it.
type sseSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newSSESink(w http.ResponseWriter) (*sseSink, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseSink{writer: w, flusher: flusher}, true
}

func (s *sseSink) Send(event models.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// websocketSink writes one progress event per text frame. gorilla/websocket
// connections allow at most one concurrent writer; that invariant holds here
// because the hub runs exactly one pump goroutine per subscription, so Send
// is never called concurrently with itself. The drain goroutine reading this
// same connection only calls ReadMessage, never a write method.
type websocketSink struct {
	conn *websocket.Conn
}

func newWebsocketSink(conn *websocket.Conn) *websocketSink {
	return &websocketSink{conn: conn}
}

func (s *websocketSink) Send(event models.ProgressEvent) error {
	return s.conn.WriteJSON(event)
}

// drain reads and discards client frames until the connection closes, so the
// read side of the socket doesn't back up and the server notices a client
// disconnect promptly.
func drain(conn *websocket.Conn, onClose func()) {
	defer onClose()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

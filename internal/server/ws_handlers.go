package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader allows any origin: the server is meant to be bound to localhost.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWSFit streams fit lifecycle and iteration events. Incoming messages
// are discarded; the read loop only detects disconnects.
func (s *Server) handleWSFit(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.wsFit.Add(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsFit.Remove(client)
			return
		}
	}
}

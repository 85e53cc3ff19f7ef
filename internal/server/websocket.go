package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket answers one QueryRequest per text message. Each reply is a
// QueryResponse or an ErrorResponse.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}

		var req QueryRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, ErrorResponse{Detail: "invalid message format"})
			continue
		}

		resp, err := s.Query(r.Context(), req)
		if err != nil {
			_, detail := statusFor(err)
			s.send(conn, ErrorResponse{Detail: detail})
			continue
		}
		s.send(conn, resp)
	}
}

func (s *Server) send(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		s.log.Warn().Err(err).Msg("websocket write")
	}
}

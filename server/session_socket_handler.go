package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jrsteele09/go-course-portal/session"
)

const (
	socketWriteTimeout = 5 * time.Second
	socketPongWait     = 60 * time.Second
	socketPingPeriod   = socketPongWait * 9 / 10

	// socketBuffer holds transitions queued for a slow reader; older ones are
	// dropped first since only the latest state matters
	socketBuffer = 16
)

// SessionSocketHandler pushes the session state to the browser: the current
// state on connect, then every transition (GET /ws/session).
func (s *Server) SessionSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientFrom(r)

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			s.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		updates := make(chan session.State, socketBuffer)
		cancel := client.Manager.Watch(func(st session.State) {
			for {
				select {
				case updates <- st:
					return
				default:
				}
				select {
				case <-updates:
				default:
				}
			}
		})
		defer cancel()

		done := make(chan struct{})
		go s.readSocket(conn, done)

		if err := writeSocketJSON(conn, client.Manager.State()); err != nil {
			return
		}

		ping := time.NewTicker(socketPingPeriod)
		defer ping.Stop()

		for {
			select {
			case st := <-updates:
				if err := writeSocketJSON(conn, st); err != nil {
					s.log.Debug().Err(err).Str("client", client.ID).Msg("session socket write failed")
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}

// readSocket drains client frames so control messages are processed, and
// closes done when the peer goes away.
func (s *Server) readSocket(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeSocketJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

package simulator

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler serves d to WebSocket clients such as transport.NewWebSocket.
// Every binary message is one command write; the device's response is
// returned as one binary message. A connection opens the device for its
// lifetime.
func Handler(d *Device, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = quiet
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		log := log.WithField("remote", r.RemoteAddr)
		if err := d.Open(); err != nil {
			log.WithError(err).Error("open device failed")
			return
		}
		defer func() { _ = d.Close() }()
		log.Info("client connected")

		for {
			messageType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Warn("connection lost")
				} else {
					log.Info("client disconnected")
				}
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}

			if err := d.WriteData(msg); err != nil {
				log.WithError(err).Debug("command write failed")
				continue
			}
			if resp := d.drain(); len(resp) > 0 {
				if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
					log.WithError(err).Warn("write response failed")
					return
				}
			}
		}
	})
}

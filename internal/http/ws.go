package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWS upgrades the connection and parks it until the client registers.
// Role and identity arrive in-band: the first register message binds the
// connection, and re-registering rebinds it (last write wins).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sess := s.reg.NewSession(conn)
	go s.readPump(sess, conn)
}

func (s *Server) readPump(sess *registry.Session, conn *websocket.Conn) {
	conn.SetReadLimit(s.cfg.WSReadLimit)
	defer s.reg.Drop(sess)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("ws_read_error", "identity", sess.Identity(), "error", err)
			}
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Malformed frames are dropped; a pending offer keeps waiting
			// until its own timeout.
			s.logger.Debug("ws_malformed_message", "identity", sess.Identity(), "error", err)
			continue
		}

		switch msg.Action {
		case models.ActionRegister:
			s.handleRegister(sess, msg)
		case models.ActionAccepted, models.ActionDeclined:
			if sess.Role() != models.RoleDriver {
				continue
			}
			matched := s.engine.Resolve(sess.Identity(), msg.RideID, msg.Action == models.ActionAccepted)
			if !matched {
				s.logger.Debug("ws_unmatched_response", "driver_id", sess.Identity(), "action", msg.Action, "ride_id", msg.RideID)
			}
		default:
			s.logger.Debug("ws_unknown_action", "identity", sess.Identity(), "action", msg.Action)
		}
	}
}

func (s *Server) handleRegister(sess *registry.Session, msg models.ClientMessage) {
	switch msg.Role {
	case models.RoleDriver:
		if msg.DriverID == "" {
			return
		}
		s.reg.Register(sess, models.RoleDriver, msg.DriverID)
		s.ledger.SetOnline(msg.DriverID)
		observability.WSConnections.WithLabelValues(string(models.RoleDriver)).Set(float64(s.reg.CountOfRole(models.RoleDriver)))
		observability.DriversOnline.Set(float64(s.ledger.OnlineCount()))
		s.logger.Info("ws_register", "role", "driver", "driver_id", msg.DriverID)
	case models.RoleRider:
		if msg.RiderID == "" {
			return
		}
		s.reg.Register(sess, models.RoleRider, msg.RiderID)
		observability.WSConnections.WithLabelValues(string(models.RoleRider)).Set(float64(s.reg.CountOfRole(models.RoleRider)))
		s.logger.Info("ws_register", "role", "rider", "rider_id", msg.RiderID)
	}
}

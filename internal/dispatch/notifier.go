package dispatch

import (
	"encoding/json"
	"log/slog"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// RoleDirectory iterates the open connections of one role.
type RoleDirectory interface {
	ForEachOfRole(role models.Role, fn func(identity string, s Sender))
}

// Notifier fans a status payload out to every connection of a role.
// Best-effort: no acknowledgment, no ordering across recipients, send
// failures are logged and skipped.
type Notifier struct {
	Dir RoleDirectory
	Log *slog.Logger
}

func NewNotifier(dir RoleDirectory, log *slog.Logger) *Notifier {
	return &Notifier{Dir: dir, Log: log}
}

func (n *Notifier) NotifyRole(role models.Role, msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.Log.Error("broadcast_encode_failed", "type", msgType, "error", err)
		return
	}
	msg := models.ServerMessage{Type: msgType, Data: data}

	n.Dir.ForEachOfRole(role, func(identity string, s Sender) {
		if err := s.Send(msg); err != nil {
			n.Log.Warn("broadcast_send_failed", "role", string(role), "identity", identity, "error", err)
			return
		}
		observability.BroadcastsSent.WithLabelValues(string(role)).Inc()
	})
}

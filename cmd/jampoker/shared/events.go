package shared

import (
	"github.com/charmbracelet/log"

	"github.com/Mappledude/jampoker/internal/gateway"
)

// EventLogger logs every committed event at debug level
func EventLogger(logger *log.Logger) gateway.Publisher {
	logger = logger.WithPrefix("events")
	return gateway.PublisherFunc(func(e gateway.Event) {
		kv := []any{"kind", e.Kind, "table", e.TableID}
		switch {
		case e.Action != nil:
			kv = append(kv, "action", e.Action.ID, "status", e.Action.Status)
			if e.Action.Reason != "" {
				kv = append(kv, "reason", e.Action.Reason)
			}
		case e.Hand != nil:
			kv = append(kv, "hand", e.Hand.HandNo, "street", e.Hand.Street, "version", e.Hand.Version)
		case e.Seat != nil:
			kv = append(kv, "seat", e.Seat.Index, "player", e.Seat.Occupant, "stack", e.Seat.Stack)
		}
		logger.Debug("Event", kv...)
	})
}

package hub

import (
	"errors"
	"fmt"
)

var (
	ErrBusClosed       = errors.New("bus is shut down")
	ErrEnvelopeExpired = errors.New("envelope expired")
)

// NotRegisteredError is returned when an envelope's sender is neither a
// registered agent nor a system sender. Nothing is delivered.
type NotRegisteredError struct {
	AgentID string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("sender not registered: %s", e.AgentID)
}

// RoutingError is returned when a direct recipient is unknown or not active.
type RoutingError struct {
	Recipient string
	Reason    string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("cannot route to %s: %s", e.Recipient, e.Reason)
}

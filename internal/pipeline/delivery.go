package pipeline

import "github.com/wethinkt/go-histview/internal/history"

// Status is the session's position in its lifecycle.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusFirstPaint
	StatusSteady
	StatusClosed
)

var statusNames = [...]string{"idle", "loading", "first_paint", "steady", "closed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// DeliveryKind tags a Delivery.
type DeliveryKind uint8

const (
	// DeliverLoading tells the renderer to show a loading state.
	DeliverLoading DeliveryKind = iota
	// DeliverTransition carries a transition to apply to the rendered rows.
	DeliverTransition
	// DeliverState carries updated scroll bookkeeping.
	DeliverState
)

var deliveryKindNames = [...]string{"loading", "transition", "state"}

func (k DeliveryKind) String() string {
	if int(k) < len(deliveryKindNames) {
		return deliveryKindNames[k]
	}
	return "unknown"
}

// Delivery is one message from a session to its renderer. Deliveries arrive
// in Seq order on a single channel. Every computed window yields a
// transition, possibly an empty one; only a superseded computation yields
// nothing.
type Delivery struct {
	Kind       DeliveryKind       `json:"kind"`
	Seq        uint64             `json:"seq"`
	Generation uint64             `json:"generation"`
	Status     Status             `json:"status"`
	Transition history.Transition `json:"transition"`
	State      history.State      `json:"state"`
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every gateway operation while the
	// gateway is disconnected.
	ErrNotConnected = errors.New("gateway not connected")

	// ErrInsufficientMargin is returned when the pre-submission margin
	// check fails. It stops the current cycle without side effects.
	ErrInsufficientMargin = errors.New("insufficient free margin")

	// ErrOrderNotFound is returned by modify/cancel on an unknown order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSizingRejected is returned when sizing parameters are unusable
	// (invalid lot bounds), as opposed to merely capped.
	ErrSizingRejected = errors.New("sizing rejected")
)

// VenueRejectionError carries an asynchronous rejection reported by the
// execution venue. It is attached to the order, never thrown across the
// event boundary.
type VenueRejectionError struct {
	OrderID string
	Reason  string
}

func (e *VenueRejectionError) Error() string {
	return fmt.Sprintf("venue rejected order %s: %s", e.OrderID, e.Reason)
}

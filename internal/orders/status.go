package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// statusSequence is the fixed total order of statuses. A move is legal
// only to a status further along the sequence, which makes delivered and
// cancelled terminal and lets cancelled be reached from any earlier state.
var statusSequence = []Status{
	StatusPending,
	StatusConfirmed,
	StatusDelivering,
	StatusDelivered,
	StatusCancelled,
}

// Index returns the position of s in the sequence, or -1 if unknown.
func (s Status) Index() int {
	for i, v := range statusSequence {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool { return s.Index() >= 0 }

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, raw)
	}
	return s, nil
}

// CanTransition allows any strictly forward jump, including skipping
// intermediate states (pending -> delivered, pending -> cancelled).
func CanTransition(from, to Status) bool {
	fi, ti := from.Index(), to.Index()
	if fi < 0 || ti < 0 {
		return false
	}
	return ti > fi
}

func checkTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CheckCancellable applies the cancellation policy on top of the sequence rule.
// Confirmed non-COD orders have been paid and need a refund flow instead.
func CheckCancellable(o Order) error {
	switch o.Status {
	case StatusCancelled:
		return fmt.Errorf("%w: order %s has already been cancelled", ErrForbidden, o.ID)
	case StatusDelivering, StatusDelivered:
		return fmt.Errorf("%w: order %s is already %s", ErrForbidden, o.ID, o.Status)
	case StatusConfirmed:
		if !o.Payment.IsCOD() {
			return fmt.Errorf("%w: order %s has already been confirmed and paid for", ErrForbidden, o.ID)
		}
	}
	return nil
}

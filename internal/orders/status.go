package orders

import (
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// validNext is the admin transition graph. Same-status updates (tracking
// edits) are always allowed; completed and canceled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCanceled: true},
	StatusPaid:      {StatusShipped: true, StatusCanceled: true, StatusPending: true},
	StatusShipped:   {StatusCompleted: true},
	StatusCompleted: {},
	StatusCanceled:  {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("order status %q: %w", s, apperr.ErrInvalidStatus)
	}
	return st, nil
}

func CanTransition(from, to Status) bool {
	return from == to || validNext[from][to]
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentPending, PaymentVerified, PaymentRejected:
		return st, nil
	}
	return "", fmt.Errorf("payment status %q: %w", s, apperr.ErrInvalidStatus)
}

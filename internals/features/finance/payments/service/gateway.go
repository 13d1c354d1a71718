package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// Outcome is what a gateway call amounted to. Only NetworkError is worth
// retrying; Declined is final.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomePending      Outcome = "pending"
	OutcomeDeclined     Outcome = "declined"
	OutcomeNetworkError Outcome = "network_error"
)

type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Qty      int32
	Category string
}

type AuthorizeRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Customer    Customer
	Items       []Item
	Description string
}

type AuthorizeResult struct {
	Outcome     Outcome
	Token       string
	RedirectURL string
	Message     string
}

type VerifyResult struct {
	Outcome       Outcome
	OrderID       string
	TransactionID string
	// Status is the provider's own status string, kept for the event log.
	Status      string
	GrossAmount decimal.Decimal
	PaymentType string
	Message     string
}

// PaymentGateway is the seam between the reconciler and a payment
// provider. Implementations report provider failures through Outcome and
// reserve the error return for context cancellation and misconfiguration.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error)
	Verify(ctx context.Context, orderID string) (VerifyResult, error)
}

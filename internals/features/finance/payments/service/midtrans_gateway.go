package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

/* =========================================================
   Midtrans client
========================================================= */

type MidtransGateway struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
}

var _ PaymentGateway = (*MidtransGateway)(nil)

// NewMidtransGateway wires snap (checkout) and core API (status checks).
// useProduction=false talks to the sandbox.
func NewMidtransGateway(serverKey string, useProduction bool) (*MidtransGateway, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, errors.New("midtrans server key is empty")
	}
	env := midtrans.Sandbox
	if useProduction {
		env = midtrans.Production
	}
	g := &MidtransGateway{serverKey: serverKey}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g, nil
}

func (g *MidtransGateway) ServerKey() string { return g.serverKey }

func (g *MidtransGateway) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if !req.Amount.IsPositive() {
		return AuthorizeResult{}, errors.New("invalid amount")
	}
	if req.OrderID == "" {
		return AuthorizeResult{}, errors.New("order id is required")
	}

	sr := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount.IntPart(),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.FirstName,
			LName: req.Customer.LastName,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}
	if req.Description != "" {
		sr.CustomField1 = truncate(req.Description, 40)
	}
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:       defaultString(it.ID, "item-1"),
			Name:     truncate(it.Name, 50),
			Price:    it.Price.IntPart(),
			Qty:      it.Qty,
			Category: it.Category,
		})
	}
	if len(items) > 0 {
		sr.Items = &items
	}

	type reply struct {
		resp *snap.Response
		err  *midtrans.Error
	}
	ch := make(chan reply, 1)
	go func() {
		resp, merr := g.snap.CreateTransaction(sr)
		ch <- reply{resp, merr}
	}()

	select {
	case <-ctx.Done():
		return AuthorizeResult{Outcome: OutcomeNetworkError, Message: ctx.Err().Error()}, nil
	case r := <-ch:
		if r.err != nil {
			return AuthorizeResult{Outcome: classifyMidtransError(r.err), Message: r.err.Message}, nil
		}
		return AuthorizeResult{Outcome: OutcomePending, Token: r.resp.Token, RedirectURL: r.resp.RedirectURL}, nil
	}
}

func (g *MidtransGateway) Verify(ctx context.Context, orderID string) (VerifyResult, error) {
	if orderID == "" {
		return VerifyResult{}, errors.New("order id is required")
	}
	type reply struct {
		resp *coreapi.TransactionStatusResponse
		err  *midtrans.Error
	}
	ch := make(chan reply, 1)
	go func() {
		resp, merr := g.core.CheckTransaction(orderID)
		ch <- reply{resp, merr}
	}()

	select {
	case <-ctx.Done():
		return VerifyResult{OrderID: orderID, Outcome: OutcomeNetworkError, Message: ctx.Err().Error()}, nil
	case r := <-ch:
		if r.err != nil {
			return VerifyResult{OrderID: orderID, Outcome: classifyMidtransError(r.err), Message: r.err.Message}, nil
		}
		gross, _ := decimal.NewFromString(strings.TrimSpace(r.resp.GrossAmount))
		return VerifyResult{
			Outcome:       MapMidtransStatus(r.resp.TransactionStatus, r.resp.FraudStatus),
			OrderID:       r.resp.OrderID,
			TransactionID: r.resp.TransactionID,
			Status:        r.resp.TransactionStatus,
			GrossAmount:   gross,
			PaymentType:   r.resp.PaymentType,
			Message:       r.resp.StatusMessage,
		}, nil
	}
}

// classifyMidtransError separates transport trouble and provider 5xx (worth
// retrying) from requests the provider refused.
func classifyMidtransError(e *midtrans.Error) Outcome {
	if e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests {
		return OutcomeNetworkError
	}
	return OutcomeDeclined
}

// MapMidtransStatus folds a Midtrans transaction_status / fraud_status pair
// into an Outcome.
func MapMidtransStatus(transactionStatus, fraudStatus string) Outcome {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch ts {
	case "capture":
		switch fraud {
		case "accept", "":
			return OutcomeSuccess
		case "challenge":
			return OutcomePending
		}
		return OutcomeDeclined

	case "settlement":
		return OutcomeSuccess

	case "pending", "authorize":
		return OutcomePending

	case "deny", "cancel", "expire", "failure", "refund", "partial_refund":
		return OutcomeDeclined
	}
	return OutcomePending
}

/* =========================================================
   Order ids & webhook signatures
========================================================= */

// GenOrderID returns PREFIX-YYYYMMDD-HHMMSS-XXXXXXXX.
func GenOrderID(prefix string, now time.Time) string {
	u := strings.ToUpper(uuid.NewString()[:8])
	return prefix + "-" + now.Format("20060102-150405") + "-" + u
}

// SignatureKey is SHA512(order_id + status_code + gross_amount + server_key)
// as Midtrans signs notifications.
func SignatureKey(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	want := strings.ToLower(strings.TrimSpace(signature))
	if want == "" || serverKey == "" {
		return false
	}
	got := SignatureKey(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

/* =========================================================
   Utils
========================================================= */

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}

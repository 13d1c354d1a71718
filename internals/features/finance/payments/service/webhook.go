package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/payments/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

var ErrInvalidSignature = errors.New("invalid notification signature")

// Notification is the Midtrans HTTP notification body. Raw and Headers are
// stored verbatim in the event log.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`

	Raw     []byte            `json:"-"`
	Headers map[string]string `json:"-"`
}

type WebhookResult struct {
	EventID   uuid.UUID                `json:"event_id"`
	Status    model.GatewayEventStatus `json:"status"`
	Outcome   Outcome                  `json:"outcome,omitempty"`
	Duplicate bool                     `json:"duplicate"`
	Reconcile *ReconcileResult         `json:"reconcile,omitempty"`
}

// HandleGatewayNotification authenticates a callback, logs it once per
// delivery key and, for a known order, asks the gateway for the
// authoritative status before touching the ledger. The notification body
// itself is never trusted for the outcome.
func (s *Service) HandleGatewayNotification(ctx context.Context, n Notification) (*WebhookResult, error) {
	n.OrderID = strings.TrimSpace(n.OrderID)
	if n.OrderID == "" {
		return nil, finerr.Validation("order_id is required")
	}
	if !VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, s.ServerKey, n.SignatureKey) {
		s.Log.Warn("webhook signature mismatch", zap.String("order_id", n.OrderID))
		return nil, ErrInvalidSignature
	}

	ev, dup, err := s.recordEvent(ctx, n)
	if err != nil {
		return nil, err
	}
	res := &WebhookResult{EventID: ev.GatewayEventID, Status: ev.GatewayEventStatus}
	if dup && (ev.GatewayEventStatus == model.GatewayEventSuccess || ev.GatewayEventStatus == model.GatewayEventIgnored) {
		res.Duplicate = true
		return res, nil
	}

	ver, err := FindVerificationByReference(ctx, s.DB, n.OrderID)
	if err != nil {
		s.finishEvent(ctx, ev.GatewayEventID, nil, model.GatewayEventFailed, err.Error())
		return nil, err
	}
	if ver == nil {
		res.Status = s.finishEvent(ctx, ev.GatewayEventID, nil, model.GatewayEventIgnored, "unknown order id")
		return res, nil
	}
	verID := &ver.VerificationID

	switch ver.VerificationStatus {
	case model.StagingVerified:
		res.Duplicate = true
		res.Status = s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventSuccess, "")
		return res, nil
	case model.StagingRejected:
		res.Status = s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventIgnored, "verification already rejected")
		return res, nil
	}

	if s.Gateway == nil {
		s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, "gateway not configured")
		return nil, finerr.Configuration("payment gateway is not configured")
	}
	vr, err := s.Gateway.Verify(ctx, n.OrderID)
	if err != nil {
		s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, err.Error())
		return nil, err
	}
	res.Outcome = vr.Outcome

	switch vr.Outcome {
	case OutcomeNetworkError:
		s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, vr.Message)
		return nil, finerr.New(finerr.KindGateway, "payment gateway unavailable: %s", vr.Message)

	case OutcomePending:
		res.Status = s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventProcessing, "")
		return res, nil

	case OutcomeDeclined:
		reason := fmt.Sprintf("gateway status %s", defaultString(vr.Status, "declined"))
		if err := s.RejectPayment(ctx, helperAuth.SystemActor, StagingVerification, ver.VerificationID, reason); err != nil {
			s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, err.Error())
			return nil, err
		}
		res.Status = s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventSuccess, "")
		return res, nil
	}

	// success
	if !vr.GrossAmount.IsZero() && !vr.GrossAmount.Equal(ver.VerificationAmount) {
		msg := fmt.Sprintf("gross amount %s does not match staged %s", vr.GrossAmount.StringFixed(2), ver.VerificationAmount.StringFixed(2))
		if err := s.RejectPayment(ctx, helperAuth.SystemActor, StagingVerification, ver.VerificationID, msg); err != nil {
			s.Log.Error("amount mismatch not rejected", zap.String("order_id", n.OrderID), zap.Error(err))
		}
		s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, msg)
		return nil, finerr.New(finerr.KindRejected, "%s", msg)
	}
	if vr.TransactionID != "" {
		// tidak fatal: rekonsiliasi tetap jalan tanpa id transaksi gateway
		if err := saveGatewayTransactionID(ctx, s.DB, ver.VerificationID, vr.TransactionID); err != nil {
			s.Log.Warn("gateway transaction id not stored",
				zap.String("order_id", n.OrderID), zap.String("transaction_id", vr.TransactionID), zap.Error(err))
		}
	}

	rr, err := s.ProcessPaymentVerification(ctx, helperAuth.SystemActor, ver.VerificationID)
	if err != nil {
		s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventFailed, err.Error())
		return nil, err
	}
	res.Reconcile = rr
	res.Duplicate = rr.AlreadyProcessed
	res.Status = s.finishEvent(ctx, ev.GatewayEventID, verID, model.GatewayEventSuccess, "")
	return res, nil
}

// saveGatewayTransactionID mengisi id transaksi gateway sekali saja.
func saveGatewayTransactionID(ctx context.Context, db *gorm.DB, verificationID uuid.UUID, transactionID string) error {
	if err := db.WithContext(ctx).
		Model(&model.PaymentVerificationModel{}).
		Where("verification_id = ? AND verification_gateway_transaction_id IS NULL", verificationID).
		Update("verification_gateway_transaction_id", transactionID).Error; err != nil {
		return finerr.Persistence(err, "store gateway transaction id")
	}
	return nil
}

// recordEvent inserts the delivery or, when the same delivery key was seen
// before, bumps its try_count. dup reports the latter.
func (s *Service) recordEvent(ctx context.Context, n Notification) (*model.PaymentGatewayEventModel, bool, error) {
	db := s.DB.WithContext(ctx)
	externalID := defaultString(strings.TrimSpace(n.TransactionID), n.OrderID)
	eventType := defaultString(strings.ToLower(strings.TrimSpace(n.TransactionStatus)), "unknown")

	payload := n.Raw
	if len(payload) == 0 {
		payload, _ = sonic.Marshal(n)
	}
	headers, _ := sonic.Marshal(n.Headers)
	orderID := n.OrderID
	sig := n.SignatureKey

	ev := &model.PaymentGatewayEventModel{
		GatewayEventProvider:    model.GatewayProviderMidtrans,
		GatewayEventExternalID:  externalID,
		GatewayEventType:        eventType,
		GatewayEventExternalRef: &orderID,
		GatewayEventHeaders:     datatypes.JSON(headers),
		GatewayEventPayload:     datatypes.JSON(payload),
		GatewayEventSignature:   &sig,
		GatewayEventTryCount:    1,
		GatewayEventReceivedAt:  s.now(),
	}
	ins := db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if ins.Error != nil {
		return nil, false, finerr.Persistence(ins.Error, "log gateway event")
	}
	if ins.RowsAffected == 1 {
		return ev, false, nil
	}

	var existing model.PaymentGatewayEventModel
	if err := db.Unscoped().Where("gateway_event_provider = ? AND gateway_event_external_id = ? AND gateway_event_type = ?",
		model.GatewayProviderMidtrans, externalID, eventType).
		Take(&existing).Error; err != nil {
		return nil, false, finerr.Persistence(err, "load gateway event")
	}
	if err := db.Unscoped().Model(&existing).
		UpdateColumn("gateway_event_try_count", gorm.Expr("gateway_event_try_count + 1")).Error; err != nil {
		return nil, false, finerr.Persistence(err, "bump gateway event try count")
	}
	existing.GatewayEventTryCount++
	return &existing, true, nil
}

func (s *Service) finishEvent(ctx context.Context, id uuid.UUID, verificationID *uuid.UUID, status model.GatewayEventStatus, msg string) model.GatewayEventStatus {
	now := s.now()
	updates := map[string]any{
		"gateway_event_status":     status,
		"gateway_event_updated_at": now,
	}
	if verificationID != nil {
		updates["gateway_event_verification_id"] = *verificationID
	}
	if msg != "" {
		updates["gateway_event_error"] = truncate(msg, 500)
	} else {
		updates["gateway_event_error"] = nil
	}
	if status != model.GatewayEventProcessing {
		updates["gateway_event_processed_at"] = now
	}
	if err := s.DB.WithContext(ctx).
		Model(&model.PaymentGatewayEventModel{}).
		Where("gateway_event_id = ?", id).
		Updates(updates).Error; err != nil {
		s.Log.Warn("gateway event not updated", zap.Stringer("event_id", id), zap.Error(err))
	}
	return status
}

// CleanupGatewayEvents soft-deletes finished events received before cutoff.
func CleanupGatewayEvents(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("gateway_event_received_at < ? AND gateway_event_status IN ?", cutoff,
			[]model.GatewayEventStatus{model.GatewayEventSuccess, model.GatewayEventIgnored, model.GatewayEventFailed}).
		Delete(&model.PaymentGatewayEventModel{})
	if res.Error != nil {
		return 0, finerr.Persistence(res.Error, "clean up gateway events")
	}
	return res.RowsAffected, nil
}

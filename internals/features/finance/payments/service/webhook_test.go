package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/payments/model"
	receiptService "impactacademy_backend/internals/features/finance/receipts/service"
	transModel "impactacademy_backend/internals/features/finance/transactions/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const testServerKey = "SB-Mid-server-test"

func signed(orderID, status string) Notification {
	n := Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "10000.00",
		TransactionStatus: status,
		TransactionID:     "trx-" + orderID,
		PaymentType:       "bank_transfer",
	}
	n.SignatureKey = SignatureKey(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

func checkoutFixture(t *testing.T, gw *fakeGateway) (fixture, *Service, *CheckoutResult) {
	t.Helper()
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, gw)
	s.ServerKey = testServerKey
	programID := f.seed.Program.ProgramID
	classID := f.seed.Class.ClassID

	co, err := s.CreateCheckout(context.Background(), helperAuth.Actor{UserID: f.student, Role: helperAuth.RoleStudent}, CheckoutInput{
		PaymentType: model.PaymentTypeRegistration,
		ProgramID:   &programID,
		ClassID:     &classID,
		Customer:    Customer{FirstName: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	return f, s, co
}

func TestCreateCheckoutStagesPendingVerification(t *testing.T) {
	f, _, co := checkoutFixture(t, &fakeGateway{})

	assert.True(t, co.Amount.Equal(feeModel.DefaultRegistrationFee))
	assert.Equal(t, "tok-"+co.OrderID, co.Token)
	assert.Regexp(t, `^IDA-\d{8}-\d{6}-[0-9A-F]{8}$`, co.OrderID)

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	assert.Equal(t, model.StagingPending, v.VerificationStatus)
	assert.Equal(t, co.OrderID, v.VerificationReference)
	assert.Equal(t, f.student, v.VerificationStudentID)
	assert.Contains(t, string(v.VerificationMeta), co.Token)
}

func TestCreateCheckoutGatewayFailures(t *testing.T) {
	f := newFixture(t)
	programID := f.seed.Program.ProgramID
	in := CheckoutInput{StudentID: f.student, PaymentType: model.PaymentTypeRegistration, ProgramID: &programID}

	declined := &fakeGateway{authorize: []AuthorizeResult{{Outcome: OutcomeDeclined, Message: "merchant disabled"}}}
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, declined)
	_, err := s.CreateCheckout(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindRejected))

	down := &fakeGateway{authorize: []AuthorizeResult{{Outcome: OutcomeNetworkError, Message: "dial tcp: timeout"}}}
	s.Gateway = down
	_, err = s.CreateCheckout(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindGateway))

	var pending int64
	f.db.Model(&model.PaymentVerificationModel{}).Where("verification_status = ?", model.StagingPending).Count(&pending)
	assert.Zero(t, pending)
	assert.EqualValues(t, 2, countRows(t, f.db, &model.PaymentVerificationModel{}))

	s.Gateway = nil
	_, err = s.CreateCheckout(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindConfiguration))
}

func TestCreateCheckoutCoursePricedServerSide(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, &fakeGateway{})
	courseID := f.course.CourseID
	classID := f.seed.Class.ClassID

	co, err := s.CreateCheckout(context.Background(), staff, CheckoutInput{
		StudentID:   f.student,
		PaymentType: model.PaymentTypeCourse,
		CourseID:    &courseID,
		ClassID:     &classID,
	})
	require.NoError(t, err)
	assert.True(t, co.Amount.Equal(decimal.NewFromInt(90000)))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	gw := &fakeGateway{}
	f, s, co := checkoutFixture(t, gw)

	n := signed(co.OrderID, "settlement")
	n.SignatureKey = "deadbeef"
	_, err := s.HandleGatewayNotification(context.Background(), n)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, countRows(t, f.db, &model.PaymentGatewayEventModel{}))
	assert.Zero(t, gw.verifyCall)
}

func TestWebhookSettlementReconcilesOnce(t *testing.T) {
	gw := &fakeGateway{verify: []VerifyResult{{Outcome: OutcomeSuccess, Status: "settlement", TransactionID: "trx-1", GrossAmount: decimal.NewFromInt(10000)}}}
	f, s, co := checkoutFixture(t, gw)
	ctx := context.Background()

	res, err := s.HandleGatewayNotification(ctx, signed(co.OrderID, "settlement"))
	require.NoError(t, err)
	assert.Equal(t, model.GatewayEventSuccess, res.Status)
	require.NotNil(t, res.Reconcile)
	assert.False(t, res.Reconcile.AlreadyProcessed)

	again, err := s.HandleGatewayNotification(ctx, signed(co.OrderID, "settlement"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 1, gw.verifyCall)

	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.EqualValues(t, 1, countRows(t, f.db, &model.PaymentGatewayEventModel{}))

	var ev model.PaymentGatewayEventModel
	require.NoError(t, f.db.Take(&ev).Error)
	assert.Equal(t, 2, ev.GatewayEventTryCount)
	require.NotNil(t, ev.GatewayEventVerificationID)
	assert.Equal(t, co.VerificationID, *ev.GatewayEventVerificationID)
	assert.NotNil(t, ev.GatewayEventProcessedAt)

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	assert.Equal(t, model.StagingVerified, v.VerificationStatus)
	require.NotNil(t, v.VerificationGatewayTransactionID)
	assert.Equal(t, "trx-1", *v.VerificationGatewayTransactionID)
}

func TestWebhookNetworkErrorLeavesPaymentPending(t *testing.T) {
	gw := &fakeGateway{verify: []VerifyResult{{Outcome: OutcomeNetworkError, Message: "connection reset"}}}
	f, s, co := checkoutFixture(t, gw)

	_, err := s.HandleGatewayNotification(context.Background(), signed(co.OrderID, "settlement"))
	assert.True(t, finerr.Is(err, finerr.KindGateway))

	var ev model.PaymentGatewayEventModel
	require.NoError(t, f.db.Take(&ev).Error)
	assert.Equal(t, model.GatewayEventFailed, ev.GatewayEventStatus)
	require.NotNil(t, ev.GatewayEventError)

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	assert.Equal(t, model.StagingPending, v.VerificationStatus)

	// the provider redelivers once it is reachable again
	gw.verify = []VerifyResult{{Outcome: OutcomeSuccess, Status: "settlement"}}
	res, err := s.HandleGatewayNotification(context.Background(), signed(co.OrderID, "settlement"))
	require.NoError(t, err)
	assert.Equal(t, model.GatewayEventSuccess, res.Status)
	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
}

func TestWebhookDeclinedRejectsVerification(t *testing.T) {
	gw := &fakeGateway{verify: []VerifyResult{{Outcome: OutcomeDeclined, Status: "expire"}}}
	f, s, co := checkoutFixture(t, gw)

	res, err := s.HandleGatewayNotification(context.Background(), signed(co.OrderID, "expire"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, res.Outcome)

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	assert.Equal(t, model.StagingRejected, v.VerificationStatus)
	require.NotNil(t, v.VerificationRejectionReason)
	assert.Equal(t, "gateway status expire", *v.VerificationRejectionReason)
	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
}

func TestWebhookPendingAndUnknownOrders(t *testing.T) {
	gw := &fakeGateway{verify: []VerifyResult{{Outcome: OutcomePending, Status: "pending"}}}
	f, s, co := checkoutFixture(t, gw)
	ctx := context.Background()

	res, err := s.HandleGatewayNotification(ctx, signed(co.OrderID, "pending"))
	require.NoError(t, err)
	assert.Equal(t, model.GatewayEventProcessing, res.Status)

	res, err = s.HandleGatewayNotification(ctx, signed("IDA-NOPE", "settlement"))
	require.NoError(t, err)
	assert.Equal(t, model.GatewayEventIgnored, res.Status)
	assert.Equal(t, 1, gw.verifyCall)
	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
}

func TestWebhookAmountMismatchIsRejected(t *testing.T) {
	gw := &fakeGateway{verify: []VerifyResult{{Outcome: OutcomeSuccess, Status: "settlement", GrossAmount: decimal.NewFromInt(1)}}}
	f, s, co := checkoutFixture(t, gw)

	_, err := s.HandleGatewayNotification(context.Background(), signed(co.OrderID, "settlement"))
	assert.True(t, finerr.Is(err, finerr.KindRejected))
	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	assert.Equal(t, model.StagingRejected, v.VerificationStatus)
}

func TestWebhookGatewayError(t *testing.T) {
	gw := &fakeGateway{}
	_, s, co := checkoutFixture(t, gw)
	gw.err = errors.New("misconfigured")

	_, err := s.HandleGatewayNotification(context.Background(), signed(co.OrderID, "settlement"))
	assert.EqualError(t, err, "misconfigured")
}

func TestSaveGatewayTransactionIDKeepsFirstAndReportsFailure(t *testing.T) {
	f, _, co := checkoutFixture(t, &fakeGateway{})
	ctx := context.Background()

	require.NoError(t, saveGatewayTransactionID(ctx, f.db, co.VerificationID, "trx-9"))
	require.NoError(t, saveGatewayTransactionID(ctx, f.db, co.VerificationID, "trx-10"))

	var v model.PaymentVerificationModel
	require.NoError(t, f.db.Take(&v, "verification_id = ?", co.VerificationID).Error)
	require.NotNil(t, v.VerificationGatewayTransactionID)
	assert.Equal(t, "trx-9", *v.VerificationGatewayTransactionID)

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	err = saveGatewayTransactionID(ctx, f.db, co.VerificationID, "trx-11")
	assert.Equal(t, finerr.KindPersistence, finerr.KindOf(err))
}

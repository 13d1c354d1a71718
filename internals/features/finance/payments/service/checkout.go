package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	feeService "impactacademy_backend/internals/features/finance/fees/service"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/payments/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const OrderPrefix = "IDA"

type CheckoutInput struct {
	StudentID   uuid.UUID
	PaymentType model.PaymentType
	ProgramID   *uuid.UUID
	CourseID    *uuid.UUID
	ClassID     *uuid.UUID
	Customer    Customer
}

type CheckoutResult struct {
	VerificationID uuid.UUID       `json:"verification_id"`
	OrderID        string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Token          string          `json:"snap_token"`
	RedirectURL    string          `json:"redirect_url"`
}

type checkoutMeta struct {
	Token       string `json:"snap_token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Message     string `json:"gateway_message,omitempty"`
}

// CreateCheckout prices the payment server-side, stages a pending
// verification under a fresh order id and asks the gateway for a checkout
// session. The staging row exists before the gateway call so an early
// webhook always finds it.
func (s *Service) CreateCheckout(ctx context.Context, actor helperAuth.Actor, in CheckoutInput) (*CheckoutResult, error) {
	if s.Gateway == nil {
		return nil, finerr.Configuration("payment gateway is not configured")
	}
	if in.StudentID == uuid.Nil {
		in.StudentID = actor.UserID
	}

	amount, itemName, err := s.price(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	orderID := GenOrderID(OrderPrefix, now)

	row := &model.PaymentVerificationModel{
		VerificationStudentID: in.StudentID,
		VerificationProgramID: in.ProgramID,
		VerificationCourseID:  in.CourseID,
		VerificationClassID:   in.ClassID,
		VerificationType:      in.PaymentType,
		VerificationAmount:    amount,
		VerificationReference: orderID,
		VerificationMethod:    model.MethodGateway,
		VerificationProvider:  model.GatewayProviderMidtrans,
	}
	sp := fromVerification(row)
	if err := sp.validate(); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, finerr.Persistence(err, "stage checkout")
	}

	res, err := s.Gateway.Authorize(ctx, AuthorizeRequest{
		OrderID:     orderID,
		Amount:      amount,
		Customer:    in.Customer,
		Items:       []Item{{ID: string(in.PaymentType), Name: itemName, Price: amount, Qty: 1, Category: string(in.PaymentType)}},
		Description: fmt.Sprintf("Impact Digital Academy %s", in.PaymentType),
	})
	if err != nil {
		s.closeCheckout(ctx, actor, row.VerificationID, "checkout aborted: "+err.Error())
		return nil, err
	}

	switch res.Outcome {
	case OutcomeDeclined:
		s.closeCheckout(ctx, actor, row.VerificationID, "gateway declined: "+res.Message)
		return nil, finerr.New(finerr.KindRejected, "payment gateway declined the checkout: %s", res.Message)
	case OutcomeNetworkError:
		s.closeCheckout(ctx, actor, row.VerificationID, "gateway unreachable: "+res.Message)
		return nil, finerr.New(finerr.KindGateway, "payment gateway unavailable: %s", res.Message)
	}

	meta, _ := sonic.Marshal(checkoutMeta{Token: res.Token, RedirectURL: res.RedirectURL, Message: res.Message})
	if err := s.DB.WithContext(ctx).
		Model(&model.PaymentVerificationModel{}).
		Where("verification_id = ?", row.VerificationID).
		Update("verification_meta", datatypes.JSON(meta)).Error; err != nil {
		s.Log.Warn("checkout meta not saved", zap.String("order_id", orderID), zap.Error(err))
	}

	s.Log.Info("checkout created",
		zap.String("order_id", orderID), zap.Stringer("student_id", in.StudentID),
		zap.String("amount", amount.StringFixed(2)))
	return &CheckoutResult{
		VerificationID: row.VerificationID,
		OrderID:        orderID,
		Amount:         amount,
		Token:          res.Token,
		RedirectURL:    res.RedirectURL,
	}, nil
}

// price menghitung nominal checkout + label item. Nominal tidak pernah dari
// client.
func (s *Service) price(ctx context.Context, in CheckoutInput) (decimal.Decimal, string, error) {
	switch in.PaymentType {
	case model.PaymentTypeRegistration:
		if in.ProgramID == nil {
			return decimal.Zero, "", finerr.Validation("program_id is required for registration payments")
		}
		fee, err := feeService.RegistrationFeeForProgram(ctx, s.DB, *in.ProgramID)
		if err != nil {
			return decimal.Zero, "", err
		}
		return fee.Round(2), "Registration fee", nil

	case model.PaymentTypeCourse:
		if in.CourseID == nil {
			return decimal.Zero, "", finerr.Validation("course_id is required for course payments")
		}
		var course feeModel.CourseModel
		err := s.DB.WithContext(ctx).Where("course_id = ?", *in.CourseID).Take(&course).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", finerr.NotFound("course %s not found", *in.CourseID)
		}
		if err != nil {
			return decimal.Zero, "", finerr.Persistence(err, "load course")
		}
		if !course.CourseFee.IsPositive() {
			return decimal.Zero, "", finerr.Configuration("course %s has no fee", course.CourseID)
		}
		return course.CourseFee.Round(2), course.CourseName, nil
	}
	return decimal.Zero, "", finerr.Validation("unknown payment type %q", in.PaymentType)
}

func (s *Service) closeCheckout(ctx context.Context, actor helperAuth.Actor, id uuid.UUID, reason string) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := markRejected(ctx, tx, StagingVerification, id, actor.UserIDPtr(), reason, s.now())
		return err
	})
	if err != nil {
		s.Log.Warn("failed checkout left pending", zap.Stringer("verification_id", id), zap.Error(err))
	}
}

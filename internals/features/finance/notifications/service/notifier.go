// file: internals/features/finance/notifications/service/notifier.go
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/notifications/model"
)

// Notifier delivers user-facing messages. Callers treat delivery as
// fire-and-forget: an error is logged, never propagated into a ledger unit
// of work.
type Notifier interface {
	SendNotification(ctx context.Context, userID uuid.UUID, title, message, category string) error
	SendInternalMessage(ctx context.Context, msg InternalMessage) error
}

type InternalMessage struct {
	SenderID   *uuid.UUID
	ReceiverID uuid.UUID
	Title      string
	Body       string
	Type       string
	Meta       map[string]any
}

type Recipient struct {
	Name  string
	Email string
}

// RecipientLookup mencari alamat e-mail user.
type RecipientLookup func(ctx context.Context, userID uuid.UUID) (Recipient, error)

// Dispatcher stores in-app notifications and mirrors them to e-mail when a
// mailer and a recipient lookup are configured.
type Dispatcher struct {
	db     *gorm.DB
	mailer Mailer
	lookup RecipientLookup
	log    *zap.Logger
}

func NewDispatcher(db *gorm.DB, mailer Mailer, lookup RecipientLookup, log *zap.Logger) *Dispatcher {
	return &Dispatcher{db: db, mailer: mailer, lookup: lookup, log: log.Named("notify")}
}

var _ Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) SendNotification(ctx context.Context, userID uuid.UUID, title, message, category string) error {
	row := model.NotificationModel{
		NotificationUserID:   userID,
		NotificationTitle:    title,
		NotificationMessage:  message,
		NotificationCategory: category,
	}
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return finerr.Persistence(err, "store notification")
	}
	d.mirror(ctx, userID, title, message)
	return nil
}

func (d *Dispatcher) SendInternalMessage(ctx context.Context, msg InternalMessage) error {
	row := model.InternalMessageModel{
		InternalMessageSenderID:   msg.SenderID,
		InternalMessageReceiverID: msg.ReceiverID,
		InternalMessageTitle:      msg.Title,
		InternalMessageBody:       msg.Body,
		InternalMessageType:       msg.Type,
	}
	if len(msg.Meta) > 0 {
		row.InternalMessageMeta = datatypes.JSONMap(msg.Meta)
	}
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return finerr.Persistence(err, "store internal message")
	}
	return nil
}

func (d *Dispatcher) mirror(ctx context.Context, userID uuid.UUID, title, message string) {
	if d.mailer == nil || d.lookup == nil {
		return
	}
	rcp, err := d.lookup(ctx, userID)
	if err != nil || rcp.Email == "" {
		d.log.Debug("no e-mail recipient", zap.Stringer("user_id", userID), zap.Error(err))
		return
	}
	if err := d.mailer.Send(ctx, Email{To: rcp, Subject: title, Text: message}); err != nil {
		d.log.Warn("e-mail delivery failed", zap.Stringer("user_id", userID), zap.Error(err))
	}
}

// UsersTableLookup baca dari tabel users portal.
func UsersTableLookup(db *gorm.DB) RecipientLookup {
	return func(ctx context.Context, userID uuid.UUID) (Recipient, error) {
		var r struct {
			UserName string
			Email    string
		}
		err := db.WithContext(ctx).
			Table("users").
			Select("user_name, email").
			Where("id = ?", userID).
			Take(&r).Error
		if err != nil {
			return Recipient{}, err
		}
		return Recipient{Name: r.UserName, Email: r.Email}, nil
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/ledger/model"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	helper "impactacademy_backend/internals/helpers"
)

const upcomingWindow = 14 * 24 * time.Hour

type Service struct {
	DB       *gorm.DB
	Notifier notifService.Notifier
	Activity *notifService.ActivityLogger
	Log      *zap.Logger
	Now      func() time.Time
}

func New(db *gorm.DB, n notifService.Notifier, act *notifService.ActivityLogger, log *zap.Logger) *Service {
	return &Service{DB: db, Notifier: n, Activity: act, Log: log.Named("ledger"), Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

func (s *Service) GetStudentFinancialStatus(ctx context.Context, studentID, classID uuid.UUID) (*model.FinancialStatusModel, error) {
	return GetStudentFinancialStatus(ctx, s.DB, studentID, classID, s.now())
}

type ProgressionSummary struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Reminded int `json:"reminded"`
	Failed   int `json:"failed"`
}

// BlockProgressionCheck re-derives block flags from paid_amount for every
// open ledger row and reminds students whose next block is due soon.
func (s *Service) BlockProgressionCheck(ctx context.Context) (ProgressionSummary, error) {
	var sum ProgressionSummary
	now := s.now()
	outbox := notifService.NewOutbox()
	termsCache := map[uuid.UUID]*ClassTerms{}

	var rows []model.FinancialStatusModel
	err := s.DB.WithContext(ctx).
		Where("financial_status_is_cleared = ?", false).
		FindInBatches(&rows, 200, func(_ *gorm.DB, _ int) error {
			for i := range rows {
				sum.Scanned++
				repaired, err := s.progressOne(ctx, rows[i].FinancialStatusID, termsCache, outbox, now, &sum)
				if err != nil {
					sum.Failed++
					s.Log.Warn("block progression failed", zap.Stringer("status_id", rows[i].FinancialStatusID), zap.Error(err))
					continue
				}
				if repaired {
					sum.Repaired++
				}
			}
			return nil
		}).Error
	if err != nil {
		return sum, finerr.Persistence(err, "scan financial status")
	}

	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return sum, nil
}

func (s *Service) progressOne(ctx context.Context, id uuid.UUID, cache map[uuid.UUID]*ClassTerms, outbox *notifService.Outbox, now time.Time, sum *ProgressionSummary) (bool, error) {
	repaired := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.FinancialStatusModel
		if err := helper.ForUpdate(tx).Where("financial_status_id = ?", id).Take(&st).Error; err != nil {
			return finerr.Persistence(err, "lock financial status")
		}
		terms, ok := cache[st.FinancialStatusClassID]
		if !ok {
			t, err := LoadClassTerms(ctx, tx, st.FinancialStatusClassID)
			if err != nil {
				return err
			}
			cache[st.FinancialStatusClassID] = t
			terms = t
		}

		before := st.FinancialStatusCurrentBlock
		if done := st.AdvanceBlocks(terms.Thresholds(&st)); len(done) > 0 || st.FinancialStatusCurrentBlock != before {
			due := terms.DueDate(st.FinancialStatusCurrentBlock, now)
			st.FinancialStatusNextPaymentDue = &due
			if err := tx.Save(&st).Error; err != nil {
				return finerr.Persistence(err, "update financial status")
			}
			repaired = true
		}

		if st.FinancialStatusNextPaymentDue != nil && !st.BlockPaid(st.FinancialStatusCurrentBlock) {
			due := *st.FinancialStatusNextPaymentDue
			if due.After(now) && due.Sub(now) <= upcomingWindow {
				outbox.Notify(st.FinancialStatusStudentID,
					"Upcoming payment",
					fmt.Sprintf("Block %d of your fees is due on %s. Outstanding balance: %s.",
						st.FinancialStatusCurrentBlock, due.Format("2006-01-02"), st.FinancialStatusBalance.StringFixed(2)),
					notifModel.CategoryReminder,
				)
				sum.Reminded++
			}
		}
		return nil
	})
	return repaired, err
}

// file: internals/features/finance/reports/service/query.go
package service

import (
	"strings"
	"time"

	"gorm.io/gorm"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/finerr"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
)

type Kind string

const (
	KindTransactions Kind = "transactions"
	KindOutstanding  Kind = "outstanding"
	KindRevenue      Kind = "revenue"
)

// Outstanding-report status filter values.
const (
	StandingSuspended = "suspended"
	StandingCurrent   = "current"
)

// ReportQuery is the filter set shared by every report kind. Zero values
// mean "no filter". From is inclusive, To exclusive.
type ReportQuery struct {
	Kind          Kind
	From          *time.Time
	To            *time.Time
	ProgramType   feeModel.ProgramType
	PaymentMethod string
	Status        string
}

func (q *ReportQuery) Normalize() {
	q.Kind = Kind(strings.ToLower(strings.TrimSpace(string(q.Kind))))
	q.ProgramType = feeModel.ProgramType(strings.ToLower(strings.TrimSpace(string(q.ProgramType))))
	q.PaymentMethod = strings.ToLower(strings.TrimSpace(q.PaymentMethod))
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
}

func (q ReportQuery) Validate() error {
	switch q.Kind {
	case KindTransactions, KindOutstanding, KindRevenue:
	default:
		return finerr.Validation("unknown report kind %q", q.Kind)
	}
	switch q.ProgramType {
	case "", feeModel.ProgramTypeOnline, feeModel.ProgramTypeOnsite:
	default:
		return finerr.Validation("program_type must be online or onsite")
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return finerr.Validation("from must be before to")
	}
	if q.Kind == KindOutstanding {
		switch q.Status {
		case "", StandingSuspended, StandingCurrent:
		default:
			return finerr.Validation("status must be suspended or current")
		}
		if q.PaymentMethod != "" {
			return finerr.Validation("payment_method does not apply to the outstanding report")
		}
	}
	return nil
}

/* ===================== scopes ===================== */

func createdBetween(col string, from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where(col+" >= ?", from.UTC())
		}
		if to != nil {
			db = db.Where(col+" < ?", to.UTC())
		}
		return db
	}
}

func columnEquals(col, v string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v == "" {
			return db
		}
		return db.Where(col+" = ?", v)
	}
}

// transactionProgramType keeps transactions whose (student, class) ledger
// row is of program type pt.
func transactionProgramType(pt feeModel.ProgramType) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pt == "" {
			return db
		}
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&ledgerModel.FinancialStatusModel{}).
			Select("1").
			Where("financial_status_student_id = financial_transactions.financial_transaction_student_id").
			Where("financial_status_class_id = financial_transactions.financial_transaction_class_id").
			Where("financial_status_program_type = ?", pt)
		return db.Where("EXISTS (?)", sub)
	}
}

func standing(status string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch status {
		case StandingSuspended:
			return db.Where("financial_status_is_suspended = ?", true)
		case StandingCurrent:
			return db.Where("financial_status_is_suspended = ?", false)
		}
		return db
	}
}

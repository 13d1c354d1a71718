// file: internals/features/finance/reports/service/report.go
package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	transModel "impactacademy_backend/internals/features/finance/transactions/model"
)

const dateLayout = "2006-01-02"

var (
	transactionColumns = []string{"date", "reference", "student_id", "class_id", "type", "payment_method", "amount", "status", "verified"}
	outstandingColumns = []string{"student_id", "class_id", "program_type", "total_fee", "paid_amount", "balance", "current_block", "suspended", "next_payment_due"}
	revenueColumns     = []string{"transaction_type", "payment_method", "transactions", "total"}
)

// Report is a rendered table. Total sums the money column of the report.
type Report struct {
	Kind        Kind            `json:"kind"`
	GeneratedAt time.Time       `json:"generated_at"`
	Columns     []string        `json:"columns"`
	Rows        [][]string      `json:"rows"`
	Total       decimal.Decimal `json:"total"`
}

// Generate runs q against db. Each kind owns its base table and the subset
// of filters that applies to it.
func Generate(ctx context.Context, db *gorm.DB, q ReportQuery, now time.Time) (*Report, error) {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	r := &Report{Kind: q.Kind, GeneratedAt: now.UTC(), Total: decimal.Zero}
	var err error
	switch q.Kind {
	case KindTransactions:
		err = transactionsReport(ctx, db, q, r)
	case KindOutstanding:
		err = outstandingReport(ctx, db, q, r)
	case KindRevenue:
		err = revenueReport(ctx, db, q, r)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func transactionsReport(ctx context.Context, db *gorm.DB, q ReportQuery, r *Report) error {
	var rows []transModel.FinancialTransactionModel
	if err := db.WithContext(ctx).
		Model(&transModel.FinancialTransactionModel{}).
		Scopes(
			createdBetween("financial_transaction_created_at", q.From, q.To),
			columnEquals("financial_transaction_payment_method", q.PaymentMethod),
			columnEquals("financial_transaction_status", q.Status),
			transactionProgramType(q.ProgramType),
		).
		Order("financial_transaction_created_at ASC").
		Find(&rows).Error; err != nil {
		return finerr.Persistence(err, "load transactions report")
	}

	r.Columns = transactionColumns
	r.Rows = make([][]string, 0, len(rows))
	for _, t := range rows {
		r.Rows = append(r.Rows, []string{
			t.FinancialTransactionCreatedAt.UTC().Format(dateLayout),
			t.FinancialTransactionGatewayReference,
			t.FinancialTransactionStudentID.String(),
			optionalID(t.FinancialTransactionClassID),
			string(t.FinancialTransactionType),
			t.FinancialTransactionMethod,
			t.FinancialTransactionAmount.StringFixed(2),
			t.FinancialTransactionStatus,
			strconv.FormatBool(t.FinancialTransactionIsVerified),
		})
		r.Total = r.Total.Add(t.FinancialTransactionAmount)
	}
	return nil
}

func outstandingReport(ctx context.Context, db *gorm.DB, q ReportQuery, r *Report) error {
	var rows []ledgerModel.FinancialStatusModel
	if err := db.WithContext(ctx).
		Model(&ledgerModel.FinancialStatusModel{}).
		Where("financial_status_balance > 0").
		Scopes(
			createdBetween("financial_status_next_payment_due", q.From, q.To),
			columnEquals("financial_status_program_type", string(q.ProgramType)),
			standing(q.Status),
		).
		Order("financial_status_balance DESC").
		Find(&rows).Error; err != nil {
		return finerr.Persistence(err, "load outstanding report")
	}

	r.Columns = outstandingColumns
	r.Rows = make([][]string, 0, len(rows))
	for _, s := range rows {
		due := ""
		if s.FinancialStatusNextPaymentDue != nil {
			due = s.FinancialStatusNextPaymentDue.UTC().Format(dateLayout)
		}
		r.Rows = append(r.Rows, []string{
			s.FinancialStatusStudentID.String(),
			s.FinancialStatusClassID.String(),
			string(s.FinancialStatusProgramType),
			s.FinancialStatusTotalFee.StringFixed(2),
			s.FinancialStatusPaidAmount.StringFixed(2),
			s.FinancialStatusBalance.StringFixed(2),
			strconv.Itoa(s.FinancialStatusCurrentBlock),
			strconv.FormatBool(s.FinancialStatusIsSuspended),
			due,
		})
		r.Total = r.Total.Add(s.FinancialStatusBalance)
	}
	return nil
}

type revenueRow struct {
	TransactionType string
	PaymentMethod   string
	Transactions    int64
	Total           decimal.Decimal
}

func revenueReport(ctx context.Context, db *gorm.DB, q ReportQuery, r *Report) error {
	status := q.Status
	if status == "" {
		status = transModel.TransactionStatusCompleted
	}

	var rows []revenueRow
	if err := db.WithContext(ctx).
		Model(&transModel.FinancialTransactionModel{}).
		Select(`financial_transaction_type AS transaction_type,
			financial_transaction_payment_method AS payment_method,
			COUNT(*) AS transactions,
			COALESCE(SUM(financial_transaction_amount), 0) AS total`).
		Scopes(
			createdBetween("financial_transaction_created_at", q.From, q.To),
			columnEquals("financial_transaction_payment_method", q.PaymentMethod),
			columnEquals("financial_transaction_status", status),
			transactionProgramType(q.ProgramType),
		).
		Group("financial_transaction_type, financial_transaction_payment_method").
		Order("financial_transaction_type ASC, financial_transaction_payment_method ASC").
		Scan(&rows).Error; err != nil {
		return finerr.Persistence(err, "aggregate revenue report")
	}

	r.Columns = revenueColumns
	r.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		r.Rows = append(r.Rows, []string{
			row.TransactionType,
			row.PaymentMethod,
			strconv.FormatInt(row.Transactions, 10),
			row.Total.StringFixed(2),
		})
		r.Total = r.Total.Add(row.Total)
	}
	return nil
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

/* ===================== export ===================== */

// WriteCSV writes the header row then every data row.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(r.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// EncodeJSON renders rows as objects keyed by column name.
func EncodeJSON(r *Report) ([]byte, error) {
	records := make([]map[string]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]string, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return sonic.Marshal(map[string]any{
		"kind":         r.Kind,
		"generated_at": r.GeneratedAt,
		"columns":      r.Columns,
		"total":        r.Total.StringFixed(2),
		"count":        len(records),
		"records":      records,
	})
}

// file: internals/features/finance/reports/dto/report_dto.go
package dto

import (
	"strings"
	"time"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/reports/service"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ReportRequest is read from the query string. Dates are YYYY-MM-DD and
// the range covers both From and To days.
type ReportRequest struct {
	From          string `query:"from"`
	To            string `query:"to"`
	ProgramType   string `query:"program_type"`
	PaymentMethod string `query:"payment_method"`
	Status        string `query:"status"`
	Format        string `query:"format" validate:"omitempty,oneof=json csv"`
}

func (r *ReportRequest) Normalize() {
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Format == "" {
		r.Format = FormatJSON
	}
}

func (r ReportRequest) ToQuery(kind string) (service.ReportQuery, error) {
	q := service.ReportQuery{
		Kind:          service.Kind(kind),
		ProgramType:   feeModel.ProgramType(r.ProgramType),
		PaymentMethod: r.PaymentMethod,
		Status:        r.Status,
	}
	if r.From != "" {
		t, err := time.Parse("2006-01-02", r.From)
		if err != nil {
			return q, finerr.Validation("invalid from (use YYYY-MM-DD)")
		}
		q.From = &t
	}
	if r.To != "" {
		t, err := time.Parse("2006-01-02", r.To)
		if err != nil {
			return q, finerr.Validation("invalid to (use YYYY-MM-DD)")
		}
		end := t.AddDate(0, 0, 1)
		q.To = &end
	}
	q.Normalize()
	return q, nil
}

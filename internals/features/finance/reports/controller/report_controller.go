// file: internals/features/finance/reports/controller/report_controller.go
package controller

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/reports/dto"
	"impactacademy_backend/internals/features/finance/reports/service"
	helper "impactacademy_backend/internals/helpers"
)

type ReportController struct {
	DB        *gorm.DB
	Validator *validator.Validate
	Now       func() time.Time
}

func NewReportController(db *gorm.DB) *ReportController {
	return &ReportController{DB: db, Validator: validator.New(), Now: time.Now}
}

/* =======================================================================
   GET /api/a/finance/reports/:kind
   kind: transactions | outstanding | revenue
   Query params:
     - from, to: YYYY-MM-DD (inclusive)
     - program_type: online|onsite
     - payment_method, status
     - format: json (default) | csv
======================================================================= */

func (h *ReportController) Export(c *fiber.Ctx) error {
	var req dto.ReportRequest
	if err := c.QueryParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	q, err := req.ToQuery(c.Params("kind"))
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}

	now := h.Now()
	rep, err := service.Generate(c.UserContext(), h.DB, q, now)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}

	filename := fmt.Sprintf("%s-%s.%s", rep.Kind, now.UTC().Format("20060102-150405"), req.Format)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	if req.Format == dto.FormatCSV {
		var buf bytes.Buffer
		if err := service.WriteCSV(&buf, rep); err != nil {
			return helper.JsonError(c, fiber.StatusInternalServerError, "failed to render csv")
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	}

	body, err := service.EncodeJSON(rep)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "failed to render json")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(body)
}

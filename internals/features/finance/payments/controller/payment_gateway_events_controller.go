// file: internals/features/finance/payments/controller/payment_gateway_events_controller.go
package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/payments/dto"
	"impactacademy_backend/internals/features/finance/payments/model"
	helper "impactacademy_backend/internals/helpers"
)

type PaymentGatewayEventController struct {
	DB *gorm.DB
}

func NewPaymentGatewayEventController(db *gorm.DB) *PaymentGatewayEventController {
	return &PaymentGatewayEventController{DB: db}
}

/* =======================================================================
   List (filter + pagination)
   Query params:
     - status: received|processing|success|failed|ignored
     - verification_id: uuid
     - q: external_id / external_ref (substring)
     - start, end: RFC3339 (received_at)
     - page (default 1), per_page (default 20, max 200)
======================================================================= */

// GET /api/a/finance/gateway-events
func (h *PaymentGatewayEventController) ListEvents(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext()).Model(&model.PaymentGatewayEventModel{})

	if s := strings.TrimSpace(c.Query("status")); s != "" {
		db = db.Where("gateway_event_status = ?", strings.ToLower(s))
	}
	if vid := strings.TrimSpace(c.Query("verification_id")); vid != "" {
		id, err := uuid.Parse(vid)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid verification_id")
		}
		db = db.Where("gateway_event_verification_id = ?", id)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(gateway_event_external_id) LIKE ? OR LOWER(COALESCE(gateway_event_external_ref,'')) LIKE ?", like, like)
	}
	if start := strings.TrimSpace(c.Query("start")); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid start (use RFC3339)")
		}
		db = db.Where("gateway_event_received_at >= ?", t)
	}
	if end := strings.TrimSpace(c.Query("end")); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid end (use RFC3339)")
		}
		db = db.Where("gateway_event_received_at < ?", t)
	}

	p := helper.ResolvePaging(c, 20, 200)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "failed to count events")
	}
	var rows []model.PaymentGatewayEventModel
	if err := db.Order("gateway_event_received_at DESC").
		Limit(p.Limit).Offset(p.Offset).
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "failed to list events")
	}

	out := make([]*dto.PaymentGatewayEventResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromGatewayEvent(&rows[i], false))
	}
	pg := helper.BuildPagination(total, p.Page, p.PerPage)
	return helper.JsonList(c, "ok", out, &pg)
}

// GET /api/a/finance/gateway-events/:id
func (h *PaymentGatewayEventController) GetByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m model.PaymentGatewayEventModel
	if err := h.DB.WithContext(c.UserContext()).
		First(&m, "gateway_event_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "event not found")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "failed to load event")
	}
	return helper.JsonOK(c, "ok", dto.FromGatewayEvent(&m, true))
}

package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"

	"renolink/crm"
	"renolink/models"
	"renolink/utils"
)

type LeadController struct {
	Service *crm.Service
	Logger  *log.Logger
}

func NewLeadController(service *crm.Service, logger *log.Logger) *LeadController {
	return &LeadController{
		Service: service,
		Logger:  logger,
	}
}

func actorFrom(c *fiber.Ctx) *models.Actor {
	return c.Locals("actor").(*models.Actor)
}

// respondError maps engine errors onto the HTTP surface. Unexpected
// failures go to sentry; the typed ones are the caller's to recover from.
func (lc *LeadController) respondError(c *fiber.Ctx, err error) error {
	var invalid *crm.InvalidTransitionError
	var downstream *crm.DownstreamError

	switch {
	case errors.Is(err, crm.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	case errors.Is(err, crm.ErrVersionConflict):
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"Lead was updated by someone else. Refresh and try again.", nil)
	case errors.Is(err, crm.ErrLeadClosed):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity,
			"Lead is closed and cannot be changed", nil)
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid status transition",
			"details": invalid.Error(),
			"allowed": invalid.Allowed,
		})
	case errors.As(err, &downstream):
		return utils.ErrorResponse(c, fiber.StatusBadGateway,
			"External service failed", downstream.Err)
	default:
		utils.LogError("lead_operation_failed", err, map[string]interface{}{
			"path": c.Path(),
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Operation failed", err)
	}
}

// CreateLead registers a new lead for the caller's supplier.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	actor := actorFrom(c)

	var input struct {
		Name         string  `json:"name" validate:"required,max=200"`
		ContactPhone string  `json:"contact_phone" validate:"omitempty,max=30"`
		ContactEmail string  `json:"contact_email" validate:"omitempty,max=200"`
		Priority     string  `json:"priority" validate:"omitempty,oneof=vip high medium low"`
		SourceKey    string  `json:"source_key" validate:"omitempty,max=100"`
		CampaignName string  `json:"campaign_name" validate:"omitempty,max=200"`
		AssignedTo   *string `json:"assigned_to"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.ContactEmail != "" {
		if err := checkmail.ValidateFormat(input.ContactEmail); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact email", err)
		}
	}

	lead := &models.Lead{
		SupplierID:   actor.SupplierID,
		Name:         input.Name,
		ContactPhone: input.ContactPhone,
		ContactEmail: strings.ToLower(input.ContactEmail),
		Priority:     models.LeadPriority(input.Priority),
		SourceKey:    input.SourceKey,
		CampaignName: input.CampaignName,
		AssignedTo:   input.AssignedTo,
	}

	view, err := lc.Service.Create(lead)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(view))
}

// GetLeads lists the supplier's leads with filters and fresh SLA badges.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	actor := actorFrom(c)

	var filter crm.Filter
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			status := models.LeadStatus(strings.TrimSpace(s))
			if !status.IsValid() {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown status filter: "+s, nil)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	filter.Source = c.Query("source")
	filter.Query = c.Query("q")
	filter.SortAsc = c.Query("sort") == "asc"

	views, err := lc.Service.List(actor.SupplierID, filter)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(views))
}

// GetBoard returns the kanban view: one column per status.
func (lc *LeadController) GetBoard(c *fiber.Ctx) error {
	actor := actorFrom(c)

	columns, err := lc.Service.Board(actor.SupplierID)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(columns))
}

// GetLead returns a single lead by ID
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	actor := actorFrom(c)

	view, err := lc.Service.Get(actor.SupplierID, c.Params("id"))
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(view))
}

// ChangeStatus moves a lead on the board. The UI translates a card drop
// into exactly one of these calls.
func (lc *LeadController) ChangeStatus(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	var input struct {
		Status          string `json:"status" validate:"required"`
		ExpectedVersion int    `json:"expected_version" validate:"required,min=1"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	view, err := lc.Service.ChangeStatus(
		actor.SupplierID, leadID,
		models.LeadStatus(input.Status), input.ExpectedVersion, actor.UserID,
	)
	if err != nil {
		return lc.respondError(c, err)
	}

	// Surface escalations so the notification layer can pick them up.
	if view.Status == models.StatusNoAnswerX5 {
		utils.LogEvent("lead_escalated", map[string]interface{}{
			"lead_id":     view.ID,
			"supplier_id": view.SupplierID,
			"actor":       actor.UserID,
		})
	}

	return c.JSON(utils.SuccessResponse(view))
}

// Snooze pauses the lead's SLA clock for the requested number of hours.
func (lc *LeadController) Snooze(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	var input struct {
		Hours           int `json:"hours" validate:"required,min=1,max=720"`
		ExpectedVersion int `json:"expected_version" validate:"required,min=1"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	view, err := lc.Service.Snooze(
		actor.SupplierID, leadID,
		time.Duration(input.Hours)*time.Hour, input.ExpectedVersion, actor.UserID,
	)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(view))
}

// Assign sets or clears the lead's assigned user.
func (lc *LeadController) Assign(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	var input struct {
		AssigneeID      *string `json:"assignee_id" validate:"omitempty,max=100"`
		ExpectedVersion int     `json:"expected_version" validate:"required,min=1"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	view, err := lc.Service.Assign(
		actor.SupplierID, leadID,
		input.AssigneeID, input.ExpectedVersion, actor.UserID,
	)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(view))
}

// AddNote appends an annotation; allowed even on closed leads.
func (lc *LeadController) AddNote(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	var input struct {
		Text string `json:"text" validate:"required,max=2000"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	note, err := lc.Service.AddNote(actor.SupplierID, leadID, input.Text, actor.UserID)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(note))
}

// GetNotes lists a lead's annotations, newest first.
func (lc *LeadController) GetNotes(c *fiber.Ctx) error {
	actor := actorFrom(c)

	notes, err := lc.Service.Notes(actor.SupplierID, c.Params("id"))
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(notes))
}

// GetAuditTrail returns the append-only change history for support
// diagnostics.
func (lc *LeadController) GetAuditTrail(c *fiber.Ctx) error {
	actor := actorFrom(c)

	entries, err := lc.Service.AuditTrail(actor.SupplierID, c.Params("id"))
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(entries))
}

// CreateQuoteDraft asks the quote-drafting service for a draft and forwards
// the identifier it returns.
func (lc *LeadController) CreateQuoteDraft(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	utils.LogEvent("quote_draft_requested", map[string]interface{}{
		"lead_id":     leadID,
		"supplier_id": actor.SupplierID,
	})

	quoteID, err := lc.Service.CreateQuoteDraft(actor.SupplierID, leadID, actor.UserID)
	if err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"quote_id": quoteID,
	}))
}

// DeleteLead hard-deletes a lead after detaching order references.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	actor := actorFrom(c)
	leadID := c.Params("id")

	if err := lc.Service.Delete(actor.SupplierID, leadID, actor.UserID); err != nil {
		return lc.respondError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Lead deleted successfully",
	}))
}

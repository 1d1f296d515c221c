package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/service"
	"github.com/kapilsaini46/rks/pkg/response"
)

type contentService interface {
	Page(ctx context.Context, id string) (*models.ContentPage, error)
	UpsertPage(ctx context.Context, id string, in service.PageInput) (*models.ContentPage, error)
	CreateTicket(ctx context.Context, actor *models.User, in service.TicketInput) (*models.SupportTicket, error)
	Tickets(ctx context.Context, actor *models.User) ([]models.SupportTicket, error)
	SetTicketStatus(ctx context.Context, id string, status models.TicketStatus) error
}

// ContentHandler serves the static pages and the support desk.
type ContentHandler struct {
	service contentService
	users   userResolver
}

// NewContentHandler builds a new handler.
func NewContentHandler(svc contentService, users userResolver) *ContentHandler {
	return &ContentHandler{service: svc, users: users}
}

// Page godoc
// @Summary Content page
// @Tags Content
// @Produce json
// @Param id path string true "privacy, terms, refund or about"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{id} [get]
func (h *ContentHandler) Page(c *gin.Context) {
	page, err := h.service.Page(c.Request.Context(), strings.ToLower(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, nil)
}

// UpsertPage godoc
// @Summary Edit a content page
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Page ID"
// @Param payload body service.PageInput true "Page"
// @Success 200 {object} response.Envelope
// @Router /pages/{id} [put]
func (h *ContentHandler) UpsertPage(c *gin.Context) {
	var in service.PageInput
	if !bindJSON(c, &in, "invalid page payload") {
		return
	}
	page, err := h.service.UpsertPage(c.Request.Context(), strings.ToLower(c.Param("id")), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, nil)
}

// CreateTicket godoc
// @Summary Open a support ticket
// @Tags Support
// @Accept json
// @Produce json
// @Param payload body service.TicketInput true "Ticket"
// @Success 201 {object} response.Envelope
// @Router /tickets [post]
func (h *ContentHandler) CreateTicket(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var in service.TicketInput
	if !bindJSON(c, &in, "invalid ticket payload") {
		return
	}
	ticket, err := h.service.CreateTicket(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ticket)
}

// Tickets godoc
// @Summary List support tickets
// @Description Teachers see their own tickets, admins see all
// @Tags Support
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tickets [get]
func (h *ContentHandler) Tickets(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	items, err := h.service.Tickets(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// SetTicketStatus godoc
// @Summary Change ticket status
// @Tags Admin
// @Accept json
// @Param id path string true "Ticket ID"
// @Success 204 {object} response.Envelope
// @Router /tickets/{id} [patch]
func (h *ContentHandler) SetTicketStatus(c *gin.Context) {
	var req struct {
		Status models.TicketStatus `json:"status" binding:"required,oneof=OPEN RESOLVED CLOSED"`
	}
	if !bindJSON(c, &req, "status must be OPEN, RESOLVED or CLOSED") {
		return
	}
	if err := h.service.SetTicketStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

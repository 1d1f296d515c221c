package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/service"
	"github.com/kapilsaini46/rks/pkg/response"
)

type overviewService interface {
	Overview(ctx context.Context) (*service.Overview, error)
}

// OverviewHandler serves the admin console counters.
type OverviewHandler struct {
	service overviewService
}

// NewOverviewHandler builds a new handler.
func NewOverviewHandler(svc overviewService) *OverviewHandler {
	return &OverviewHandler{service: svc}
}

// Overview godoc
// @Summary Admin overview counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/overview [get]
func (h *OverviewHandler) Overview(c *gin.Context) {
	res, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

package handler

import (
	"os"

	"github.com/gin-gonic/gin"

	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type exportOpener interface {
	Open(token string) (*os.File, string, error)
}

// ExportHandler streams stored exports behind signed tokens. No session is needed.
type ExportHandler struct {
	exports exportOpener
}

// NewExportHandler builds a new handler.
func NewExportHandler(exports exportOpener) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Fetch godoc
// @Summary Fetch a stored export
// @Tags Exports
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Fetch(c *gin.Context) {
	file, name, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	response.Stream(c, "application/pdf", name, info.Size(), file)
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/service"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type patternService interface {
	List(ctx context.Context) ([]models.SamplePattern, error)
	Get(ctx context.Context, classNum, subject string) (*models.SamplePattern, error)
	Upsert(ctx context.Context, in service.PatternInput, uploads []service.Upload) (*models.SamplePattern, error)
	Delete(ctx context.Context, classNum, subject string) error
}

// form field name per attachment kind
var patternUploadFields = map[string]models.AttachmentKind{
	"sample_paper": models.AttachmentSamplePaper,
	"syllabus":     models.AttachmentSyllabus,
}

// PatternHandler manages the sample patterns that steer generation style.
type PatternHandler struct {
	service  patternService
	maxBytes int64
}

// NewPatternHandler builds a new handler. maxBytes caps each attachment read from the form.
func NewPatternHandler(svc patternService, maxBytes int64) *PatternHandler {
	return &PatternHandler{service: svc, maxBytes: maxBytes}
}

// List godoc
// @Summary List sample patterns
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/patterns [get]
func (h *PatternHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get the pattern of a class and subject
// @Tags Admin
// @Produce json
// @Param class path string true "Class"
// @Param subject path string true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/patterns/{class}/{subject} [get]
func (h *PatternHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("class"), c.Param("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Upsert godoc
// @Summary Create or replace a sample pattern
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param class_num formData string true "Class"
// @Param subject formData string true "Subject"
// @Param content formData string false "Sample paper text"
// @Param sample_paper formData file false "Sample paper document"
// @Param syllabus formData file false "Syllabus document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/patterns [post]
func (h *PatternHandler) Upsert(c *gin.Context) {
	in := service.PatternInput{
		ClassNum: c.PostForm("class_num"),
		Subject:  c.PostForm("subject"),
		Content:  c.PostForm("content"),
	}

	var uploads []service.Upload
	for field, kind := range patternUploadFields {
		upload, err := h.readUpload(c, field, kind)
		if err != nil {
			response.Error(c, err)
			return
		}
		if upload != nil {
			uploads = append(uploads, *upload)
		}
	}

	pattern, err := h.service.Upsert(c.Request.Context(), in, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pattern, nil)
}

func (h *PatternHandler) readUpload(c *gin.Context, field string, kind models.AttachmentKind) (*service.Upload, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field+" upload")
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" exceeds the upload limit")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
	}
	return &service.Upload{
		Kind:     kind,
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// Delete godoc
// @Summary Remove a sample pattern and its attachments
// @Tags Admin
// @Param class path string true "Class"
// @Param subject path string true "Subject"
// @Success 204 {object} response.Envelope
// @Router /admin/patterns/{class}/{subject} [delete]
func (h *PatternHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("class"), c.Param("subject")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

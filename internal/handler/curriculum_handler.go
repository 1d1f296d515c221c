package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/curriculum"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type curriculumService interface {
	Registry(ctx context.Context) (curriculum.Registry, error)
	QuestionTypes(ctx context.Context) (curriculum.QuestionTypes, error)
	AddClass(ctx context.Context, name, actorID string) (curriculum.Registry, error)
	DeleteClass(ctx context.Context, name, actorID string) (curriculum.Registry, error)
	AddSubject(ctx context.Context, class, subject, actorID string) (curriculum.Registry, error)
	DeleteSubject(ctx context.Context, class, subject, actorID string) (curriculum.Registry, error)
	AddQuestionType(ctx context.Context, label, actorID string) (curriculum.QuestionTypes, error)
	DeleteQuestionType(ctx context.Context, label, actorID string) (curriculum.QuestionTypes, error)
}

// CurriculumHandler exposes the class/subject registry and the question-type labels.
type CurriculumHandler struct {
	service curriculumService
}

// NewCurriculumHandler builds a new handler.
func NewCurriculumHandler(svc curriculumService) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func respondRegistry(c *gin.Context, status int, reg curriculum.Registry, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, reg, nil)
}

func respondTypes(c *gin.Context, status int, types curriculum.QuestionTypes, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, types, nil)
}

// Registry godoc
// @Summary Curriculum registry
// @Tags Curriculum
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /curriculum [get]
func (h *CurriculumHandler) Registry(c *gin.Context) {
	reg, err := h.service.Registry(c.Request.Context())
	respondRegistry(c, http.StatusOK, reg, err)
}

// AddClass godoc
// @Summary Add a class
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param payload body nameRequest true "Class name"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /curriculum/classes [post]
func (h *CurriculumHandler) AddClass(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req, "class name required") {
		return
	}
	reg, err := h.service.AddClass(c.Request.Context(), req.Name, actorID(c))
	respondRegistry(c, http.StatusCreated, reg, err)
}

// DeleteClass godoc
// @Summary Remove a class and its subjects
// @Tags Curriculum
// @Produce json
// @Param class path string true "Class"
// @Success 200 {object} response.Envelope
// @Router /curriculum/classes/{class} [delete]
func (h *CurriculumHandler) DeleteClass(c *gin.Context) {
	reg, err := h.service.DeleteClass(c.Request.Context(), c.Param("class"), actorID(c))
	respondRegistry(c, http.StatusOK, reg, err)
}

// AddSubject godoc
// @Summary Add a subject to a class
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param class path string true "Class"
// @Param payload body nameRequest true "Subject name"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /curriculum/classes/{class}/subjects [post]
func (h *CurriculumHandler) AddSubject(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req, "subject name required") {
		return
	}
	reg, err := h.service.AddSubject(c.Request.Context(), c.Param("class"), req.Name, actorID(c))
	respondRegistry(c, http.StatusCreated, reg, err)
}

// DeleteSubject godoc
// @Summary Remove a subject from a class
// @Tags Curriculum
// @Produce json
// @Param class path string true "Class"
// @Param subject path string true "Subject"
// @Success 200 {object} response.Envelope
// @Router /curriculum/classes/{class}/subjects/{subject} [delete]
func (h *CurriculumHandler) DeleteSubject(c *gin.Context) {
	reg, err := h.service.DeleteSubject(c.Request.Context(), c.Param("class"), c.Param("subject"), actorID(c))
	respondRegistry(c, http.StatusOK, reg, err)
}

// QuestionTypes godoc
// @Summary Question type labels
// @Tags Curriculum
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /question-types [get]
func (h *CurriculumHandler) QuestionTypes(c *gin.Context) {
	types, err := h.service.QuestionTypes(c.Request.Context())
	respondTypes(c, http.StatusOK, types, err)
}

// AddQuestionType godoc
// @Summary Add a question type label
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param payload body nameRequest true "Label"
// @Success 201 {object} response.Envelope
// @Router /question-types [post]
func (h *CurriculumHandler) AddQuestionType(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req, "label required") {
		return
	}
	types, err := h.service.AddQuestionType(c.Request.Context(), req.Name, actorID(c))
	respondTypes(c, http.StatusCreated, types, err)
}

// DeleteQuestionType godoc
// @Summary Remove a question type label
// @Tags Curriculum
// @Produce json
// @Param label path string true "Label"
// @Success 200 {object} response.Envelope
// @Router /question-types/{label} [delete]
func (h *CurriculumHandler) DeleteQuestionType(c *gin.Context) {
	label := c.Param("label")
	if label == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "label required"))
		return
	}
	types, err := h.service.DeleteQuestionType(c.Request.Context(), label, actorID(c))
	respondTypes(c, http.StatusOK, types, err)
}

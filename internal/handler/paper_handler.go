package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/paper"
	"github.com/kapilsaini46/rks/internal/render"
	"github.com/kapilsaini46/rks/internal/service"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type paperService interface {
	GenerateFullPaper(ctx context.Context, actor *models.User, req service.GenerateRequest, meta models.RequestMeta) (*models.QuestionPaper, error)
	Create(ctx context.Context, actor *models.User, req service.SaveRequest) (*models.QuestionPaper, error)
	Save(ctx context.Context, actor *models.User, id string, req service.SaveRequest) (*models.QuestionPaper, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.QuestionPaper, error)
	List(ctx context.Context, actor *models.User, q service.PaperQuery) ([]models.QuestionPaper, *models.Pagination, error)
	UpdateMeta(ctx context.Context, actor *models.User, id string, meta models.PaperMeta) (*models.QuestionPaper, error)
	AddSection(ctx context.Context, actor *models.User, id string) (*models.QuestionPaper, error)
	RenameSection(ctx context.Context, actor *models.User, id, sectionID, title string) (*models.QuestionPaper, error)
	DeleteSection(ctx context.Context, actor *models.User, id, sectionID string) (*models.QuestionPaper, error)
	AddQuestion(ctx context.Context, actor *models.User, id, sectionID string) (*models.QuestionPaper, error)
	UpdateQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string, patch paper.QuestionPatch) (*models.QuestionPaper, error)
	DeleteQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error)
	RegenerateQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error)
	GenerateDiagram(ctx context.Context, actor *models.User, id, sectionID, questionID, prompt string) (*models.QuestionPaper, error)
	AttachImage(ctx context.Context, actor *models.User, id, sectionID, questionID, dataURL string) (*models.QuestionPaper, error)
	ResizeImage(ctx context.Context, actor *models.User, id, sectionID, questionID string, width int) (*models.QuestionPaper, error)
	RemoveImage(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error)
	Hide(ctx context.Context, actor *models.User, id string, audience models.Audience) error
	Purge(ctx context.Context, actor *models.User, id string, meta models.RequestMeta) error
	Preview(ctx context.Context, actor *models.User, id string, mode render.Mode) (string, error)
}

type downloadService interface {
	Download(ctx context.Context, actor *models.User, paperID string, meta models.RequestMeta) (*service.DownloadResult, error)
}

// PaperHandler exposes generation, the editor and the download gate.
type PaperHandler struct {
	papers    paperService
	downloads downloadService
	users     userResolver
}

// NewPaperHandler builds a new handler.
func NewPaperHandler(papers paperService, downloads downloadService, users userResolver) *PaperHandler {
	return &PaperHandler{papers: papers, downloads: downloads, users: users}
}

type questionPatchRequest struct {
	Type         *models.QuestionType `json:"type"`
	Text         *string              `json:"text"`
	Marks        *float64             `json:"marks"`
	Options      *[]string            `json:"options"`
	MatchPairs   *[]models.MatchPair  `json:"match_pairs"`
	Answer       *string              `json:"answer"`
	Topic        *string              `json:"topic"`
	CustomNumber *string              `json:"custom_number"`
	ImagePrompt  *string              `json:"image_prompt"`
}

func (r questionPatchRequest) patch() paper.QuestionPatch {
	return paper.QuestionPatch{
		Type:         r.Type,
		Text:         r.Text,
		Marks:        r.Marks,
		Options:      r.Options,
		MatchPairs:   r.MatchPairs,
		Answer:       r.Answer,
		Topic:        r.Topic,
		CustomNumber: r.CustomNumber,
		ImagePrompt:  r.ImagePrompt,
	}
}

func (h *PaperHandler) respond(c *gin.Context, status int, p *models.QuestionPaper, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, p, nil)
}

// Generate godoc
// @Summary Generate a full paper from a blueprint
// @Description Consumes one credit for teachers once the paper is compiled
// @Tags Papers
// @Accept json
// @Produce json
// @Param payload body service.GenerateRequest true "Paper header and blueprint"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /papers/generate [post]
func (h *PaperHandler) Generate(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req service.GenerateRequest
	if !bindJSON(c, &req, "invalid generation payload") {
		return
	}
	p, err := h.papers.GenerateFullPaper(c.Request.Context(), actor, req, requestMeta(c))
	h.respond(c, http.StatusCreated, p, err)
}

// Create godoc
// @Summary Save a new manual paper
// @Tags Papers
// @Accept json
// @Produce json
// @Param payload body service.SaveRequest true "Paper"
// @Success 201 {object} response.Envelope
// @Router /papers [post]
func (h *PaperHandler) Create(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req service.SaveRequest
	if !bindJSON(c, &req, "invalid paper payload") {
		return
	}
	p, err := h.papers.Create(c.Request.Context(), actor, req)
	h.respond(c, http.StatusCreated, p, err)
}

// List godoc
// @Summary List papers visible to the caller
// @Tags Papers
// @Produce json
// @Param class_num query string false "Class"
// @Param subject query string false "Subject"
// @Param owner query string false "Owner email (admin only)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	items, pagination, err := h.papers.List(c.Request.Context(), actor, service.PaperQuery{
		Owner:    c.Query("owner"),
		ClassNum: c.Query("class_num"),
		Subject:  c.Query("subject"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a paper
// @Tags Papers
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.Get(c.Request.Context(), actor, c.Param("id"))
	h.respond(c, http.StatusOK, p, err)
}

// Save godoc
// @Summary Replace the body of a paper
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param payload body service.SaveRequest true "Paper"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /papers/{id} [put]
func (h *PaperHandler) Save(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req service.SaveRequest
	if !bindJSON(c, &req, "invalid paper payload") {
		return
	}
	p, err := h.papers.Save(c.Request.Context(), actor, c.Param("id"), req)
	h.respond(c, http.StatusOK, p, err)
}

// UpdateMeta godoc
// @Summary Update the paper header
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param payload body models.PaperMeta true "Header"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/meta [patch]
func (h *PaperHandler) UpdateMeta(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var meta models.PaperMeta
	if !bindJSON(c, &meta, "invalid paper header") {
		return
	}
	p, err := h.papers.UpdateMeta(c.Request.Context(), actor, c.Param("id"), meta)
	h.respond(c, http.StatusOK, p, err)
}

// Delete godoc
// @Summary Hide or purge a paper
// @Description target=TEACHER hides from teachers, ADMIN from admins, PERMANENT deletes (admin only)
// @Tags Papers
// @Param id path string true "Paper ID"
// @Param target query string false "TEACHER, ADMIN or PERMANENT"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /papers/{id} [delete]
func (h *PaperHandler) Delete(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	target := strings.ToUpper(c.Query("target"))
	if target == "" {
		target = string(models.AudienceTeacher)
		if actor.IsAdmin() {
			target = string(models.AudienceAdmin)
		}
	}
	var err error
	switch target {
	case "PERMANENT":
		err = h.papers.Purge(c.Request.Context(), actor, c.Param("id"), requestMeta(c))
	case string(models.AudienceTeacher), string(models.AudienceAdmin):
		err = h.papers.Hide(c.Request.Context(), actor, c.Param("id"), models.Audience(target))
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "target must be TEACHER, ADMIN or PERMANENT")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Preview godoc
// @Summary Printable HTML preview
// @Tags Papers
// @Produce html
// @Param id path string true "Paper ID"
// @Param mode query string false "PAPER or ANSWER_KEY"
// @Success 200 {string} string "HTML"
// @Router /papers/{id}/preview [get]
func (h *PaperHandler) Preview(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	mode := render.Mode(strings.ToUpper(c.DefaultQuery("mode", string(render.ModePaper))))
	if mode != render.ModePaper && mode != render.ModeAnswerKey {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be PAPER or ANSWER_KEY"))
		return
	}
	html, err := h.papers.Preview(c.Request.Context(), actor, c.Param("id"), mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Download godoc
// @Summary Download the paper and answer key
// @Description Passes the download gate once and returns signed links to both PDFs
// @Tags Papers
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /papers/{id}/download [post]
func (h *PaperHandler) Download(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	res, err := h.downloads.Download(c.Request.Context(), actor, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AddSection godoc
// @Summary Append an empty section
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Success 201 {object} response.Envelope
// @Router /papers/{id}/sections [post]
func (h *PaperHandler) AddSection(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.AddSection(c.Request.Context(), actor, c.Param("id"))
	h.respond(c, http.StatusCreated, p, err)
}

// RenameSection godoc
// @Summary Rename a section
// @Tags Paper editor
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId} [patch]
func (h *PaperHandler) RenameSection(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if !bindJSON(c, &req, "section title required") {
		return
	}
	p, err := h.papers.RenameSection(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), req.Title)
	h.respond(c, http.StatusOK, p, err)
}

// DeleteSection godoc
// @Summary Remove a section
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId} [delete]
func (h *PaperHandler) DeleteSection(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.DeleteSection(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"))
	h.respond(c, http.StatusOK, p, err)
}

// AddQuestion godoc
// @Summary Append a blank question to a section
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Success 201 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions [post]
func (h *PaperHandler) AddQuestion(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.AddQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"))
	h.respond(c, http.StatusCreated, p, err)
}

// UpdateQuestion godoc
// @Summary Edit question fields
// @Tags Paper editor
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId} [patch]
func (h *PaperHandler) UpdateQuestion(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req questionPatchRequest
	if !bindJSON(c, &req, "invalid question payload") {
		return
	}
	p, err := h.papers.UpdateQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"), req.patch())
	h.respond(c, http.StatusOK, p, err)
}

// DeleteQuestion godoc
// @Summary Remove a question
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId} [delete]
func (h *PaperHandler) DeleteQuestion(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.DeleteQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"))
	h.respond(c, http.StatusOK, p, err)
}

// RegenerateQuestion godoc
// @Summary Replace a question with a freshly generated one
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId}/regenerate [post]
func (h *PaperHandler) RegenerateQuestion(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.RegenerateQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"))
	h.respond(c, http.StatusOK, p, err)
}

// GenerateDiagram godoc
// @Summary Attach an AI diagram to a question
// @Tags Paper editor
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId}/diagram [post]
func (h *PaperHandler) GenerateDiagram(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid diagram payload") {
		return
	}
	p, err := h.papers.GenerateDiagram(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"), req.Prompt)
	h.respond(c, http.StatusOK, p, err)
}

// AttachImage godoc
// @Summary Attach an uploaded image as a data URL
// @Tags Paper editor
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId}/image [put]
func (h *PaperHandler) AttachImage(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req struct {
		DataURL string `json:"data_url" binding:"required"`
	}
	if !bindJSON(c, &req, "image data url required") {
		return
	}
	p, err := h.papers.AttachImage(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"), req.DataURL)
	h.respond(c, http.StatusOK, p, err)
}

// ResizeImage godoc
// @Summary Set the display width of a question image
// @Tags Paper editor
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId}/image [patch]
func (h *PaperHandler) ResizeImage(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	var req struct {
		Width int `json:"width" binding:"required"`
	}
	if !bindJSON(c, &req, "image width required") {
		return
	}
	p, err := h.papers.ResizeImage(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"), req.Width)
	h.respond(c, http.StatusOK, p, err)
}

// RemoveImage godoc
// @Summary Remove the image of a question
// @Tags Paper editor
// @Produce json
// @Param id path string true "Paper ID"
// @Param sectionId path string true "Section ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/sections/{sectionId}/questions/{questionId}/image [delete]
func (h *PaperHandler) RemoveImage(c *gin.Context) {
	actor := currentUser(c, h.users)
	if actor == nil {
		return
	}
	p, err := h.papers.RemoveImage(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"), c.Param("questionId"))
	h.respond(c, http.StatusOK, p, err)
}

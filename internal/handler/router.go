package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/middleware"
	"github.com/kapilsaini46/rks/internal/models"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type ipLimiter interface {
	Allow(key string) bool
}

// RouterConfig collects everything the API routes need. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Tokens       tokenValidator
	Audits       auditStore
	AuthLimiter  ipLimiter
	Auth         *AuthHandler
	Curriculum   *CurriculumHandler
	Papers       *PaperHandler
	Exports      *ExportHandler
	Subscription *SubscriptionHandler
	Users        *UserHandler
	Overview     *OverviewHandler
	Patterns     *PatternHandler
	Content      *ContentHandler
}

// RegisterRoutes mounts the versioned API on api.
func RegisterRoutes(api *gin.RouterGroup, cfg RouterConfig) {
	jwt := middleware.JWT(cfg.Tokens)
	admin := middleware.AdminOnly()
	audit := func(action, resource, param string) gin.HandlerFunc {
		return middleware.Audit(cfg.Audits, action, resource, param)
	}

	if cfg.Auth != nil {
		auth := api.Group("/auth", middleware.RateLimitByIP(cfg.AuthLimiter))
		auth.POST("/register", cfg.Auth.Register)
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/refresh", cfg.Auth.Refresh)
		api.POST("/auth/logout", jwt, cfg.Auth.Logout)
		api.GET("/me", jwt, cfg.Auth.Me)
	}

	if cfg.Exports != nil {
		api.GET("/exports/:token", cfg.Exports.Fetch)
	}
	if cfg.Subscription != nil {
		api.GET("/plans", cfg.Subscription.Plans)
		api.GET("/plans/:plan/qr", cfg.Subscription.QR)
	}
	if cfg.Content != nil {
		api.GET("/pages/:id", cfg.Content.Page)
	}

	protected := api.Group("", jwt)

	if h := cfg.Curriculum; h != nil {
		protected.GET("/curriculum", h.Registry)
		protected.GET("/question-types", h.QuestionTypes)

		write := protected.Group("", admin)
		write.POST("/curriculum/classes", audit(models.AuditActionCurriculumWrite, "curriculum", ""), h.AddClass)
		write.DELETE("/curriculum/classes/:class", audit(models.AuditActionCurriculumWrite, "curriculum", "class"), h.DeleteClass)
		write.POST("/curriculum/classes/:class/subjects", audit(models.AuditActionCurriculumWrite, "curriculum", "class"), h.AddSubject)
		write.DELETE("/curriculum/classes/:class/subjects/:subject", audit(models.AuditActionCurriculumWrite, "curriculum", "subject"), h.DeleteSubject)
		write.POST("/question-types", audit(models.AuditActionCurriculumWrite, "qtypes", ""), h.AddQuestionType)
		write.DELETE("/question-types/:label", audit(models.AuditActionCurriculumWrite, "qtypes", "label"), h.DeleteQuestionType)
	}

	if h := cfg.Papers; h != nil {
		papers := protected.Group("/papers")
		papers.POST("/generate", h.Generate)
		papers.POST("", h.Create)
		papers.GET("", h.List)
		papers.GET("/:id", h.Get)
		papers.PUT("/:id", h.Save)
		papers.PATCH("/:id/meta", h.UpdateMeta)
		papers.DELETE("/:id", h.Delete)
		papers.GET("/:id/preview", h.Preview)
		papers.POST("/:id/download", h.Download)

		sections := papers.Group("/:id/sections")
		sections.POST("", h.AddSection)
		sections.PATCH("/:sectionId", h.RenameSection)
		sections.DELETE("/:sectionId", h.DeleteSection)
		sections.POST("/:sectionId/questions", h.AddQuestion)

		question := sections.Group("/:sectionId/questions/:questionId")
		question.PATCH("", h.UpdateQuestion)
		question.DELETE("", h.DeleteQuestion)
		question.POST("/regenerate", h.RegenerateQuestion)
		question.POST("/diagram", h.GenerateDiagram)
		question.PUT("/image", h.AttachImage)
		question.PATCH("/image", h.ResizeImage)
		question.DELETE("/image", h.RemoveImage)
	}

	adminGroup := protected.Group("/admin", admin)

	if h := cfg.Subscription; h != nil {
		protected.POST("/subscriptions/payments", h.RecordPayment)
		protected.POST("/subscriptions/requests", h.CreateRequest)
		adminGroup.GET("/payments", h.History)
		adminGroup.GET("/payments/export", h.ExportHistory)
		adminGroup.POST("/payments/:id/approve", h.Approve)
		adminGroup.POST("/payments/:id/reject", h.Reject)
	}

	if h := cfg.Users; h != nil {
		adminGroup.GET("/users", h.List)
		adminGroup.POST("/users", h.Create)
		adminGroup.GET("/users/:id", h.Get)
		adminGroup.PUT("/users/:id", h.Update)
		adminGroup.DELETE("/users/:id", h.Delete)
	}

	if h := cfg.Overview; h != nil {
		adminGroup.GET("/overview", h.Overview)
	}

	if h := cfg.Patterns; h != nil {
		adminGroup.GET("/patterns", h.List)
		adminGroup.POST("/patterns", audit(models.AuditActionPatternWrite, "sample_patterns", ""), h.Upsert)
		adminGroup.GET("/patterns/:class/:subject", h.Get)
		adminGroup.DELETE("/patterns/:class/:subject", audit(models.AuditActionPatternWrite, "sample_patterns", "subject"), h.Delete)
	}

	if h := cfg.Content; h != nil {
		protected.PUT("/pages/:id", admin, audit(models.AuditActionPageWrite, "content_pages", "id"), h.UpsertPage)
		protected.POST("/tickets", h.CreateTicket)
		protected.GET("/tickets", h.Tickets)
		protected.PATCH("/tickets/:id", admin, h.SetTicketStatus)
	}
}

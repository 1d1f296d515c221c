package paper

import (
	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

// Hide soft-deletes p for one audience. The other audience's flag is untouched.
func Hide(p *models.QuestionPaper, audience models.Audience) error {
	switch audience {
	case models.AudienceTeacher:
		p.VisibleToTeacher = false
	case models.AudienceAdmin:
		p.VisibleToAdmin = false
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown audience")
	}
	return nil
}

// VisibleTo reports whether the audience still sees p.
func VisibleTo(p *models.QuestionPaper, audience models.Audience) bool {
	switch audience {
	case models.AudienceTeacher:
		return p.VisibleToTeacher
	case models.AudienceAdmin:
		return p.VisibleToAdmin
	}
	return false
}

// CanAccess reports whether actor may open p: owners while it is visible to them, admins always.
func CanAccess(p *models.QuestionPaper, actor *models.User) bool {
	if p == nil || actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return p.CreatedBy == actor.Email && p.VisibleToTeacher
}

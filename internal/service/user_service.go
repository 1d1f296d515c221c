package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users from the admin console.
type CreateUserRequest struct {
	Email      string                  `json:"email" validate:"required,email"`
	Name       string                  `json:"name" validate:"required"`
	Role       models.UserRole         `json:"role" validate:"required,oneof=ADMIN TEACHER"`
	Password   string                  `json:"password" validate:"required,min=6"`
	Credits    int                     `json:"credits" validate:"min=0"`
	Plan       models.SubscriptionPlan `json:"subscription_plan" validate:"omitempty,oneof=FREE STARTER PROFESSIONAL PREMIUM"`
	SchoolName string                  `json:"school_name"`
	Mobile     string                  `json:"mobile" validate:"omitempty,mobile"`
	City       string                  `json:"city"`
	State      string                  `json:"state"`
}

// UpdateUserRequest carries the admin-editable account fields. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name        *string                    `json:"name"`
	Credits     *int                       `json:"credits" validate:"omitempty,min=0"`
	Plan        *models.SubscriptionPlan   `json:"subscription_plan" validate:"omitempty,oneof=FREE STARTER PROFESSIONAL PREMIUM"`
	Status      *models.SubscriptionStatus `json:"subscription_status" validate:"omitempty,oneof=NONE PENDING ACTIVE REJECTED"`
	ExpiryDate  *time.Time                 `json:"subscription_expiry_date"`
	ClearExpiry bool                       `json:"clear_expiry"`
	SchoolName  *string                    `json:"school_name"`
	Mobile      *string                    `json:"mobile" validate:"omitempty,mobile"`
	City        *string                    `json:"city"`
	State       *string                    `json:"state"`
}

// UserService handles admin account management.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds an account. A teacher created without credits receives the signup credit on FREE.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:                 uuid.NewString(),
		Email:              req.Email,
		Name:               req.Name,
		Role:               req.Role,
		PasswordHash:       string(passwordHash),
		Credits:            req.Credits,
		SubscriptionPlan:   req.Plan,
		SubscriptionStatus: models.SubscriptionActive,
		SchoolName:         req.SchoolName,
		Mobile:             req.Mobile,
		City:               req.City,
		State:              req.State,
	}
	if user.SubscriptionPlan == "" {
		user.SubscriptionPlan = models.PlanFree
	}
	if user.Role == models.RoleTeacher && user.Credits == 0 {
		user.Credits = signupCredits
		user.SubscriptionPlan = models.PlanFree
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	payload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role, "credits": user.Credits})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, payload, meta)
	return user, nil
}

// Update applies admin edits to credits, plan, status, expiry and profile.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Credits != nil {
		user.Credits = *req.Credits
	}
	if req.Plan != nil {
		user.SubscriptionPlan = *req.Plan
	}
	if req.Status != nil {
		user.SubscriptionStatus = *req.Status
	}
	if req.ExpiryDate != nil {
		expiry := req.ExpiryDate.UTC()
		user.SubscriptionExpiryDate = &expiry
	}
	if req.ClearExpiry {
		user.SubscriptionExpiryDate = nil
	}
	if req.SchoolName != nil {
		user.SchoolName = *req.SchoolName
	}
	if req.Mobile != nil {
		user.Mobile = *req.Mobile
	}
	if req.City != nil {
		user.City = *req.City
	}
	if req.State != nil {
		user.State = *req.State
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"credits": user.Credits, "plan": user.SubscriptionPlan, "status": user.SubscriptionStatus, "expiry": user.SubscriptionExpiryDate,
	})
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, payload, meta)
	return user, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	payload, _ := json.Marshal(map[string]interface{}{"email": user.Email})
	s.audit(ctx, actorID, models.AuditActionUserDelete, user.ID, payload, meta)
	return nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, payload []byte, meta models.RequestMeta) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

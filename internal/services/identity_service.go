package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/learner-service/internal/events"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

const (
	auditActionCreate = "create"
	auditActionUpdate = "update"
	auditEntityUser   = "User"
)

type identityService struct {
	repo      repositories.Repository
	docs      repositories.DocumentRepository
	audit     AuditRecorder
	journal   SagaJournal
	publisher events.EventPublisher
	validator *validator.Validator
	hasher    PasswordHasher
	metrics   *metrics.Metrics
	config    ServiceConfig
	logger    *slog.Logger
}

func NewIdentityService(deps Dependencies, audit AuditRecorder, journal SagaJournal) IdentityService {
	deps = deps.withDefaults()
	return &identityService{
		repo:      deps.Repo,
		docs:      deps.Docs,
		audit:     audit,
		journal:   journal,
		publisher: deps.Publisher,
		validator: deps.Validator,
		hasher:    deps.Hasher,
		metrics:   deps.Metrics,
		config:    deps.Config,
		logger:    deps.Logger,
	}
}

// CreateCompleteUser creates the relational user and then its document-store
// siblings. Only the user row is fatal; later failures are journaled and the
// user is returned with warnings.
func (s *identityService) CreateCompleteUser(ctx context.Context, req *CreateUserRequest) (*UserCompleteResponse, error) {
	if req == nil {
		return nil, validator.ValidationErrors{{Field: "body", Rule: "required", Message: "is required"}}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
	}

	// Step 1: the identity row is the primary write
	storeCtx, cancel := s.config.storeCtx(ctx)
	err = s.repo.User().Create(storeCtx, nil, user)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", "user_id", user.ID, "username", user.Username)

	run := newSagaRun(models.SagaCreateUser, user.ID, s.journal, s.metrics, s.logger)

	// Step 2
	if _, err := s.assignDefaultRole(ctx, user.ID); err != nil {
		run.fail(ctx, models.StepAssignDefaultRole, user.ID, nil, err)
	}

	// Steps 3 and 4
	if err := s.ensureProfile(ctx, user.ID, req.Bio, req.City, req.Country); err != nil {
		run.fail(ctx, models.StepCreateProfile, user.ID, nil, err)
	}
	if err := s.ensureSettings(ctx, user.ID); err != nil {
		run.fail(ctx, models.StepCreateSettings, user.ID, nil, err)
	}

	// Step 5
	activity := &models.UserActivity{
		UserID: user.ID,
		Action: models.ActivityUserCreated,
		Metadata: map[string]interface{}{
			"email":    user.Email,
			"username": user.Username,
		},
	}
	if err := s.appendActivity(ctx, activity); err != nil {
		run.fail(ctx, models.StepAppendActivity, user.ID, activity, err)
	}

	// Step 6
	welcome := &models.Notification{
		UserID:  user.ID,
		Type:    models.NotificationWelcome,
		Title:   fmt.Sprintf("Welcome to %s!", s.config.PlatformName),
		Message: "Start your learning journey today",
	}
	if err := s.appendNotification(ctx, welcome); err != nil {
		run.fail(ctx, models.StepAppendNotification, user.ID, welcome, err)
	}

	// Step 7
	after := map[string]interface{}{"email": user.Email, "username": user.Username}
	audit := newAuditEntry(user.ID, auditActionCreate, auditEntityUser, user.ID, nil, after)
	if err := s.audit.Record(ctx, audit); err != nil {
		run.journalFailure(ctx, models.StepAppendAudit, user.ID, audit, err)
	}

	publish(ctx, s.publisher, s.logger, events.NewEvent(events.EventUserCreated, events.UserCreatedData{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	}))

	return s.completeView(ctx, user, run.issues), nil
}

func (s *identityService) GetUserComplete(ctx context.Context, userID string) (*UserCompleteResponse, error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.User().GetWithAccessGraph(storeCtx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return s.assemble(ctx, user), nil
}

// assemble reads the document-store siblings concurrently. Every read is
// best-effort: absence yields defaults, failure yields defaults plus a warning.
func (s *identityService) assemble(ctx context.Context, user *models.User) *UserCompleteResponse {
	roles, permissions := accessSets(user)
	resp := &UserCompleteResponse{
		User:                user,
		Roles:               roles,
		Permissions:         permissions,
		Profile:             emptyProfile(user.ID),
		Settings:            emptySettings(user.ID),
		RecentActivity:      []*models.UserActivity{},
		UnreadNotifications: []*models.Notification{},
	}

	var (
		mu       sync.Mutex
		warnings []string
		g        errgroup.Group
	)
	warn := func(what string, err error) {
		s.logger.Warn("Document read failed, using defaults", "user_id", user.ID, "read", what, "error", err)
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", what, err))
		mu.Unlock()
	}

	g.Go(func() error {
		storeCtx, cancel := s.config.storeCtx(ctx)
		defer cancel()
		profile, err := s.docs.Profiles().GetProfile(storeCtx, user.ID)
		switch {
		case err == nil:
			resp.Profile = profile
		case !errors.Is(err, ErrNotFound):
			warn("profile", err)
		}
		return nil
	})
	g.Go(func() error {
		storeCtx, cancel := s.config.storeCtx(ctx)
		defer cancel()
		settings, err := s.docs.Profiles().GetSettings(storeCtx, user.ID)
		switch {
		case err == nil:
			resp.Settings = settings
		case !errors.Is(err, ErrNotFound):
			warn("settings", err)
		}
		return nil
	})
	g.Go(func() error {
		storeCtx, cancel := s.config.storeCtx(ctx)
		defer cancel()
		activity, err := s.docs.Activity().RecentActivity(storeCtx, user.ID, s.recentLimit())
		if err != nil {
			warn("recent activity", err)
		} else if activity != nil {
			resp.RecentActivity = activity
		}
		return nil
	})
	g.Go(func() error {
		storeCtx, cancel := s.config.storeCtx(ctx)
		defer cancel()
		notifications, err := s.docs.Notifications().UnreadNotifications(storeCtx, user.ID)
		if err != nil {
			warn("notifications", err)
		} else if notifications != nil {
			resp.UnreadNotifications = notifications
		}
		return nil
	})
	_ = g.Wait()

	resp.Warnings = warnings
	return resp
}

func (s *identityService) UpdateUserProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*UserCompleteResponse, error) {
	if req == nil {
		req = &UpdateProfileRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.config.storeCtx(ctx)
	prior, err := s.repo.User().GetByID(storeCtx, nil, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// The prior profile only feeds the audit snapshot
	storeCtx, cancel = s.config.storeCtx(ctx)
	priorProfile, err := s.docs.Profiles().GetProfile(storeCtx, userID)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read prior profile", "user_id", userID, "error", err)
		}
		priorProfile = nil
	}

	updated := *prior
	fields := repositories.UserFields{FirstName: req.FirstName, LastName: req.LastName, Avatar: req.Avatar}
	if !fields.IsEmpty() {
		storeCtx, cancel = s.config.storeCtx(ctx)
		err = s.repo.User().UpdateFields(storeCtx, nil, userID, fields)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		applyUserFields(&updated, fields)
	}

	storeCtx, cancel = s.config.storeCtx(ctx)
	profile, err := s.docs.Profiles().UpsertProfile(storeCtx, userID, repositories.ProfileFields{
		Bio:         req.Bio,
		City:        req.City,
		Country:     req.Country,
		SocialLinks: req.SocialLinks,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	run := newSagaRun(models.SagaUpdateProfile, userID, s.journal, s.metrics, s.logger)

	activity := &models.UserActivity{
		UserID:   userID,
		Action:   models.ActivityProfileUpdated,
		Metadata: map[string]interface{}{"changes": profileChanges(req)},
	}
	if err := s.appendActivity(ctx, activity); err != nil {
		run.fail(ctx, models.StepAppendActivity, userID, activity, err)
	}

	before := userSnapshot(prior, priorProfile)
	after := userSnapshot(&updated, profile)
	audit := newAuditEntry(userID, auditActionUpdate, auditEntityUser, userID, before, after)
	if err := s.audit.Record(ctx, audit); err != nil {
		run.journalFailure(ctx, models.StepAppendAudit, userID, audit, err)
	}

	s.logger.Info("Profile updated", "user_id", userID, "issues", len(run.issues))

	return s.completeView(ctx, &updated, run.issues), nil
}

// RepairUser re-asserts the default role, profile and settings of a user.
// Every step is idempotent so it can run any number of times.
func (s *identityService) RepairUser(ctx context.Context, userID string) (*RepairReport, error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	_, err := s.repo.User().GetByID(storeCtx, nil, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	report := &RepairReport{UserID: userID}
	var errs []error

	assigned, err := s.assignDefaultRole(ctx, userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("default role: %w", err))
	}
	report.RoleAssigned = assigned

	if err := s.ensureProfile(ctx, userID, nil, nil, nil); err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	} else {
		report.ProfileEnsured = true
	}

	if err := s.ensureSettings(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("settings: %w", err))
	} else {
		report.SettingsEnsured = true
	}

	for _, e := range errs {
		report.Errors = append(report.Errors, e.Error())
	}
	if len(errs) > 0 {
		return report, fmt.Errorf("failed to repair user %s: %w", userID, errors.Join(errs...))
	}

	s.logger.Info("User repaired", "user_id", userID, "role_assigned", assigned)
	return report, nil
}

// assignDefaultRole reports whether the role was newly assigned. A missing
// default role is skipped, not an error.
func (s *identityService) assignDefaultRole(ctx context.Context, userID string) (bool, error) {
	if s.config.DefaultRole == "" {
		return false, nil
	}

	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	role, err := s.repo.Role().GetByName(storeCtx, nil, s.config.DefaultRole)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("Default role not found, skipping assignment", "user_id", userID, "role", s.config.DefaultRole)
			return false, nil
		}
		return false, err
	}

	has, err := s.repo.Role().HasUserRole(storeCtx, nil, userID, role.ID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	if err := s.repo.Role().AssignToUser(storeCtx, nil, userID, role.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *identityService) ensureProfile(ctx context.Context, userID string, bio, city, country *string) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	profile := &models.UserProfile{
		ID:      uuid.New().String(),
		UserID:  userID,
		City:    city,
		Country: country,
		Preferences: map[string]interface{}{
			"theme":    "light",
			"language": s.config.DefaultLanguage,
		},
	}
	if bio != nil {
		profile.Bio = *bio
	}
	return s.docs.Profiles().EnsureProfile(storeCtx, profile)
}

func (s *identityService) ensureSettings(ctx context.Context, userID string) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	return s.docs.Profiles().EnsureSettings(storeCtx, &models.UserSetting{
		ID:       uuid.New().String(),
		UserID:   userID,
		Settings: defaultSettings(s.config.DefaultLanguage),
	})
}

func (s *identityService) appendActivity(ctx context.Context, activity *models.UserActivity) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()
	return s.docs.Activity().AppendActivity(storeCtx, activity)
}

func (s *identityService) appendNotification(ctx context.Context, notification *models.Notification) error {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()
	return s.docs.Notifications().AppendNotification(storeCtx, notification)
}

// completeView re-reads the merged view after a write. If the re-read fails
// the write still succeeded, so the known user is returned with a warning.
func (s *identityService) completeView(ctx context.Context, user *models.User, issues []StepIssue) *UserCompleteResponse {
	resp, err := s.GetUserComplete(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Failed to reload user view", "user_id", user.ID, "error", err)
		resp = s.assemble(ctx, user)
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("user reload failed: %v", err))
	}
	for _, issue := range issues {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s failed: %s", issue.Step, issue.Error))
	}
	return resp
}

func (s *identityService) recentLimit() int64 {
	if s.config.RecentActivityLimit > 0 {
		return s.config.RecentActivityLimit
	}
	return 10
}

func defaultSettings(language string) map[string]interface{} {
	return map[string]interface{}{
		"theme":              "light",
		"language":           language,
		"emailNotifications": true,
		"pushNotifications":  true,
		"weeklyReport":       false,
	}
}

func emptyProfile(userID string) *models.UserProfile {
	return &models.UserProfile{
		UserID:      userID,
		SocialLinks: map[string]string{},
		Preferences: map[string]interface{}{},
	}
}

func emptySettings(userID string) *models.UserSetting {
	return &models.UserSetting{
		UserID:   userID,
		Settings: map[string]interface{}{},
	}
}

func applyUserFields(user *models.User, fields repositories.UserFields) {
	if fields.FirstName != nil {
		user.FirstName = *fields.FirstName
	}
	if fields.LastName != nil {
		user.LastName = *fields.LastName
	}
	if fields.Avatar != nil {
		user.Avatar = fields.Avatar
	}
}

// profileChanges is the raw change payload, keyed like the request body
func profileChanges(req *UpdateProfileRequest) map[string]interface{} {
	changes := make(map[string]interface{})
	set := func(key string, v *string) {
		if v != nil {
			changes[key] = *v
		}
	}
	set("first_name", req.FirstName)
	set("last_name", req.LastName)
	set("avatar", req.Avatar)
	set("bio", req.Bio)
	set("city", req.City)
	set("country", req.Country)
	if req.SocialLinks != nil {
		changes["social_links"] = req.SocialLinks
	}
	return changes
}

// userSnapshot merges the user row and its profile for audit before/after
func userSnapshot(user *models.User, profile *models.UserProfile) map[string]interface{} {
	snap := map[string]interface{}{
		"id":         user.ID,
		"email":      user.Email,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}
	if user.Avatar != nil {
		snap["avatar"] = *user.Avatar
	}
	if profile != nil {
		snap["bio"] = profile.Bio
		if profile.City != nil {
			snap["city"] = *profile.City
		}
		if profile.Country != nil {
			snap["country"] = *profile.Country
		}
		if len(profile.SocialLinks) > 0 {
			snap["social_links"] = profile.SocialLinks
		}
	}
	return snap
}

// newAuditEntry carries its ID from the start; the same record is written and,
// on failure, journaled for replay.
func newAuditEntry(userID, action, entity, entityID string, before, after interface{}) *models.AuditLog {
	return &models.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Changes:   models.AuditChanges{Before: before, After: after},
		Timestamp: time.Now().UTC(),
	}
}

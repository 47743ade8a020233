package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learner-service/internal/events"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

// fakeStore backs in-memory versions of both repositories. Failures are
// injected per method name, e.g. "Profiles.EnsureProfile".
type fakeStore struct {
	mu sync.Mutex

	users        map[string]*models.User
	roles        map[string]*models.Role // by name
	userRoles    map[string][]string     // user id -> role names
	userPerms    map[string][]string     // user id -> permission names
	lessonCounts map[string]int64        // course id -> lessons
	courses      map[string]*models.Course
	enrollments  map[string]*models.Enrollment
	sagaSteps    []*models.SagaStep

	profiles      map[string]*models.UserProfile
	settings      map[string]*models.UserSetting
	progress      map[string]*models.LessonProgress // user|lesson
	activities    []*models.UserActivity
	audits        []*models.AuditLog
	notifications []*models.Notification
	achievements  []*models.Achievement

	failures map[string]error
	lostAcks map[string]error
	calls    map[string]int
	after    map[string]func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]*models.User),
		roles:        make(map[string]*models.Role),
		userRoles:    make(map[string][]string),
		userPerms:    make(map[string][]string),
		lessonCounts: make(map[string]int64),
		courses:      make(map[string]*models.Course),
		enrollments:  make(map[string]*models.Enrollment),
		profiles:     make(map[string]*models.UserProfile),
		settings:     make(map[string]*models.UserSetting),
		progress:     make(map[string]*models.LessonProgress),
		failures:     make(map[string]error),
		calls:        make(map[string]int),
		after:        make(map[string]func()),
		lostAcks:     make(map[string]error),
	}
}

func (s *fakeStore) fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// enter must be called with mu held
func (s *fakeStore) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

// loseAck makes method apply its write and still report err, like a timeout
// that fires after the commit
func (s *fakeStore) loseAck(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.lostAcks, method)
		return
	}
	s.lostAcks[method] = err
}

// runAfter registers fn to run once, outside the lock, when method returns
func (s *fakeStore) runAfter(method string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after[method] = fn
}

func (s *fakeStore) leave(method string) {
	s.mu.Lock()
	fn := s.after[method]
	delete(s.after, method)
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *fakeStore) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *fakeStore) relational() repositories.Repository { return &fakeRepo{s} }
func (s *fakeStore) documents() repositories.DocumentRepository {
	return &fakeDocs{s}
}

// ===== seeding =====

func (s *fakeStore) addRole(name string, permissions ...string) *models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := &models.Role{ID: uuid.New().String(), Name: name}
	for _, p := range permissions {
		role.Permissions = append(role.Permissions, models.RolePermission{
			RoleID:     role.ID,
			Permission: models.Permission{ID: uuid.New().String(), Name: p},
		})
	}
	s.roles[name] = role
	return role
}

func (s *fakeStore) addUser(id, first, last, email string, roles ...string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &models.User{ID: id, Email: email, Username: id, FirstName: first, LastName: last, IsActive: true}
	s.users[id] = user
	s.userRoles[id] = append(s.userRoles[id], roles...)
	return user
}

func (s *fakeStore) grant(userID string, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userPerms[userID] = append(s.userPerms[userID], permissions...)
}

func (s *fakeStore) addCourse(id, title string, lessons int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[id] = &models.Course{ID: id, Title: title}
	s.lessonCounts[id] = lessons
}

func (s *fakeStore) addEnrollment(id, userID, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[id] = &models.Enrollment{ID: id, UserID: userID, CourseID: courseID, IsActive: true, EnrolledAt: time.Now()}
}

func (s *fakeStore) enrollment(id string) models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.enrollments[id]
}

func (s *fakeStore) achievementCount(userID, courseID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.achievements {
		if a.UserID == userID && a.CourseID == courseID && a.Type == models.AchievementCourseCompletion {
			n++
		}
	}
	return n
}

func (s *fakeStore) activitiesOf(action models.ActivityAction) []*models.UserActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.UserActivity
	for _, a := range s.activities {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

func (s *fakeStore) notificationsOf(t models.NotificationType) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (s *fakeStore) steps() []*models.SagaStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.SagaStep, len(s.sagaSteps))
	for i, step := range s.sagaSteps {
		cp := *step
		out[i] = &cp
	}
	return out
}

// ===== relational =====

type fakeRepo struct{ s *fakeStore }

func (r *fakeRepo) User() repositories.UserRepository             { return &fakeUserRepo{r.s} }
func (r *fakeRepo) Role() repositories.RoleRepository             { return &fakeRoleRepo{r.s} }
func (r *fakeRepo) Course() repositories.CourseRepository         { return &fakeCourseRepo{r.s} }
func (r *fakeRepo) Enrollment() repositories.EnrollmentRepository { return &fakeEnrollmentRepo{r.s} }
func (r *fakeRepo) Saga() repositories.SagaRepository             { return &fakeSagaRepo{r.s} }
func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}
func (r *fakeRepo) Ping(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.enter("Repo.Ping")
}
func (r *fakeRepo) Close() error { return nil }

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("User.Create"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return fmt.Errorf("create user failed: %w", repositories.ErrDuplicate)
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("User.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user failed: %w", repositories.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetWithAccessGraph(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("User.GetWithAccessGraph"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user failed: %w", repositories.ErrNotFound)
	}
	cp := *u
	cp.Roles = nil
	cp.Permissions = nil
	for _, name := range r.s.userRoles[id] {
		if role, ok := r.s.roles[name]; ok {
			cp.Roles = append(cp.Roles, models.UserRole{UserID: id, RoleID: role.ID, Role: *role})
		}
	}
	for _, name := range r.s.userPerms[id] {
		cp.Permissions = append(cp.Permissions, models.UserPermission{UserID: id, Permission: models.Permission{Name: name}})
	}
	return &cp, nil
}

func (r *fakeUserRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, fields repositories.UserFields) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("User.UpdateFields"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("update user failed: %w", repositories.ErrNotFound)
	}
	applyUserFields(u, fields)
	return nil
}

type fakeRoleRepo struct{ s *fakeStore }

func (r *fakeRoleRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Role.GetByName"); err != nil {
		return nil, err
	}
	role, ok := r.s.roles[name]
	if !ok {
		return nil, fmt.Errorf("get role failed: %w", repositories.ErrNotFound)
	}
	return role, nil
}

func (r *fakeRoleRepo) roleName(roleID string) string {
	for name, role := range r.s.roles {
		if role.ID == roleID {
			return name
		}
	}
	return ""
}

func (r *fakeRoleRepo) AssignToUser(ctx context.Context, tx *gorm.DB, userID, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Role.AssignToUser"); err != nil {
		return err
	}
	name := r.roleName(roleID)
	for _, existing := range r.s.userRoles[userID] {
		if existing == name {
			return nil
		}
	}
	r.s.userRoles[userID] = append(r.s.userRoles[userID], name)
	return nil
}

func (r *fakeRoleRepo) HasUserRole(ctx context.Context, tx *gorm.DB, userID, roleID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Role.HasUserRole"); err != nil {
		return false, err
	}
	name := r.roleName(roleID)
	for _, existing := range r.s.userRoles[userID] {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}

type fakeCourseRepo struct{ s *fakeStore }

func (r *fakeCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, fmt.Errorf("get course failed: %w", repositories.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCourseRepo) CountLessons(ctx context.Context, tx *gorm.DB, courseID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Course.CountLessons"); err != nil {
		return 0, err
	}
	return r.s.lessonCounts[courseID], nil
}

type fakeEnrollmentRepo struct{ s *fakeStore }

func (r *fakeEnrollmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Enrollment.GetByID"); err != nil {
		return nil, err
	}
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, fmt.Errorf("get enrollment failed: %w", repositories.ErrNotFound)
	}
	cp := *e
	if c, ok := r.s.courses[e.CourseID]; ok {
		cp.Course = *c
	}
	return &cp, nil
}

func (r *fakeEnrollmentRepo) ListActiveByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Enrollment.ListActiveByUser"); err != nil {
		return nil, err
	}
	var out []*models.Enrollment
	for _, e := range r.s.enrollments {
		if e.UserID == userID && e.IsActive {
			cp := *e
			if c, ok := r.s.courses[e.CourseID]; ok {
				cp.Course = *c
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEnrollmentRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id string, progress float64, completedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Enrollment.UpdateProgress"); err != nil {
		return err
	}
	e, ok := r.s.enrollments[id]
	if !ok {
		return fmt.Errorf("update enrollment failed: %w", repositories.ErrNotFound)
	}
	e.Progress = progress
	e.CompletedAt = completedAt
	return nil
}

type fakeSagaRepo struct{ s *fakeStore }

func (r *fakeSagaRepo) Record(ctx context.Context, tx *gorm.DB, step *models.SagaStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Saga.Record"); err != nil {
		return err
	}
	cp := *step
	cp.CreatedAt = time.Now()
	r.s.sagaSteps = append(r.s.sagaSteps, &cp)
	return nil
}

func (r *fakeSagaRepo) ListPending(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]*models.SagaStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("Saga.ListPending"); err != nil {
		return nil, err
	}
	var out []*models.SagaStep
	for _, step := range r.s.sagaSteps {
		if step.Status == models.SagaStepFailed && step.Attempts < maxAttempts {
			cp := *step
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeSagaRepo) find(id string) *models.SagaStep {
	for _, step := range r.s.sagaSteps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

func (r *fakeSagaRepo) MarkResolved(ctx context.Context, tx *gorm.DB, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step := r.find(id)
	if step == nil {
		return repositories.ErrNotFound
	}
	step.Status = models.SagaStepResolved
	return nil
}

func (r *fakeSagaRepo) MarkAttemptFailed(ctx context.Context, tx *gorm.DB, id string, lastErr string, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step := r.find(id)
	if step == nil {
		return repositories.ErrNotFound
	}
	step.Attempts++
	step.LastError = lastErr
	if step.Attempts >= maxAttempts {
		step.Status = models.SagaStepAbandoned
	}
	return nil
}

// ===== documents =====

type fakeDocs struct{ s *fakeStore }

func (d *fakeDocs) Profiles() repositories.ProfileRepository             { return &fakeProfiles{d.s} }
func (d *fakeDocs) Progress() repositories.LessonProgressRepository      { return &fakeProgress{d.s} }
func (d *fakeDocs) Activity() repositories.ActivityRepository            { return &fakeActivity{d.s} }
func (d *fakeDocs) Notifications() repositories.NotificationRepository   { return &fakeNotifications{d.s} }
func (d *fakeDocs) EnsureIndexes(ctx context.Context) error              { return nil }
func (d *fakeDocs) Close(ctx context.Context) error                      { return nil }
func (d *fakeDocs) Ping(ctx context.Context) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return d.s.enter("Docs.Ping")
}

type fakeProfiles struct{ s *fakeStore }

func (p *fakeProfiles) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Profiles.GetProfile"); err != nil {
		return nil, err
	}
	profile, ok := p.s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("get profile failed: %w", repositories.ErrNotFound)
	}
	cp := *profile
	return &cp, nil
}

func (p *fakeProfiles) EnsureProfile(ctx context.Context, profile *models.UserProfile) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Profiles.EnsureProfile"); err != nil {
		return err
	}
	if _, ok := p.s.profiles[profile.UserID]; !ok {
		cp := *profile
		p.s.profiles[profile.UserID] = &cp
	}
	return nil
}

func (p *fakeProfiles) UpsertProfile(ctx context.Context, userID string, fields repositories.ProfileFields) (*models.UserProfile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Profiles.UpsertProfile"); err != nil {
		return nil, err
	}
	profile, ok := p.s.profiles[userID]
	if !ok {
		profile = &models.UserProfile{ID: uuid.New().String(), UserID: userID, CreatedAt: time.Now()}
		p.s.profiles[userID] = profile
	}
	if fields.Bio != nil {
		profile.Bio = *fields.Bio
	}
	if fields.City != nil {
		profile.City = fields.City
	}
	if fields.Country != nil {
		profile.Country = fields.Country
	}
	if fields.SocialLinks != nil {
		profile.SocialLinks = fields.SocialLinks
	}
	if fields.Preferences != nil {
		profile.Preferences = fields.Preferences
	}
	profile.UpdatedAt = time.Now()
	cp := *profile
	return &cp, nil
}

func (p *fakeProfiles) GetSettings(ctx context.Context, userID string) (*models.UserSetting, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Profiles.GetSettings"); err != nil {
		return nil, err
	}
	setting, ok := p.s.settings[userID]
	if !ok {
		return nil, fmt.Errorf("get settings failed: %w", repositories.ErrNotFound)
	}
	cp := *setting
	return &cp, nil
}

func (p *fakeProfiles) EnsureSettings(ctx context.Context, setting *models.UserSetting) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Profiles.EnsureSettings"); err != nil {
		return err
	}
	if _, ok := p.s.settings[setting.UserID]; !ok {
		cp := *setting
		p.s.settings[setting.UserID] = &cp
	}
	return nil
}

type fakeProgress struct{ s *fakeStore }

func progressKey(userID, lessonID string) string { return userID + "|" + lessonID }

func (p *fakeProgress) MarkCompleted(ctx context.Context, c repositories.LessonCompletion) (*models.LessonProgress, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Progress.MarkCompleted"); err != nil {
		return nil, err
	}
	key := progressKey(c.UserID, c.LessonID)
	lp, ok := p.s.progress[key]
	if !ok {
		lp = &models.LessonProgress{ID: uuid.New().String(), UserID: c.UserID, LessonID: c.LessonID, CreatedAt: c.CompletedAt}
		p.s.progress[key] = lp
	}
	completedAt := c.CompletedAt
	lp.EnrollmentID = c.EnrollmentID
	lp.IsCompleted = true
	lp.CompletedAt = &completedAt
	lp.Attempts++
	if c.TimeSpent != nil {
		lp.TimeSpent = *c.TimeSpent
	}
	if c.QuizResults != nil {
		lp.QuizResults = c.QuizResults
	}
	if c.Notes != nil {
		lp.Notes = c.Notes
	}
	lp.UpdatedAt = c.CompletedAt
	cp := *lp
	return &cp, nil
}

func (p *fakeProgress) RecordAttempt(ctx context.Context, userID, lessonID, enrollmentID string, timeSpent int, at time.Time) (*models.LessonProgress, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Progress.RecordAttempt"); err != nil {
		return nil, err
	}
	key := progressKey(userID, lessonID)
	lp, ok := p.s.progress[key]
	if !ok {
		lp = &models.LessonProgress{ID: uuid.New().String(), UserID: userID, LessonID: lessonID, EnrollmentID: enrollmentID, CreatedAt: at}
		p.s.progress[key] = lp
	}
	lp.Attempts++
	lp.TimeSpent += timeSpent
	lp.UpdatedAt = at
	cp := *lp
	return &cp, nil
}

func (p *fakeProgress) CountCompleted(ctx context.Context, userID, enrollmentID string) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Progress.CountCompleted"); err != nil {
		return 0, err
	}
	var n int64
	for _, lp := range p.s.progress {
		if lp.UserID == userID && lp.EnrollmentID == enrollmentID && lp.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (p *fakeProgress) ListByEnrollment(ctx context.Context, userID, enrollmentID string) ([]*models.LessonProgress, error) {
	defer p.s.leave("Progress.ListByEnrollment")
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.enter("Progress.ListByEnrollment"); err != nil {
		return nil, err
	}
	out := []*models.LessonProgress{}
	for _, lp := range p.s.progress {
		if lp.UserID == userID && lp.EnrollmentID == enrollmentID {
			cp := *lp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

type fakeActivity struct{ s *fakeStore }

func (a *fakeActivity) AppendActivity(ctx context.Context, activity *models.UserActivity) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.enter("Activity.AppendActivity"); err != nil {
		return err
	}
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}
	for _, existing := range a.s.activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("append activity failed: %w", repositories.ErrDuplicate)
		}
	}
	cp := *activity
	a.s.activities = append(a.s.activities, &cp)
	return nil
}

func (a *fakeActivity) RecentActivity(ctx context.Context, userID string, limit int64) ([]*models.UserActivity, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.enter("Activity.RecentActivity"); err != nil {
		return nil, err
	}
	out := []*models.UserActivity{}
	for _, act := range a.s.activities {
		if act.UserID == userID {
			cp := *act
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *fakeActivity) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.enter("Activity.AppendAudit"); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	for _, existing := range a.s.audits {
		if existing.ID == entry.ID {
			return fmt.Errorf("append audit log failed: %w", repositories.ErrDuplicate)
		}
	}
	cp := *entry
	a.s.audits = append(a.s.audits, &cp)
	return a.s.lostAcks["Activity.AppendAudit"]
}

type fakeNotifications struct{ s *fakeStore }

func (n *fakeNotifications) AppendNotification(ctx context.Context, notification *models.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if err := n.s.enter("Notifications.AppendNotification"); err != nil {
		return err
	}
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	cp := *notification
	n.s.notifications = append(n.s.notifications, &cp)
	return nil
}

func (n *fakeNotifications) UnreadNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if err := n.s.enter("Notifications.UnreadNotifications"); err != nil {
		return nil, err
	}
	out := []*models.Notification{}
	for _, note := range n.s.notifications {
		if note.UserID == userID && !note.IsRead {
			cp := *note
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (n *fakeNotifications) InsertAchievement(ctx context.Context, achievement *models.Achievement) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if err := n.s.enter("Notifications.InsertAchievement"); err != nil {
		return err
	}
	for _, a := range n.s.achievements {
		if a.UserID == achievement.UserID && a.Type == achievement.Type && a.CourseID == achievement.CourseID {
			return fmt.Errorf("insert achievement failed: %w", repositories.ErrDuplicate)
		}
	}
	if achievement.ID == "" {
		achievement.ID = uuid.New().String()
	}
	cp := *achievement
	n.s.achievements = append(n.s.achievements, &cp)
	return nil
}

func (n *fakeNotifications) HasAchievement(ctx context.Context, userID string, achievementType models.AchievementType, courseID string) (bool, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if err := n.s.enter("Notifications.HasAchievement"); err != nil {
		return false, err
	}
	for _, a := range n.s.achievements {
		if a.UserID == userID && a.Type == achievementType && a.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

// ===== wiring =====

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store     *fakeStore
	deps      Dependencies
	metrics   *metrics.Metrics
	publisher *events.MockEventPublisher
	journal   SagaJournal
	audit     AuditRecorder
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	logger := testLogger()
	m := metrics.NewNopMetrics()
	publisher := events.NewMockEventPublisher(logger)

	deps := Dependencies{
		Repo:      store.relational(),
		Docs:      store.documents(),
		Publisher: publisher,
		Metrics:   m,
		Hasher:    NewBcryptHasher(bcrypt.MinCost),
		Logger:    logger,
		Config:    DefaultServiceConfig(),
	}.withDefaults()

	return &testEnv{
		store:     store,
		deps:      deps,
		metrics:   m,
		publisher: publisher,
		journal:   NewSagaJournal(deps.Repo, m, deps.Config, logger),
		audit:     NewAuditRecorder(deps.Docs, m, deps.Config, logger),
	}
}

func (e *testEnv) identity() IdentityService {
	return NewIdentityService(e.deps, e.audit, e.journal)
}

func (e *testEnv) progress() ProgressService {
	return NewProgressService(e.deps, e.journal)
}

func (e *testEnv) gate() AuthorizationGate {
	return NewAuthorizationGate(NewPermissionService(e.deps.Repo, e.deps.Config, e.deps.Logger), e.metrics, e.deps.Logger)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

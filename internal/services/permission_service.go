package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

type permissionService struct {
	repo   repositories.Repository
	config ServiceConfig
	logger *slog.Logger
}

// NewPermissionService resolves access sets fresh from the relational store
// on every call
func NewPermissionService(repo repositories.Repository, config ServiceConfig, logger *slog.Logger) PermissionService {
	return &permissionService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

func (s *permissionService) ResolveRoles(ctx context.Context, userID string) ([]string, error) {
	subject, err := s.ResolveSubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	return subject.Roles, nil
}

func (s *permissionService) ResolveEffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	subject, err := s.ResolveSubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	return subject.Permissions, nil
}

func (s *permissionService) ResolveSubject(ctx context.Context, userID string) (*Subject, error) {
	storeCtx, cancel := s.config.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.User().GetWithAccessGraph(storeCtx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	roles, permissions := accessSets(user)
	s.logger.Debug("Resolved access sets", "user_id", userID, "roles", roles, "permissions", len(permissions))

	return &Subject{
		User:        user,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// accessSets flattens the loaded graph into sorted, de-duplicated role and
// permission names. Effective permissions are the role permissions plus the
// direct grants.
func accessSets(user *models.User) ([]string, []string) {
	roleSet := make(map[string]struct{})
	permSet := make(map[string]struct{})

	for _, ur := range user.Roles {
		if ur.Role.Name == "" {
			continue
		}
		roleSet[ur.Role.Name] = struct{}{}
		for _, rp := range ur.Role.Permissions {
			if rp.Permission.Name != "" {
				permSet[rp.Permission.Name] = struct{}{}
			}
		}
	}
	for _, up := range user.Permissions {
		if up.Permission.Name != "" {
			permSet[up.Permission.Name] = struct{}{}
		}
	}

	return sortedKeys(roleSet), sortedKeys(permSet)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

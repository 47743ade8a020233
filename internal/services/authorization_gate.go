package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/learner-service/internal/metrics"
)

type authorizationGate struct {
	permissions PermissionService
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewAuthorizationGate(permissions PermissionService, m *metrics.Metrics, logger *slog.Logger) AuthorizationGate {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &authorizationGate{
		permissions: permissions,
		metrics:     m,
		logger:      logger,
	}
}

func (g *authorizationGate) Authorize(ctx context.Context, userID string, required []string) error {
	return g.authorize(ctx, userID, required, "adhoc")
}

func (g *authorizationGate) AuthorizeOperation(ctx context.Context, userID string, op Operation) error {
	return g.authorize(ctx, userID, PolicyFor(op).Roles, string(op))
}

func (g *authorizationGate) AuthorizeAccess(ctx context.Context, actorID, targetID string, op Operation) error {
	if PolicyFor(op).AllowSelf && actorID != "" && actorID == targetID {
		g.metrics.AuthorizationDecided(string(op), "self")
		return nil
	}
	return g.AuthorizeOperation(ctx, actorID, op)
}

func (g *authorizationGate) authorize(ctx context.Context, userID string, required []string, op string) error {
	if len(required) == 0 {
		g.metrics.AuthorizationDecided(op, "allow")
		return nil
	}

	subject, err := g.permissions.ResolveSubject(ctx, userID)
	if err != nil {
		g.metrics.AuthorizationDecided(op, "error")
		return err
	}

	if subject.Grants(required) {
		g.metrics.AuthorizationDecided(op, "allow")
		return nil
	}

	g.metrics.AuthorizationDecided(op, "deny")
	g.logger.Info("Authorization denied",
		"user_id", userID,
		"operation", op,
		"required", required,
		"roles", subject.Roles)

	return &ForbiddenError{
		UserID:  userID,
		Message: fmt.Sprintf("User %s needs one of these roles: [%s]", subject.User.DisplayName(), strings.Join(required, ", ")),
	}
}

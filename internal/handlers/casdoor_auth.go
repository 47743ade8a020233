package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learner-service/internal/config"
	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
)

// TokenParser validates a bearer token and returns the user id it carries
type TokenParser func(token string) (string, error)

// AuthMiddleware authenticates requests and gates them through the
// authorization gate
type AuthMiddleware struct {
	BaseHandler
	parse TokenParser
	gate  services.AuthorizationGate
}

// NewCasdoorAuthMiddleware validates tokens issued by Casdoor
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, gate services.AuthorizationGate, logger utils.Logger) *AuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return NewAuthMiddleware(func(token string) (string, error) {
		claims, err := client.ParseJwtToken(token)
		if err != nil {
			return "", err
		}
		if claims.Id == "" {
			return "", fmt.Errorf("invalid user ID in token")
		}
		return claims.Id, nil
	}, gate, logger)
}

func NewAuthMiddleware(parse TokenParser, gate services.AuthorizationGate, logger utils.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		parse:       parse,
		gate:        gate,
	}
}

// Authenticate sets user_id from the bearer token
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "authorization header missing",
			})
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid authorization header format",
			})
			return
		}

		userID, err := am.parse(tokenParts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid token",
				Details: err.Error(),
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// RequireOperation lets the request through when the caller may perform op.
// targetParam names the path parameter holding the target user, if any.
func (am *AuthMiddleware) RequireOperation(op services.Operation, targetParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := am.currentUserID(c)
		if !ok {
			c.Abort()
			return
		}

		targetID := ""
		if targetParam != "" {
			targetID = c.Param(targetParam)
		}

		// An unknown caller surfaces as NotFound like any other lookup
		err := am.gate.AuthorizeAccess(c.Request.Context(), actorID, targetID, op)
		if err != nil {
			am.handleServiceError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

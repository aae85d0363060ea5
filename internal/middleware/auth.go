package middleware

import (
	"errors"
	"strings"

	"balance-aggregator/internal/models"
	"balance-aggregator/internal/services"
	"balance-aggregator/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware creates a middleware for API key authentication.
// When the auth service has no keys configured every request passes.
func AuthMiddleware(authService services.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authService.Enabled() {
			c.Next()
			return
		}

		log := logger.GetLogger().WithContext(c.Request.Context())

		apiKey := extractAPIKey(c)
		if apiKey == "" {
			log.Warn("Missing API key",
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
			)

			appErr := models.NewAppErrorWithDetails(
				models.ErrorCodeMissingAPIKey,
				"API key is required",
				"Provide API key in Authorization header or X-API-Key header",
			)
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		validatedKey, err := authService.ValidateAPIKey(apiKey)
		if err != nil {
			log.Warn("API key validation failed",
				zap.Error(err),
				zap.String("client_ip", c.ClientIP()),
			)

			appErr := models.NewAppErrorWithCause(models.ErrorCodeInvalidAPIKey, "Authentication failed", err)
			if errors.Is(err, services.ErrInvalidAPIKey) {
				appErr = models.NewAppError(models.ErrorCodeInvalidAPIKey, "Invalid API key")
			}
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		c.Set("api_key_id", validatedKey.ID)
		ctx := logger.ContextWithAPIKeyID(c.Request.Context(), validatedKey.ID)
		c.Request = c.Request.WithContext(ctx)

		log.Debug("Authentication successful", zap.String("api_key_id", validatedKey.ID))

		c.Next()
	}
}

// extractAPIKey reads "Bearer <key>", "<key>" from Authorization, or X-API-Key
func extractAPIKey(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return strings.TrimSpace(c.GetHeader("X-API-Key"))
	}
	if len(authHeader) >= 6 && strings.EqualFold(authHeader[:6], "bearer") {
		return strings.TrimSpace(authHeader[6:])
	}
	return authHeader
}

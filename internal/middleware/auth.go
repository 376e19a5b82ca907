package middleware

import (
	"strings"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AuthMiddleware 强制认证，token 缺失或无效时返回 401
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.Error(err), zap.String("request_id", c.GetString(util.RequestIDKey)))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ClaimsKey, claims)
		c.Next()
	}
}

// TryAuthMiddleware 可选认证：有合法 token 时注入用户，否则按匿名继续
func TryAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret); err == nil {
				c.Set(util.ClaimsKey, claims)
			}
		}
		c.Next()
	}
}

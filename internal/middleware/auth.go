package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/utils"
)

// 上下文键
const (
	ContextPlayerID = "playerID"
	ContextRole     = "role"
	ContextToken    = "token"
)

// TokenValidator 令牌校验
type TokenValidator interface {
	ValidateToken(tokenString string) (*utils.JWTClaims, error)
}

// AuthMiddleware JWT认证中间件
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// RequireAuth 需要认证的中间件
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}
		m.setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 可选认证的中间件（不强制要求登录）
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := m.validate(token); err == nil {
				m.setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole 需要特定角色的中间件
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		hasRole := false
		for _, role := range roles {
			if claims.Role == role {
				hasRole = true
				break
			}
		}
		if !hasRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "INSUFFICIENT_PERMISSION",
				"message": "权限不足",
			})
			return
		}

		m.setClaims(c, claims)
		c.Next()
	}
}

// authenticate 校验令牌，失败时已写入响应
func (m *AuthMiddleware) authenticate(c *gin.Context) (*utils.JWTClaims, bool) {
	token := extractToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "NO_TOKEN",
			"message": "缺少认证令牌",
		})
		return nil, false
	}

	claims, err := m.validate(token)
	if err != nil {
		code := "INVALID_TOKEN"
		if err == utils.ErrExpiredToken {
			code = "TOKEN_EXPIRED"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    code,
			"message": "无效的令牌",
			"details": err.Error(),
		})
		return nil, false
	}
	c.Set(ContextToken, token)
	return claims, true
}

// validate 只接受访问令牌
func (m *AuthMiddleware) validate(token string) (*utils.JWTClaims, error) {
	claims, err := m.validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, utils.ErrInvalidToken
	}
	return claims, nil
}

func (m *AuthMiddleware) setClaims(c *gin.Context, claims *utils.JWTClaims) {
	c.Set(ContextPlayerID, claims.PlayerID())
	c.Set(ContextRole, claims.Role)
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	// 1. 从Authorization Header获取 (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. 从X-Access-Token Header获取
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. 从Cookie获取
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}

	// 4. 从Query参数获取（WebSocket握手无法携带Header时使用）
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetPlayerID 从上下文获取玩家ID
func GetPlayerID(c *gin.Context) (string, bool) {
	if playerID, exists := c.Get(ContextPlayerID); exists {
		if id, ok := playerID.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) (string, bool) {
	if role, exists := c.Get(ContextRole); exists {
		if r, ok := role.(string); ok {
			return r, true
		}
	}
	return "", false
}

// IsAuthenticated 检查是否已认证
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetPlayerID(c)
	return ok
}

// HasRole 检查是否有特定角色
func HasRole(c *gin.Context, role string) bool {
	if r, exists := GetRole(c); exists {
		return r == role
	}
	return false
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/utils"
)

// AuthHandler 令牌处理器。账号体系在外部，这里只负责续期
type AuthHandler struct {
	jwtManager *utils.JWTManager
}

// NewAuthHandler 创建令牌处理器
func NewAuthHandler(jwtManager *utils.JWTManager) *AuthHandler {
	return &AuthHandler{jwtManager: jwtManager}
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新访问令牌
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken, utils.RolePlayer)
	if err != nil {
		code := errors.ErrTokenInvalid
		if err == utils.ErrExpiredToken {
			code = errors.ErrTokenExpired
		}
		respondError(c, errors.Wrap(err, code))
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   int(h.jwtManager.GetTokenExpiry("access").Seconds()),
		},
	})
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/middleware"
	"github.com/wfunc/skate-game/internal/repository"
	"github.com/wfunc/skate-game/internal/service"
	"github.com/wfunc/skate-game/internal/utils"
	"github.com/wfunc/skate-game/internal/websocket"
	"go.uber.org/zap"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	repos          *repository.Manager
	gameHandler    *GameHandler
	battleHandler  *BattleHandler
	authHandler    *AuthHandler
	wsHandler      *websocket.Handler
	hub            *websocket.Hub
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器；hub为nil时不挂载WebSocket
func NewRouter(repos *repository.Manager, services *service.Services, jwtManager *utils.JWTManager, hub *websocket.Hub, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))

	router := &Router{
		engine:         engine,
		repos:          repos,
		gameHandler:    NewGameHandler(services.Game, log),
		battleHandler:  NewBattleHandler(services.Battle, log),
		authHandler:    NewAuthHandler(jwtManager),
		hub:            hub,
		authMiddleware: middleware.NewAuthMiddleware(jwtManager),
		log:            log,
	}
	if hub != nil {
		router.wsHandler = websocket.NewHandler(hub, log)
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/auth/refresh", r.authHandler.RefreshToken)

		// 游戏相关路由（需要认证）
		games := v1.Group("/games")
		games.Use(r.authMiddleware.RequireAuth())
		{
			games.POST("", r.gameHandler.CreateGame)
			games.GET("/:id", r.gameHandler.GetGame)
			games.GET("/:id/turns", r.gameHandler.ListTurns)
			games.POST("/:id/join", r.gameHandler.JoinGame)
			games.POST("/:id/start", r.gameHandler.StartGame)
			games.POST("/:id/tricks", r.gameHandler.SubmitTrick)
			games.POST("/:id/pass", r.gameHandler.Pass)
			games.POST("/:id/disconnect", r.gameHandler.Disconnect)
			games.POST("/:id/reconnect", r.gameHandler.Reconnect)
			games.POST("/:id/forfeit", r.gameHandler.Forfeit)
			games.POST("/:id/turns/:turnId/judge", r.gameHandler.JudgeTurn)
			games.POST("/:id/turns/:turnId/video", r.gameHandler.AttachVideo)
		}

		// 对决投票路由
		battles := v1.Group("/battles")
		battles.Use(r.authMiddleware.RequireAuth())
		{
			battles.GET("/:id", r.battleHandler.GetBattle)
			battles.POST("/:id/voting", r.battleHandler.InitializeVoting)
			battles.POST("/:id/votes", r.battleHandler.CastVote)
		}

		// 管理员路由（需要管理员权限）
		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireRole(utils.RoleAdmin))
		{
			admin.POST("/games/:id/turns/:turnId/overturn", r.gameHandler.OverturnTurn)
			admin.DELETE("/games/:id", r.gameHandler.DeleteGame)
			admin.DELETE("/battles/:id", r.battleHandler.DeleteBattle)
		}
	}

	// WebSocket路由
	if r.wsHandler != nil {
		r.engine.GET(r.hub.Path(), r.authMiddleware.RequireAuth(), r.wsHandler.ServeWS)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := r.repos.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	status := gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"storage": "database",
	}
	if r.repos.IsMemory() {
		status["storage"] = "memory"
	}
	if r.hub != nil {
		status["online"] = r.hub.GetOnlineCount()
	}
	c.JSON(http.StatusOK, status)
}

// Handler 返回http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

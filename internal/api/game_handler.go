package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/middleware"
	"github.com/wfunc/skate-game/internal/service"
	"go.uber.org/zap"
)

// GameHandler 游戏处理器
type GameHandler struct {
	games service.GameService
	log   *zap.Logger
}

// NewGameHandler 创建游戏处理器
func NewGameHandler(games service.GameService, log *zap.Logger) *GameHandler {
	return &GameHandler{
		games: games,
		log:   log,
	}
}

// CreateGame 创建游戏
// POST /api/v1/games
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req service.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	playerID, _ := middleware.GetPlayerID(c)
	req.CreatorID = playerID
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.games.CreateGame(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// JoinGame 加入游戏
// POST /api/v1/games/:id/join
func (h *GameHandler) JoinGame(c *gin.Context) {
	var req service.JoinGameRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	req.GameID = c.Param("id")
	req.PlayerID, _ = middleware.GetPlayerID(c)
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.games.JoinGame(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// SubmitTrick 出题或提交应答
// POST /api/v1/games/:id/tricks
func (h *GameHandler) SubmitTrick(c *gin.Context) {
	var req service.SubmitTrickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.GameID = c.Param("id")
	req.PlayerID, _ = middleware.GetPlayerID(c)
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.games.SubmitTrick(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// JudgeTurn 判定应答回合
// POST /api/v1/games/:id/turns/:turnId/judge
func (h *GameHandler) JudgeTurn(c *gin.Context) {
	var req service.JudgeTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.GameID = c.Param("id")
	req.TurnID = c.Param("turnId")
	req.JudgeID, _ = middleware.GetPlayerID(c)
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.games.JudgeTurn(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// AttachVideo 补交应答视频
// POST /api/v1/games/:id/turns/:turnId/video
func (h *GameHandler) AttachVideo(c *gin.Context) {
	var req service.AttachVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.GameID = c.Param("id")
	req.TurnID = c.Param("turnId")
	req.PlayerID, _ = middleware.GetPlayerID(c)
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.games.AttachVideo(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// StartGame POST /api/v1/games/:id/start
func (h *GameHandler) StartGame(c *gin.Context) {
	h.command(c, h.games.StartGame)
}

// Pass POST /api/v1/games/:id/pass
func (h *GameHandler) Pass(c *gin.Context) {
	h.command(c, h.games.Pass)
}

// Disconnect POST /api/v1/games/:id/disconnect
func (h *GameHandler) Disconnect(c *gin.Context) {
	h.command(c, h.games.Disconnect)
}

// Reconnect POST /api/v1/games/:id/reconnect
func (h *GameHandler) Reconnect(c *gin.Context) {
	h.command(c, h.games.Reconnect)
}

// Forfeit POST /api/v1/games/:id/forfeit
func (h *GameHandler) Forfeit(c *gin.Context) {
	h.command(c, h.games.Forfeit)
}

// OverturnTurn 管理员推翻判定
// POST /api/v1/admin/games/:id/turns/:turnId/overturn
func (h *GameHandler) OverturnTurn(c *gin.Context) {
	h.command(c, h.games.OverturnTurn)
}

// GetGame GET /api/v1/games/:id
func (h *GameHandler) GetGame(c *gin.Context) {
	g, err := h.games.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, g)
}

// ListTurns GET /api/v1/games/:id/turns
func (h *GameHandler) ListTurns(c *gin.Context) {
	turns, err := h.games.ListTurns(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, turns)
}

// DeleteGame 管理员删除游戏
// DELETE /api/v1/admin/games/:id
func (h *GameHandler) DeleteGame(c *gin.Context) {
	gameID := c.Param("id")
	if err := h.games.DeleteGame(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}
	operator, _ := middleware.GetPlayerID(c)
	h.log.Info("Game deleted by admin", zap.String("gameID", gameID), zap.String("operator", operator))
	respondData(c, gin.H{"game_id": gameID})
}

// command 处理只带可选reason的游戏命令
func (h *GameHandler) command(c *gin.Context, run func(ctx context.Context, cmd *service.GameCommand) (*service.Result[*service.GameOutcome], error)) {
	var cmd service.GameCommand
	if err := bindOptional(c, &cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.GameID = c.Param("id")
	cmd.TurnID = c.Param("turnId")
	cmd.PlayerID, _ = middleware.GetPlayerID(c)
	var ok bool
	if cmd.EventID, ok = requireEventID(c, cmd.EventID); !ok {
		return
	}

	res, err := run(c.Request.Context(), &cmd)
	respondResult(c, res, err)
}

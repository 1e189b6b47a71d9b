package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/middleware"
	"github.com/wfunc/skate-game/internal/service"
	"go.uber.org/zap"
)

// BattleHandler 对决投票处理器
type BattleHandler struct {
	battles service.BattleService
	log     *zap.Logger
}

// NewBattleHandler 创建对决投票处理器
func NewBattleHandler(battles service.BattleService, log *zap.Logger) *BattleHandler {
	return &BattleHandler{
		battles: battles,
		log:     log,
	}
}

// InitializeVoting 开启投票
// POST /api/v1/battles/:id/voting
func (h *BattleHandler) InitializeVoting(c *gin.Context) {
	var req service.InitializeVotingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.BattleID = c.Param("id")
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.battles.InitializeVoting(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// CastVote 投票
// POST /api/v1/battles/:id/votes
func (h *BattleHandler) CastVote(c *gin.Context) {
	var req service.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.BattleID = c.Param("id")
	req.PlayerID, _ = middleware.GetPlayerID(c)
	var ok bool
	if req.EventID, ok = requireEventID(c, req.EventID); !ok {
		return
	}

	res, err := h.battles.CastVote(c.Request.Context(), &req)
	respondResult(c, res, err)
}

// GetBattle GET /api/v1/battles/:id
func (h *BattleHandler) GetBattle(c *gin.Context) {
	v, err := h.battles.GetBattle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, v)
}

// DeleteBattle 管理员删除投票
// DELETE /api/v1/admin/battles/:id
func (h *BattleHandler) DeleteBattle(c *gin.Context) {
	battleID := c.Param("id")
	if err := h.battles.DeleteBattle(c.Request.Context(), battleID); err != nil {
		respondError(c, err)
		return
	}
	operator, _ := middleware.GetPlayerID(c)
	h.log.Info("Battle deleted by admin", zap.String("battleID", battleID), zap.String("operator", operator))
	respondData(c, gin.H{"battle_id": battleID})
}

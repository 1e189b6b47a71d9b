package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/wfunc/skate-game/internal/battle"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/repository"
)

// BattleServiceTestSuite 对决投票服务测试套件
type BattleServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	notifier *mockNotifier
	service  BattleService
}

func (suite *BattleServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	suite.notifier = newMockNotifier()

	cfg := &Config{
		TurnTimeout:       time.Hour,
		DefaultMaxPlayers: 2,
		VoteWindow:        time.Hour,
		Now:               func() time.Time { return suite.now },
	}
	suite.service = NewServices(repository.NewMemoryManager(), cfg, suite.notifier, zap.NewNop()).Battle
}

func (suite *BattleServiceTestSuite) initialize(battleID string) *battle.VoteState {
	res, err := suite.service.InitializeVoting(suite.ctx, &InitializeVotingRequest{
		BattleID:   battleID,
		CreatorID:  "alice",
		OpponentID: "bob",
		EventID:    "init-" + battleID,
	})
	suite.Require().NoError(err)
	suite.Require().True(res.Success)
	return res.Value
}

func (suite *BattleServiceTestSuite) vote(battleID, playerID string, choice battle.Choice, eventID string) *Result[*battle.VoteState] {
	res, err := suite.service.CastVote(suite.ctx, &CastVoteRequest{
		BattleID: battleID,
		PlayerID: playerID,
		Vote:     choice,
		EventID:  eventID,
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(res)
	return res
}

func (suite *BattleServiceTestSuite) TestInitializeVoting_KeepsExistingVotes() {
	state := suite.initialize("b1")
	suite.Equal(battle.StatusVoting, state.Status)
	suite.Equal(suite.now.Add(time.Hour), state.VoteDeadlineAt)

	suite.True(suite.vote("b1", "alice", battle.ChoiceClean, "v1").Success)

	res, err := suite.service.InitializeVoting(suite.ctx, &InitializeVotingRequest{
		BattleID: "b1", CreatorID: "alice", OpponentID: "bob", EventID: "init-again",
	})
	suite.Require().NoError(err)
	suite.True(res.Success)
	suite.True(res.AlreadyInitialized)
	suite.Len(res.Value.Votes, 1)
}

func (suite *BattleServiceTestSuite) TestInitializeVoting_InvalidParticipants() {
	res, err := suite.service.InitializeVoting(suite.ctx, &InitializeVotingRequest{
		BattleID: "b1", CreatorID: "alice", OpponentID: "alice",
	})
	suite.Require().NoError(err)
	suite.False(res.Success)
	suite.Equal(errors.ErrInvalidParticipants, res.Error.Code)
}

func (suite *BattleServiceTestSuite) TestBothVotesCompleteAndNotify() {
	suite.initialize("b1")

	res := suite.vote("b1", "alice", battle.ChoiceSketch, "v1")
	suite.True(res.Success)
	suite.Equal(battle.StatusVoting, res.Value.Status)
	suite.notifier.AssertNotCalled(suite.T(), "Notify", mock.Anything, KindBattleComplete, mock.Anything)

	res = suite.vote("b1", "bob", battle.ChoiceClean, "v2")
	suite.True(res.Success)
	suite.Equal(battle.StatusCompleted, res.Value.Status)
	suite.Equal("alice", res.Value.WinnerID)
	suite.Equal(map[string]int{"alice": 1, "bob": 0}, res.Value.FinalScore)

	suite.notifier.AssertCalled(suite.T(), "Notify", "alice", KindBattleComplete, mock.Anything)
	suite.notifier.AssertCalled(suite.T(), "Notify", "bob", KindBattleComplete, mock.Anything)
	suite.notifier.AssertNumberOfCalls(suite.T(), "Notify", 2)

	// 重放已处理的投票
	res = suite.vote("b1", "bob", battle.ChoiceClean, "v2")
	suite.True(res.Success)
	suite.True(res.AlreadyProcessed)

	res = suite.vote("b1", "bob", battle.ChoiceSketch, "v3")
	suite.False(res.Success)
	suite.Equal(errors.ErrVotingNotActive, res.Error.Code)
}

func (suite *BattleServiceTestSuite) TestCastVote_Rejections() {
	suite.initialize("b1")

	res := suite.vote("b1", "carol", battle.ChoiceClean, "v1")
	suite.False(res.Success)
	suite.Equal(errors.ErrNotAParticipant, res.Error.Code)

	res = suite.vote("b1", "alice", battle.Choice("maybe"), "v2")
	suite.False(res.Success)
	suite.Equal(errors.ErrInvalidVote, res.Error.Code)

	res = suite.vote("missing", "alice", battle.ChoiceClean, "v3")
	suite.False(res.Success)
	suite.Equal(errors.ErrBattleNotFound, res.Error.Code)

	suite.now = suite.now.Add(2 * time.Hour)
	res = suite.vote("b1", "alice", battle.ChoiceClean, "v4")
	suite.False(res.Success)
	suite.Equal(errors.ErrVotingDeadlinePassed, res.Error.Code)
}

func (suite *BattleServiceTestSuite) TestExpireVoting() {
	suite.initialize("b1")
	suite.True(suite.vote("b1", "bob", battle.ChoiceClean, "v1").Success)

	res, err := suite.service.ExpireVoting(suite.ctx, "b1", "expire-1")
	suite.Require().NoError(err)
	suite.False(res.Success)
	suite.Equal(errors.ErrDeadlineNotReached, res.Error.Code)

	suite.now = suite.now.Add(2 * time.Hour)
	res, err = suite.service.ExpireVoting(suite.ctx, "b1", "expire-1")
	suite.Require().NoError(err)
	suite.True(res.Success)
	suite.Equal(battle.StatusExpired, res.Value.Status)
	suite.Equal("alice", res.Value.WinnerID)
	suite.notifier.AssertNumberOfCalls(suite.T(), "Notify", 2)

	stored, err := suite.service.GetBattle(suite.ctx, "b1")
	suite.Require().NoError(err)
	suite.Equal(battle.StatusExpired, stored.Status)
}

func (suite *BattleServiceTestSuite) TestDeleteBattle() {
	suite.initialize("b1")
	suite.Require().NoError(suite.service.DeleteBattle(suite.ctx, "b1"))

	_, err := suite.service.GetBattle(suite.ctx, "b1")
	suite.True(errors.Is(err, errors.ErrBattleNotFound))
	suite.True(errors.Is(suite.service.DeleteBattle(suite.ctx, "b1"), errors.ErrBattleNotFound))
}

func TestBattleServiceSuite(t *testing.T) {
	suite.Run(t, new(BattleServiceTestSuite))
}

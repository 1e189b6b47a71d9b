package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/skate-game/internal/battle"
	apperrors "github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/game"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// StoreTestSuite 同一组用例分别运行在gorm和内存实现上
type StoreTestSuite struct {
	suite.Suite
	useDB   bool
	db      *gorm.DB
	ctx     context.Context
	games   GameStore
	battles BattleStore
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	var m *Manager
	if s.useDB {
		s.db = SetupTestDB()
		m = NewManager(s.db)
	} else {
		m = NewMemoryManager()
	}
	s.games = m.Games()
	s.battles = m.Battles()
}

func (s *StoreTestSuite) TearDownTest() {
	if s.db != nil {
		CleanupTestDB(s.db)
		s.db = nil
	}
}

func (s *StoreTestSuite) activeGame(id string) *game.Session {
	g := game.NewSession(id, "spot-1", "A", 2, time.Minute, t0)
	s.Require().NoError(g.Join("B", false, t0))
	stored, created, err := s.games.CreateGame(s.ctx, g)
	s.Require().NoError(err)
	s.Require().True(created)
	return stored
}

// submit A出题并写回，返回生成的回合
func (s *StoreTestSuite) submit(id string, now time.Time) *game.Turn {
	var turn *game.Turn
	err := s.games.UpdateGame(s.ctx, id, func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
		t, err := current.SubmitTrick("A", "kickflip", "https://v/a.mp4", now)
		if err != nil {
			return nil, err
		}
		turn = t
		return &GameMutation{Game: current, Turns: []*game.Turn{t}}, nil
	})
	s.Require().NoError(err)
	return turn
}

func (s *StoreTestSuite) TestCreateGame_ExistingReturnsStored() {
	s.activeGame("g1")

	other := game.NewSession("g1", "spot-2", "Z", 4, 0, t0)
	stored, created, err := s.games.CreateGame(s.ctx, other)
	s.Require().NoError(err)
	s.False(created)
	s.Equal("A", stored.CreatorID)
	s.Equal(game.StatusActive, stored.Status)
	s.Len(stored.Players, 2)
}

func (s *StoreTestSuite) TestUpdateGame_PersistsStateAndTurns() {
	s.activeGame("g1")
	setTurn := s.submit("g1", t0)

	got, err := s.games.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(game.ActionAttempt, got.CurrentAction)
	s.Equal("kickflip", got.CurrentTrick)
	s.Equal("B", got.CurrentPlayerID())

	turn, err := s.games.GetTurn(s.ctx, "g1", setTurn.ID)
	s.Require().NoError(err)
	s.Equal(game.TurnTypeSet, turn.Type)
	s.Equal(game.ResultLanded, turn.Result)
	s.Equal("A", turn.PlayerID)

	_, err = s.games.GetTurn(s.ctx, "g1", "missing")
	s.Equal(apperrors.ErrTurnNotFound, apperrors.GetCode(err))
}

func (s *StoreTestSuite) TestUpdateGame_TurnReaderAndUpsert() {
	s.activeGame("g1")
	s.submit("g1", t0)

	var response *game.Turn
	err := s.games.UpdateGame(s.ctx, "g1", func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
		t, err := current.SubmitTrick("B", "", "", t0)
		if err != nil {
			return nil, err
		}
		response = t
		return &GameMutation{Game: current, Turns: []*game.Turn{t}}, nil
	})
	s.Require().NoError(err)

	err = s.games.UpdateGame(s.ctx, "g1", func(ctx context.Context, current *game.Session, turns TurnReader) (*GameMutation, error) {
		missing, err := turns.Turn(ctx, "nope")
		s.Require().NoError(err)
		s.Nil(missing)

		t, err := turns.Turn(ctx, current.PendingTurnID)
		if err != nil {
			return nil, err
		}
		s.Require().NotNil(t)
		if err := current.AttachVideo(t, "B", "https://v/b.mp4", t0); err != nil {
			return nil, err
		}
		if err := current.Judge(t, "A", game.ResultMissed, t0); err != nil {
			return nil, err
		}
		return &GameMutation{Game: current, Turns: []*game.Turn{t}}, nil
	})
	s.Require().NoError(err)

	turns, err := s.games.ListTurns(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(turns, 2)
	s.Equal(1, turns[0].TurnNumber)
	s.Equal(response.ID, turns[1].ID)
	s.Equal(game.ResultMissed, turns[1].Result)
	s.Equal("https://v/b.mp4", turns[1].VideoURL)
	s.Equal("A", turns[1].JudgedBy)

	got, err := s.games.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	b, _ := got.Player("B")
	s.Equal("S", b.Letters)
}

func (s *StoreTestSuite) TestUpdateGame_FailureLeavesStateUntouched() {
	before := s.activeGame("g1")

	err := s.games.UpdateGame(s.ctx, "g1", func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
		current.Players[0].Letters = "SKATE"
		return nil, current.Pass("A", t0)
	})
	s.Equal(apperrors.ErrWrongPhase, apperrors.GetCode(err))

	err = s.games.UpdateGame(s.ctx, "g1", func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
		current.Status = game.StatusCompleted
		return nil, nil
	})
	s.Require().NoError(err)

	after, err := s.games.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(before.Status, after.Status)
	s.Empty(after.Players[0].Letters)

	turns, err := s.games.ListTurns(s.ctx, "g1")
	s.Require().NoError(err)
	s.Empty(turns)
}

func (s *StoreTestSuite) TestUpdateGame_NotFound() {
	err := s.games.UpdateGame(s.ctx, "missing", func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
		s.Fail("不应执行转换")
		return nil, nil
	})
	s.Equal(apperrors.ErrGameNotFound, apperrors.GetCode(err))

	_, err = s.games.GetGame(s.ctx, "missing")
	s.Equal(apperrors.ErrGameNotFound, apperrors.GetCode(err))
}

func (s *StoreTestSuite) TestUpdateGame_SameIDSerialized() {
	s.activeGame("g1")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.games.UpdateGame(s.ctx, "g1", func(ctx context.Context, current *game.Session, _ TurnReader) (*GameMutation, error) {
				current.TurnCount++
				return &GameMutation{Game: current}, nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.games.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(workers, got.TurnCount, "每次更新都基于最新提交的状态")
}

func (s *StoreTestSuite) TestDeleteGame() {
	s.activeGame("g1")
	s.submit("g1", t0)

	s.Require().NoError(s.games.DeleteGame(s.ctx, "g1"))
	_, err := s.games.GetGame(s.ctx, "g1")
	s.Equal(apperrors.ErrGameNotFound, apperrors.GetCode(err))
	turns, err := s.games.ListTurns(s.ctx, "g1")
	s.Require().NoError(err)
	s.Empty(turns)

	s.Equal(apperrors.ErrGameNotFound, apperrors.GetCode(s.games.DeleteGame(s.ctx, "g1")))
}

func (s *StoreTestSuite) TestListExpiredGames() {
	s.activeGame("g1") // 截止 t0+1m

	later := game.NewSession("g2", "spot", "A", 2, time.Minute, t0.Add(10*time.Minute))
	s.Require().NoError(later.Join("B", false, t0.Add(10*time.Minute))) // 截止 t0+11m
	_, _, err := s.games.CreateGame(s.ctx, later)
	s.Require().NoError(err)

	waiting := game.NewSession("g3", "spot", "A", 2, time.Minute, t0)
	_, _, err = s.games.CreateGame(s.ctx, waiting)
	s.Require().NoError(err)

	ids, err := s.games.ListExpiredGames(s.ctx, t0.Add(5*time.Minute), 10)
	s.Require().NoError(err)
	s.Equal([]string{"g1"}, ids)

	ids, err = s.games.ListExpiredGames(s.ctx, t0.Add(time.Hour), 10)
	s.Require().NoError(err)
	s.Equal([]string{"g1", "g2"}, ids)

	ids, err = s.games.ListExpiredGames(s.ctx, t0.Add(time.Hour), 1)
	s.Require().NoError(err)
	s.Equal([]string{"g1"}, ids)
}

func (s *StoreTestSuite) newBattle(id string) *battle.VoteState {
	v, err := battle.NewVoteState(id, "C", "O", t0, time.Hour)
	s.Require().NoError(err)
	stored, created, err := s.battles.InitializeBattle(s.ctx, v)
	s.Require().NoError(err)
	s.Require().True(created)
	return stored
}

func (s *StoreTestSuite) TestBattle_InitializeKeepsExistingVotes() {
	s.newBattle("b1")
	err := s.battles.UpdateBattle(s.ctx, "b1", func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
		if err := current.CastVote("C", battle.ChoiceClean, t0); err != nil {
			return nil, err
		}
		return current, nil
	})
	s.Require().NoError(err)

	again, err := battle.NewVoteState("b1", "C", "O", t0.Add(time.Minute), time.Hour)
	s.Require().NoError(err)
	stored, created, err := s.battles.InitializeBattle(s.ctx, again)
	s.Require().NoError(err)
	s.False(created)
	s.Len(stored.Votes, 1)
	s.Equal(t0.Add(time.Hour), stored.VoteDeadlineAt.UTC())
}

func (s *StoreTestSuite) TestBattle_UpdateAndErrors() {
	s.newBattle("b1")

	err := s.battles.UpdateBattle(s.ctx, "b1", func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
		return nil, current.CastVote("X", battle.ChoiceClean, t0)
	})
	s.Equal(apperrors.ErrNotAParticipant, apperrors.GetCode(err))

	err = s.battles.UpdateBattle(s.ctx, "missing", func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
		return current, nil
	})
	s.Equal(apperrors.ErrBattleNotFound, apperrors.GetCode(err))

	for _, p := range []string{"C", "O"} {
		player := p
		err = s.battles.UpdateBattle(s.ctx, "b1", func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
			return current, current.CastVote(player, battle.ChoiceSketch, t0)
		})
		s.Require().NoError(err)
	}

	got, err := s.battles.GetBattle(s.ctx, "b1")
	s.Require().NoError(err)
	s.Equal(battle.StatusCompleted, got.Status)
	s.Equal("C", got.WinnerID)
}

func (s *StoreTestSuite) TestBattle_ListExpiredAndDelete() {
	s.newBattle("b1")
	s.newBattle("b2")
	err := s.battles.UpdateBattle(s.ctx, "b2", func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
		if err := current.CastVote("C", battle.ChoiceClean, t0); err != nil {
			return nil, err
		}
		return current, current.CastVote("O", battle.ChoiceClean, t0)
	})
	s.Require().NoError(err)

	ids, err := s.battles.ListExpiredBattles(s.ctx, t0.Add(2*time.Hour), 10)
	s.Require().NoError(err)
	s.Equal([]string{"b1"}, ids)

	ids, err = s.battles.ListExpiredBattles(s.ctx, t0.Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Empty(ids)

	s.Require().NoError(s.battles.DeleteBattle(s.ctx, "b1"))
	_, err = s.battles.GetBattle(s.ctx, "b1")
	s.Equal(apperrors.ErrBattleNotFound, apperrors.GetCode(err))
	s.Equal(apperrors.ErrBattleNotFound, apperrors.GetCode(s.battles.DeleteBattle(s.ctx, "b1")))
}

func TestGormStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{useDB: true})
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{useDB: false})
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	if k.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", k.Len())
	}
	unlockA()
	unlockB()
	if k.Len() != 0 {
		t.Fatalf("expected keys released, got %d", k.Len())
	}
}

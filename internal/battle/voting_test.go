package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/skate-game/internal/errors"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type VotingTestSuite struct {
	suite.Suite
	state *VoteState
}

func (s *VotingTestSuite) SetupTest() {
	state, err := NewVoteState("b1", "C", "O", t0, time.Hour)
	s.Require().NoError(err)
	s.state = state
}

func (s *VotingTestSuite) requireCode(err error, code errors.ErrorCode) {
	s.Require().Error(err)
	s.Equal(code, errors.GetCode(err), err.Error())
}

func (s *VotingTestSuite) TestNewVoteState() {
	s.Equal(StatusVoting, s.state.Status)
	s.Empty(s.state.Votes)
	s.Equal(t0.Add(time.Hour), s.state.VoteDeadlineAt)

	_, err := NewVoteState("b1", "C", "C", t0, time.Hour)
	s.requireCode(err, errors.ErrInvalidParticipants)
	_, err = NewVoteState("", "C", "O", t0, time.Hour)
	s.requireCode(err, errors.ErrInvalidParam)

	def, err := NewVoteState("b2", "C", "O", t0, 0)
	s.Require().NoError(err)
	s.Equal(t0.Add(DefaultVoteWindow), def.VoteDeadlineAt)
}

// 场景：C投clean，O投sketch => O获胜，{C:0, O:1}
func (s *VotingTestSuite) TestScenario_OpponentWins() {
	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.Equal(StatusVoting, s.state.Status)
	s.Require().NoError(s.state.CastVote("O", ChoiceSketch, t0))

	s.Equal(StatusCompleted, s.state.Status)
	s.Equal("O", s.state.WinnerID)
	s.Equal(map[string]int{"C": 0, "O": 1}, s.state.FinalScore)
	s.NotNil(s.state.CompletedAt)
}

// 场景：双方都投clean => {C:1, O:1}，创建者获胜
func (s *VotingTestSuite) TestScenario_BothCleanCreatorWins() {
	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.Require().NoError(s.state.CastVote("O", ChoiceClean, t0))
	s.Equal(map[string]int{"C": 1, "O": 1}, s.state.FinalScore)
	s.Equal("C", s.state.WinnerID)
}

func (s *VotingTestSuite) TestRevoteReplaces() {
	s.Require().NoError(s.state.CastVote("C", ChoiceSketch, t0))
	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0.Add(time.Minute)))
	s.Len(s.state.Votes, 1)
	s.Equal(ChoiceClean, s.state.Votes["C"].Choice)
	s.Equal(t0.Add(time.Minute), s.state.Votes["C"].VotedAt)
	s.Equal(StatusVoting, s.state.Status)
}

func (s *VotingTestSuite) TestCastVote_Preconditions() {
	s.requireCode(s.state.CastVote("X", ChoiceClean, t0), errors.ErrNotAParticipant)
	s.requireCode(s.state.CastVote("C", Choice("meh"), t0), errors.ErrInvalidVote)
	s.requireCode(s.state.CastVote("C", ChoiceClean, t0.Add(2*time.Hour)), errors.ErrVotingDeadlinePassed)
	s.Empty(s.state.Votes)

	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.Require().NoError(s.state.CastVote("O", ChoiceClean, t0))
	s.requireCode(s.state.CastVote("O", ChoiceSketch, t0), errors.ErrVotingNotActive)
	s.Equal(ChoiceClean, s.state.Votes["O"].Choice, "结算后投票不可更改")
}

func (s *VotingTestSuite) TestExpireVoting() {
	s.requireCode(s.state.ExpireVoting(t0.Add(time.Minute)), errors.ErrDeadlineNotReached)

	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.Require().NoError(s.state.ExpireVoting(t0.Add(2 * time.Hour)))
	s.Equal(StatusExpired, s.state.Status)
	s.Equal(map[string]int{"C": 0, "O": 1}, s.state.FinalScore)
	s.Equal("O", s.state.WinnerID)

	s.requireCode(s.state.ExpireVoting(t0.Add(3*time.Hour)), errors.ErrVotingNotActive)
	s.requireCode(s.state.CastVote("O", ChoiceClean, t0), errors.ErrVotingNotActive)
}

func (s *VotingTestSuite) TestCloneIsDeep() {
	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.state.ProcessedEventIDs.Record("e1")

	c := s.state.Clone()
	c.Votes["O"] = Vote{Choice: ChoiceSketch}
	c.ProcessedEventIDs.Record("e2")

	s.Len(s.state.Votes, 1)
	s.False(s.state.ProcessedEventIDs.Has("e2"))
}

func (s *VotingTestSuite) TestMarshalRoundTrip() {
	s.Require().NoError(s.state.CastVote("C", ChoiceClean, t0))
	s.Require().NoError(s.state.CastVote("O", ChoiceSketch, t0))
	s.state.ProcessedEventIDs.Record("e1")

	data, err := s.state.MarshalState()
	s.Require().NoError(err)
	loaded, err := UnmarshalVoteState(data)
	s.Require().NoError(err)
	s.Equal(s.state, loaded)

	_, err = UnmarshalVoteState("not json")
	s.requireCode(err, errors.ErrDataIntegrity)
}

func TestVotingSuite(t *testing.T) {
	suite.Run(t, new(VotingTestSuite))
}

// 所有投票组合下：得分相同必然判创建者胜
func TestScore_AllVotePairs(t *testing.T) {
	choices := []Choice{ChoiceClean, ChoiceSketch}
	for _, c := range choices {
		for _, o := range choices {
			state, err := NewVoteState("b", "C", "O", t0, time.Hour)
			require.NoError(t, err)
			require.NoError(t, state.CastVote("C", c, t0))
			require.NoError(t, state.CastVote("O", o, t0))

			assert.Equal(t, StatusCompleted, state.Status)
			wantC, wantO := 0, 0
			if o == ChoiceClean {
				wantC = 1
			}
			if c == ChoiceClean {
				wantO = 1
			}
			assert.Equal(t, map[string]int{"C": wantC, "O": wantO}, state.FinalScore, "%s/%s", c, o)
			if wantC == wantO {
				assert.Equal(t, "C", state.WinnerID)
			} else if wantO > wantC {
				assert.Equal(t, "O", state.WinnerID)
			} else {
				assert.Equal(t, "C", state.WinnerID)
			}
		}
	}
}

func TestCreatorWinsTies(t *testing.T) {
	assert.Equal(t, "C", CreatorWinsTies("C", "O", map[string]int{"C": 0, "O": 0}))
	assert.Equal(t, "C", CreatorWinsTies("C", "O", map[string]int{"C": 1, "O": 1}))
	assert.Equal(t, "C", CreatorWinsTies("C", "O", map[string]int{"C": 1, "O": 0}))
	assert.Equal(t, "O", CreatorWinsTies("C", "O", map[string]int{"C": 0, "O": 1}))
	assert.Equal(t, "C", CreatorWinsTies("C", "O", nil))
}

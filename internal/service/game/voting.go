package game

import (
	"errors"

	"go.uber.org/zap"
)

// VotingState 是旧版的两候选人投票，仅为兼容保留。
// 标准流程不会创建它，只有调用方通过 StartLegacyVote 显式开启时才存在。
// 与审判不同，旧版投票平票时不淘汰任何人。
type VotingState struct {
	Nominee1ID string `json:"nominee1_id"`
	Nominee2ID string `json:"nominee2_id"`
	// key: voter_id, value: nominee_id，必须是两名候选人之一
	Votes map[string]string `json:"votes"`
}

func (vs *VotingState) clone() *VotingState {
	if vs == nil {
		return nil
	}

	out := &VotingState{
		Nominee1ID: vs.Nominee1ID,
		Nominee2ID: vs.Nominee2ID,
		Votes:      make(map[string]string, len(vs.Votes)),
	}

	for voterID, nomineeID := range vs.Votes {
		out.Votes[voterID] = nomineeID
	}

	return out
}

// Complete 判断所有存活玩家是否都已投票
func (vs *VotingState) Complete(aliveCount int) bool {
	return len(vs.Votes) >= aliveCount
}

// Result 返回得票较多的候选人，平票返回空字符串
func (vs *VotingState) Result() string {
	votes1, votes2 := 0, 0

	for _, nomineeID := range vs.Votes {
		switch nomineeID {
		case vs.Nominee1ID:
			votes1++
		case vs.Nominee2ID:
			votes2++
		}
	}

	if votes1 > votes2 {
		return vs.Nominee1ID
	}

	if votes2 > votes1 {
		return vs.Nominee2ID
	}

	return ""
}

// StartLegacyVote 显式开启一轮旧版投票。审判和旧版投票同一时间至多存在一个。
func StartLegacyVote(gs *GameState, nominee1ID, nominee2ID string) error {
	if gs.Trial != nil || gs.Voting != nil {
		return errors.New("a trial or vote is already in progress")
	}

	for _, id := range []string{nominee1ID, nominee2ID} {
		p, ok := gs.Players[id]
		if !ok || !p.IsAlive {
			return errors.New("nominee must be an alive player")
		}
	}

	if nominee1ID == nominee2ID {
		return errors.New("nominees must be distinct")
	}

	gs.Voting = &VotingState{
		Nominee1ID: nominee1ID,
		Nominee2ID: nominee2ID,
		Votes:      make(map[string]string),
	}
	gs.CurrentPhase = PHASE_DAY_VOTING

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", map[string]any{
		"nominee1_id": nominee1ID,
		"nominee2_id": nominee2ID,
	})

	return nil
}

func applyLegacyVote(gs *GameState, a VoteAction) {
	gs.Voting.Votes[a.PlayerID] = a.NomineeID

	gs.Events.Add(EVENT_VOTE, gs.CurrentPhase, gs.Day, a.PlayerID, a.NomineeID, nil)

	if gs.Voting.Complete(len(gs.AlivePlayers())) {
		completeLegacyVote(gs)
	}
}

// completeLegacyVote 结算旧版投票：多数者被淘汰，平票则无人出局
func completeLegacyVote(gs *GameState) {
	if gs.Voting == nil {
		panic("completing legacy vote without active voting state")
	}

	eliminatedID := gs.Voting.Result()

	if eliminatedID != "" {
		eliminated := gs.Players[eliminatedID]
		eliminated.IsAlive = false

		gs.Events.Add(EVENT_ELIMINATE, gs.CurrentPhase, gs.Day, eliminatedID, "", map[string]any{
			"role": eliminated.Role,
			"team": eliminated.Team,
		})
	} else {
		zap.L().Debug("旧版投票平票，无人出局", zap.String("game_id", gs.ID))
	}

	gs.Voting = nil
	gs.Nominations = make(map[string][]string)
	gs.WhoNominated = make(map[string]string)
	gs.ResetSpeakerOrder()

	if eliminatedID != "" && checkWinAndEnd(gs) {
		return
	}

	TransitionToNight(gs)
}

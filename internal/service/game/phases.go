package game

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

// 游戏阶段，狼人杀（Town of Salem 风格）的固定流转顺序：
// 夜晚 -> 白天讨论 -> 提名 -> 辩护 -> 审判 -> 夜晚 ...
// 初始阶段是夜晚（黑手党先于任何讨论行动），终态是 GAME_END。
const (
	PHASE_NIGHT          = "NIGHT"
	PHASE_DAY_DISCUSSION = "DAY_DISCUSSION"
	PHASE_DAY_NOMINATION = "DAY_NOMINATION"
	PHASE_DAY_DEFENSE    = "DAY_DEFENSE"
	PHASE_DAY_JUDGMENT   = "DAY_JUDGMENT"
	PHASE_GAME_END       = "GAME_END"

	// 旧版两候选人投票运行在现在的审判阶段里，保留别名兼容
	PHASE_DAY_VOTING = PHASE_DAY_JUDGMENT
)

// Rules 是引擎接受的策略参数，不在引擎内部硬编码
type Rules struct {
	// 讨论阶段每名存活玩家发言的轮数
	DiscussionRounds int
	// 审判投票者无响应时代替其投出的裁决
	DefaultVerdict string
}

func DefaultRules() Rules {
	return Rules{
		DiscussionRounds: 2,
		DefaultVerdict:   VERDICT_GUILTY,
	}
}

// ProcessAction 校验并应用一个行动。非法行动返回 (false, reason) 且不改变任何状态；
// 引擎绝不在坏输入上推进阶段。未知的行动变体是编程错误，直接 panic。
func ProcessAction(gs *GameState, action Action) (bool, string) {
	if gs.IsComplete {
		return false, "Game is over"
	}

	ok, reason := action.Validate(gs)
	if !ok {
		return false, reason
	}

	switch a := action.(type) {
	case SpeakAction:
		applySpeak(gs, a)
	case NominateAction:
		applyNominate(gs, a)
	case VoteAction:
		applyLegacyVote(gs, a)
	case JudgmentVoteAction:
		applyJudgmentVote(gs, a)
	case PassAction:
		applyPass(gs, a)
	case NightAction:
		applyNightAction(gs, a)
	default:
		// 封闭变体集合，走到这里说明有变体没有被处理
		panic(fmt.Sprintf("unhandled action variant: %T", action))
	}

	return true, ""
}

func applySpeak(gs *GameState, a SpeakAction) {
	data := map[string]any{"message": a.Message}

	if gs.CurrentPhase == PHASE_DAY_DEFENSE {
		data["context"] = defenseContext(gs)
	}

	gs.Events.Add(EVENT_SPEAK, gs.CurrentPhase, gs.Day, a.PlayerID, "", data)

	switch gs.CurrentPhase {
	case PHASE_DAY_DISCUSSION:
		gs.AdvanceSpeaker()
	case PHASE_DAY_DEFENSE:
		advanceDefense(gs, a.PlayerID)
	}
}

func defenseContext(gs *GameState) string {
	if gs.Trial == nil {
		panic("defense speech without active trial")
	}

	switch gs.Trial.DefensePhase {
	case DEFENSE_OPENING:
		return "opening_defense"
	case DEFENSE_DISCUSSION:
		return "town_response"
	case DEFENSE_CLOSING:
		return "closing_defense"
	default:
		return gs.Trial.DefensePhase
	}
}

// advanceDefense 推进辩护子阶段：被告开场陈述 -> 其余存活玩家各回应一次 ->
// 被告结案陈述 -> 进入审判
func advanceDefense(gs *GameState, speakerID string) {
	t := gs.Trial
	if t == nil {
		panic("advancing defense without active trial")
	}

	switch t.DefensePhase {
	case DEFENSE_OPENING:
		if speakerID == t.DefendantID {
			t.DefensePhase = DEFENSE_DISCUSSION
		}
	case DEFENSE_DISCUSSION:
		if speakerID != t.DefendantID {
			t.Responded[speakerID] = true
		}

		if defenseResponsesComplete(gs) {
			t.DefensePhase = DEFENSE_CLOSING
		}
	case DEFENSE_CLOSING:
		if speakerID == t.DefendantID {
			t.DefensePhase = DEFENSE_DONE
			gs.CurrentPhase = PHASE_DAY_JUDGMENT
			gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", nil)
		}
	}
}

func defenseResponsesComplete(gs *GameState) bool {
	for _, p := range gs.AlivePlayers() {
		if p.ID == gs.Trial.DefendantID {
			continue
		}

		if !gs.Trial.Responded[p.ID] {
			return false
		}
	}

	return true
}

// SkipDefenseSpeech 在玩家保持沉默（或代理失败）时推进辩护子阶段，不记录发言事件
func SkipDefenseSpeech(gs *GameState, playerID string) {
	if gs.CurrentPhase != PHASE_DAY_DEFENSE {
		panic("skipping defense speech outside defense phase")
	}

	advanceDefense(gs, playerID)
}

// NextDefenseSpeaker 返回辩护阶段下一个应当发言的玩家 ID，子阶段结束时返回空
func NextDefenseSpeaker(gs *GameState) string {
	t := gs.Trial
	if t == nil {
		return ""
	}

	switch t.DefensePhase {
	case DEFENSE_OPENING, DEFENSE_CLOSING:
		return t.DefendantID
	case DEFENSE_DISCUSSION:
		for _, p := range gs.AlivePlayers() {
			if p.ID == t.DefendantID {
				continue
			}

			if !t.Responded[p.ID] {
				return p.ID
			}
		}
	}

	return ""
}

func applyNominate(gs *GameState, a NominateAction) {
	gs.AddNomination(a.PlayerID, a.TargetID)

	gs.Events.Add(EVENT_NOMINATE, gs.CurrentPhase, gs.Day, a.PlayerID, a.TargetID, nil)

	if gs.CurrentPhase == PHASE_DAY_DISCUSSION {
		gs.AdvanceSpeaker()
		return
	}

	// 提名阶段：所有存活玩家都提名完毕后由引擎收束
	if len(gs.WhoNominated) >= len(gs.AlivePlayers()) {
		FinishNominations(gs)
	}
}

func applyJudgmentVote(gs *GameState, a JudgmentVoteAction) {
	guilty := a.IsGuilty()
	gs.Trial.Votes[a.PlayerID] = guilty

	verdict := VERDICT_INNOCENT
	if guilty {
		verdict = VERDICT_GUILTY
	}

	data := map[string]any{"verdict": verdict}
	if a.Reason != "" {
		data["reason"] = a.Reason
	}

	gs.Events.Add(EVENT_VOTE, gs.CurrentPhase, gs.Day, a.PlayerID, gs.Trial.DefendantID, data)

	if gs.Trial.VotingComplete(len(gs.AlivePlayers())) {
		ResolveJudgment(gs)
	}
}

func applyPass(gs *GameState, a PassAction) {
	if gs.CurrentPhase == PHASE_DAY_DISCUSSION {
		gs.AdvanceSpeaker()
	}
}

func applyNightAction(gs *GameState, a NightAction) {
	a.NightType = strings.ToUpper(a.NightType)
	gs.NightQueue = append(gs.NightQueue, a)

	data := map[string]any{"action_type": a.NightType}

	// 查验结果只出现在侦探自己的事件里，不进入任何共享状态
	if a.NightType == NIGHT_INVESTIGATE {
		data["result"] = gs.Players[a.TargetID].Role == ROLE_MAFIA
	}

	gs.Events.Add(EVENT_NIGHT_ACTION, gs.CurrentPhase, gs.Day, a.PlayerID, a.TargetID, data)
}

// ExpectedNightActors 返回当晚需要行动的存活玩家（黑手党、医生、侦探），按座位顺序
func ExpectedNightActors(gs *GameState) []string {
	out := make([]string, 0)

	for _, p := range gs.AlivePlayers() {
		switch p.Role {
		case ROLE_MAFIA, ROLE_DOCTOR, ROLE_DETECTIVE:
			out = append(out, p.ID)
		}
	}

	return out
}

// NightActorsPending 返回尚未提交夜间行动的预期行动者
func NightActorsPending(gs *GameState) []string {
	acted := make(map[string]bool, len(gs.NightQueue))
	for _, a := range gs.NightQueue {
		acted[a.PlayerID] = true
	}

	out := make([]string, 0)

	for _, id := range ExpectedNightActors(gs) {
		if !acted[id] {
			out = append(out, id)
		}
	}

	return out
}

// ResolveNight 结算当晚所有行动并进入白天（或终局）。
// 队列按提交顺序解读，后提交的 KILL/SAVE 覆盖先前的目标（显式的 last-writer-wins 策略）。
// 被击杀目标存活当且仅当救治目标与击杀目标相同（救治按目标生效，与施救者无关）。
// 返回死亡玩家 ID，无人死亡时返回空。
func ResolveNight(gs *GameState) string {
	if gs.CurrentPhase != PHASE_NIGHT {
		panic("resolving night outside night phase")
	}

	var killTargetID, saveTargetID string

	for _, a := range gs.NightQueue {
		switch a.NightType {
		case NIGHT_KILL:
			killTargetID = a.TargetID
		case NIGHT_SAVE:
			saveTargetID = a.TargetID
		}
	}

	gs.NightQueue = gs.NightQueue[:0]

	diedID := ""

	if killTargetID != "" && killTargetID != saveTargetID {
		killed := gs.Players[killTargetID]
		killed.IsAlive = false
		diedID = killTargetID

		gs.Events.Add(EVENT_KILL, gs.CurrentPhase, gs.Day, "", killTargetID, map[string]any{
			"role": killed.Role,
			"team": killed.Team,
		})

		zap.L().Info(
			"夜间击杀结算",
			zap.String("game_id", gs.ID),
			zap.String("target_id", killTargetID),
			zap.String("role", killed.Role),
		)
	}

	if checkWinAndEnd(gs) {
		return diedID
	}

	// 天亮：夜晚 N 进入白天 N，天数不变
	gs.CurrentPhase = PHASE_DAY_DISCUSSION
	gs.ResetSpeakerOrder()
	gs.Nominations = make(map[string][]string)
	gs.WhoNominated = make(map[string]string)
	gs.Trial = nil
	gs.Voting = nil

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", nil)

	return diedID
}

// EndDiscussion 在配置的讨论轮数完成后由编排器调用，进入提名阶段
func EndDiscussion(gs *GameState) {
	if gs.CurrentPhase != PHASE_DAY_DISCUSSION {
		panic("ending discussion outside discussion phase")
	}

	gs.CurrentPhase = PHASE_DAY_NOMINATION
	gs.ResetSpeakerOrder()
	gs.Nominations = make(map[string][]string)
	gs.WhoNominated = make(map[string]string)

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", nil)
}

// FinishNominations 收束提名阶段：
// 没有任何提名时直接进入下一个夜晚（不经过审判，天数正常推进）；
// 否则提名数最多的玩家成为被告，并列者等概率随机抽取。
// 返回被告 ID，无审判时返回空。
func FinishNominations(gs *GameState) string {
	if gs.CurrentPhase != PHASE_DAY_NOMINATION {
		panic("finishing nominations outside nomination phase")
	}

	if len(gs.Nominations) == 0 {
		zap.L().Debug("无人被提名，跳过审判", zap.String("game_id", gs.ID))
		TransitionToNight(gs)
		return ""
	}

	topCount := 0
	for _, nominators := range gs.Nominations {
		if len(nominators) > topCount {
			topCount = len(nominators)
		}
	}

	// 按座位顺序收集并列者，保证随机抽取之外的部分是确定的
	tied := make([]string, 0)

	for _, id := range gs.AlivePlayerIDs() {
		if len(gs.Nominations[id]) == topCount {
			tied = append(tied, id)
		}
	}

	defendantID := tied[rand.Intn(len(tied))]

	gs.Trial = NewTrialState(defendantID)
	gs.CurrentPhase = PHASE_DAY_DEFENSE

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", defendantID, map[string]any{
		"defendant_id": defendantID,
		"nominations":  topCount,
	})

	return defendantID
}

// ResolveJudgment 结算审判：有罪票严格多于无罪票时处决被告（平票倾向无罪，予以释放）。
// 结算后进入下一个夜晚，天数加一。返回被告是否被处决。
func ResolveJudgment(gs *GameState) bool {
	if gs.CurrentPhase != PHASE_DAY_JUDGMENT || gs.Trial == nil {
		panic("resolving judgment without active trial")
	}

	defendant := gs.Players[gs.Trial.DefendantID]
	guilty, innocent := gs.Trial.Tally()

	executed := guilty > innocent

	if executed {
		defendant.IsAlive = false

		votes := make(map[string]any, len(gs.Trial.Votes))
		for voterID, g := range gs.Trial.Votes {
			votes[voterID] = g
		}

		gs.Events.Add(EVENT_ELIMINATE, gs.CurrentPhase, gs.Day, defendant.ID, "", map[string]any{
			"role":           defendant.Role,
			"team":           defendant.Team,
			"guilty_votes":   guilty,
			"innocent_votes": innocent,
			"votes":          votes,
		})

		zap.L().Info(
			"被告被处决",
			zap.String("game_id", gs.ID),
			zap.String("defendant_id", defendant.ID),
			zap.Int("guilty", guilty),
			zap.Int("innocent", innocent),
		)

		if checkWinAndEnd(gs) {
			return true
		}
	} else {
		zap.L().Info(
			"被告被释放",
			zap.String("game_id", gs.ID),
			zap.String("defendant_id", defendant.ID),
			zap.Int("guilty", guilty),
			zap.Int("innocent", innocent),
		)
	}

	TransitionToNight(gs)

	return executed
}

// TransitionToNight 进入下一个夜晚并将天数加一，清空所有白天的临时状态
func TransitionToNight(gs *GameState) {
	gs.Day++
	gs.CurrentPhase = PHASE_NIGHT
	gs.Trial = nil
	gs.Voting = nil
	gs.Nominations = make(map[string][]string)
	gs.WhoNominated = make(map[string]string)
	gs.NightQueue = gs.NightQueue[:0]
	gs.ResetSpeakerOrder()

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", nil)
}

// checkWinAndEnd 在每次淘汰后调用，满足胜利条件时立即终局
func checkWinAndEnd(gs *GameState) bool {
	winner := gs.CheckWinConditions()
	if winner == "" {
		return false
	}

	gs.Winner = winner
	gs.CurrentPhase = PHASE_GAME_END
	gs.IsComplete = true

	gs.Events.Add(EVENT_PHASE_CHANGE, gs.CurrentPhase, gs.Day, "", "", map[string]any{
		"winner": winner,
	})

	zap.L().Info(
		"游戏结束",
		zap.String("game_id", gs.ID),
		zap.String("winner", winner),
	)

	return true
}

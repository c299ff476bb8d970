package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 行动类型
const (
	ACTION_SPEAK         = "SPEAK"
	ACTION_NOMINATE      = "NOMINATE"
	ACTION_VOTE          = "VOTE"
	ACTION_JUDGMENT_VOTE = "JUDGMENT_VOTE"
	ACTION_PASS          = "PASS"
	ACTION_NIGHT         = "NIGHT_ACTION"
)

// 夜间行动类型
const (
	NIGHT_KILL        = "KILL"
	NIGHT_SAVE        = "SAVE"
	NIGHT_INVESTIGATE = "INVESTIGATE"
)

// 审判裁决
const (
	VERDICT_GUILTY   = "GUILTY"
	VERDICT_INNOCENT = "INNOCENT"
)

// Action 是封闭的行动变体集合。Validate 只做检查，绝不修改状态；
// 非法行动以 (false, reason) 报告，属于可恢复的正常输入而非错误。
type Action interface {
	Kind() string
	Actor() string
	Validate(gs *GameState) (bool, string)
}

// 校验所有变体都实现了 Action
var (
	_ Action = SpeakAction{}
	_ Action = NominateAction{}
	_ Action = VoteAction{}
	_ Action = JudgmentVoteAction{}
	_ Action = PassAction{}
	_ Action = NightAction{}
)

// 通用前置检查：玩家存在且存活
func checkActorAlive(gs *GameState, playerID string) (bool, string) {
	p, ok := gs.Players[playerID]
	if !ok {
		return false, "Player not found"
	}

	if !p.IsAlive {
		return false, "Dead players cannot act"
	}

	return true, ""
}

// 讨论阶段的轮次检查
func checkSpeakerTurn(gs *GameState, playerID string, verb string) (bool, string) {
	speaker := gs.CurrentSpeaker()
	if speaker == nil || speaker.ID != playerID {
		return false, "Not your turn to " + verb
	}

	return true, ""
}

// SpeakAction 在讨论或辩护阶段发言
type SpeakAction struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}

func (a SpeakAction) Kind() string  { return ACTION_SPEAK }
func (a SpeakAction) Actor() string { return a.PlayerID }

func (a SpeakAction) Validate(gs *GameState) (bool, string) {
	if gs.CurrentPhase != PHASE_DAY_DISCUSSION && gs.CurrentPhase != PHASE_DAY_DEFENSE {
		return false, "Can only speak during discussion or defense phase"
	}

	if ok, reason := checkActorAlive(gs, a.PlayerID); !ok {
		return false, reason
	}

	// 辩护阶段的发言顺序由编排器控制，讨论阶段必须轮到自己
	if gs.CurrentPhase == PHASE_DAY_DISCUSSION {
		if ok, reason := checkSpeakerTurn(gs, a.PlayerID, "speak"); !ok {
			return false, reason
		}
	}

	if strings.TrimSpace(a.Message) == "" {
		return false, "Message cannot be empty"
	}

	return true, ""
}

// NominateAction 提名一名玩家接受审判
type NominateAction struct {
	PlayerID string `json:"player_id"`
	TargetID string `json:"target_id"`
}

func (a NominateAction) Kind() string  { return ACTION_NOMINATE }
func (a NominateAction) Actor() string { return a.PlayerID }

func (a NominateAction) Validate(gs *GameState) (bool, string) {
	if gs.CurrentPhase != PHASE_DAY_DISCUSSION && gs.CurrentPhase != PHASE_DAY_NOMINATION {
		return false, "Can only nominate during discussion or nomination phase"
	}

	if ok, reason := checkActorAlive(gs, a.PlayerID); !ok {
		return false, reason
	}

	// 提名阶段全员行动，讨论阶段必须轮到自己
	if gs.CurrentPhase == PHASE_DAY_DISCUSSION {
		if ok, reason := checkSpeakerTurn(gs, a.PlayerID, "nominate"); !ok {
			return false, reason
		}
	}

	target, ok := gs.Players[a.TargetID]
	if !ok {
		return false, "Target player not found"
	}

	if !target.IsAlive {
		return false, "Cannot nominate dead players"
	}

	if a.PlayerID == a.TargetID {
		return false, "Cannot nominate yourself"
	}

	// 重复提名同一目标是允许的（幂等）

	return true, ""
}

// VoteAction 旧版两候选人投票，仅在显式开启 VotingState 时可用
type VoteAction struct {
	PlayerID  string `json:"player_id"`
	NomineeID string `json:"nominee_id"`
}

func (a VoteAction) Kind() string  { return ACTION_VOTE }
func (a VoteAction) Actor() string { return a.PlayerID }

func (a VoteAction) Validate(gs *GameState) (bool, string) {
	if gs.CurrentPhase != PHASE_DAY_VOTING {
		return false, "Can only vote during voting phase"
	}

	if ok, reason := checkActorAlive(gs, a.PlayerID); !ok {
		return false, reason
	}

	if gs.Voting == nil {
		return false, "No voting in progress"
	}

	if a.NomineeID != gs.Voting.Nominee1ID && a.NomineeID != gs.Voting.Nominee2ID {
		return false, "Can only vote for one of the two nominees"
	}

	if _, voted := gs.Voting.Votes[a.PlayerID]; voted {
		return false, "Already voted"
	}

	return true, ""
}

// JudgmentVoteAction 审判阶段的有罪/无罪投票
type JudgmentVoteAction struct {
	PlayerID string `json:"player_id"`
	Verdict  string `json:"vote"`
	Reason   string `json:"reason,omitempty"`
}

func (a JudgmentVoteAction) Kind() string  { return ACTION_JUDGMENT_VOTE }
func (a JudgmentVoteAction) Actor() string { return a.PlayerID }

func (a JudgmentVoteAction) Validate(gs *GameState) (bool, string) {
	if gs.CurrentPhase != PHASE_DAY_JUDGMENT {
		return false, "Can only vote during judgment phase"
	}

	if ok, reason := checkActorAlive(gs, a.PlayerID); !ok {
		return false, reason
	}

	if gs.Trial == nil {
		return false, "No trial in progress"
	}

	if a.PlayerID == gs.Trial.DefendantID {
		return false, "Defendant cannot vote"
	}

	if _, voted := gs.Trial.Votes[a.PlayerID]; voted {
		return false, "Already voted"
	}

	verdict := strings.ToUpper(a.Verdict)
	if verdict != VERDICT_GUILTY && verdict != VERDICT_INNOCENT {
		return false, "Vote must be GUILTY or INNOCENT"
	}

	return true, ""
}

// IsGuilty 忽略大小写地解析裁决，只应在 Validate 通过后调用
func (a JudgmentVoteAction) IsGuilty() bool {
	return strings.ToUpper(a.Verdict) == VERDICT_GUILTY
}

// PassAction 跳过当前行动
type PassAction struct {
	PlayerID string `json:"player_id"`
}

func (a PassAction) Kind() string  { return ACTION_PASS }
func (a PassAction) Actor() string { return a.PlayerID }

func (a PassAction) Validate(gs *GameState) (bool, string) {
	switch gs.CurrentPhase {
	case PHASE_DAY_DISCUSSION, PHASE_DAY_NOMINATION, PHASE_DAY_JUDGMENT:
	default:
		return false, "Can only pass during discussion, nomination, or judgment phase"
	}

	if ok, reason := checkActorAlive(gs, a.PlayerID); !ok {
		return false, reason
	}

	if gs.CurrentPhase == PHASE_DAY_DISCUSSION {
		if ok, reason := checkSpeakerTurn(gs, a.PlayerID, "pass"); !ok {
			return false, reason
		}
	}

	return true, ""
}

// NightAction 夜间行动：击杀、救治或查验
type NightAction struct {
	PlayerID  string `json:"player_id"`
	NightType string `json:"night_action_type"`
	TargetID  string `json:"target_id"`
}

func (a NightAction) Kind() string  { return ACTION_NIGHT }
func (a NightAction) Actor() string { return a.PlayerID }

func (a NightAction) Validate(gs *GameState) (bool, string) {
	if gs.CurrentPhase != PHASE_NIGHT {
		return false, "Can only perform night actions during night phase"
	}

	p, ok := gs.Players[a.PlayerID]
	if !ok {
		return false, "Player not found"
	}

	if !p.IsAlive {
		return false, "Dead players cannot act"
	}

	target, ok := gs.Players[a.TargetID]
	if !ok {
		return false, "Target player not found"
	}

	if !target.IsAlive {
		return false, "Cannot target dead players"
	}

	// 只有医生救治可以指向自己
	if a.PlayerID == a.TargetID && a.NightType != NIGHT_SAVE {
		return false, "Cannot target yourself"
	}

	switch a.NightType {
	case NIGHT_KILL:
		if p.Role != ROLE_MAFIA {
			return false, "Only Mafia can kill"
		}
	case NIGHT_SAVE:
		if p.Role != ROLE_DOCTOR {
			return false, "Only Doctor can save"
		}
	case NIGHT_INVESTIGATE:
		if p.Role != ROLE_DETECTIVE {
			return false, "Only Detective can investigate"
		}
	default:
		return false, "Unknown night action type"
	}

	return true, ""
}

// actionEnvelope 是外部提交行动的线格式，所有字段在类型层面完整定义
type actionEnvelope struct {
	PlayerID        string `json:"player_id"`
	ActionType      string `json:"action_type"`
	Message         string `json:"message,omitempty"`
	TargetID        string `json:"target_id,omitempty"`
	NomineeID       string `json:"nominee_id,omitempty"`
	Vote            string `json:"vote,omitempty"`
	Reason          string `json:"reason,omitempty"`
	NightActionType string `json:"night_action_type,omitempty"`
}

// ActionFromJSON 从 JSON 构造行动变体，未知类型返回错误
func ActionFromJSON(data []byte) (Action, error) {
	var env actionEnvelope

	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.ActionType {
	case ACTION_SPEAK:
		return SpeakAction{PlayerID: env.PlayerID, Message: env.Message}, nil
	case ACTION_NOMINATE:
		return NominateAction{PlayerID: env.PlayerID, TargetID: env.TargetID}, nil
	case ACTION_VOTE:
		return VoteAction{PlayerID: env.PlayerID, NomineeID: env.NomineeID}, nil
	case ACTION_JUDGMENT_VOTE:
		return JudgmentVoteAction{PlayerID: env.PlayerID, Verdict: env.Vote, Reason: env.Reason}, nil
	case ACTION_PASS:
		return PassAction{PlayerID: env.PlayerID}, nil
	case ACTION_NIGHT:
		return NightAction{
			PlayerID:  env.PlayerID,
			NightType: env.NightActionType,
			TargetID:  env.TargetID,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action type: %q", env.ActionType)
	}
}

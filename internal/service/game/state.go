package game

import (
	"errors"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrDuplicatePlayer = errors.New("player already in game")
)

// 辩护子阶段：开场陈述 -> 全体回应 -> 结案陈述 -> 完成
const (
	DEFENSE_OPENING    = "opening"
	DEFENSE_DISCUSSION = "discussion"
	DEFENSE_CLOSING    = "closing"
	DEFENSE_DONE       = "done"
)

// TrialState 记录一次审判：被告、辩护进度和有罪/无罪投票。
// 被告永远不会出现在 Votes 的 key 中。
type TrialState struct {
	DefendantID  string          `json:"defendant_id"`
	DefensePhase string          `json:"defense_phase"`
	Responded    map[string]bool `json:"responded"`
	// key: voter_id, value: true 表示 GUILTY
	Votes map[string]bool `json:"votes"`
}

func NewTrialState(defendantID string) *TrialState {
	return &TrialState{
		DefendantID:  defendantID,
		DefensePhase: DEFENSE_OPENING,
		Responded:    make(map[string]bool),
		Votes:        make(map[string]bool),
	}
}

func (ts *TrialState) clone() *TrialState {
	if ts == nil {
		return nil
	}

	out := &TrialState{
		DefendantID:  ts.DefendantID,
		DefensePhase: ts.DefensePhase,
		Responded:    make(map[string]bool, len(ts.Responded)),
		Votes:        make(map[string]bool, len(ts.Votes)),
	}

	for id, v := range ts.Responded {
		out.Responded[id] = v
	}

	for id, v := range ts.Votes {
		out.Votes[id] = v
	}

	return out
}

// VotingComplete 判断除被告外的所有存活玩家是否都已投票
func (ts *TrialState) VotingComplete(aliveCount int) bool {
	return len(ts.Votes) >= aliveCount-1
}

func (ts *TrialState) Tally() (guilty int, innocent int) {
	for _, g := range ts.Votes {
		if g {
			guilty++
		} else {
			innocent++
		}
	}

	return guilty, innocent
}

// GameState 持有一局游戏的全部可变数据。
// 只能由阶段引擎（phases.go）驱动变更，编排器保证单写者。
type GameState struct {
	ID      string
	Players map[string]*Player
	// 加入顺序即座位顺序，也是发言顺序
	order []string

	CurrentPhase      string
	Day               int
	CurrentSpeakerIdx int

	// key: target_id, value: 按提名先后排列的 nominator_id 列表
	Nominations map[string][]string
	// key: nominator_id, value: target_id，每轮每人至多一条
	WhoNominated map[string]string

	Trial  *TrialState
	Voting *VotingState

	// 当晚已提交、尚未结算的夜间行动，按提交顺序排列
	NightQueue []NightAction

	Events       *EventLog
	DaySummaries map[int]string

	Winner     string
	IsStarted  bool
	IsComplete bool
}

func NewGameState(id string) *GameState {
	return &GameState{
		ID:           id,
		Players:      make(map[string]*Player),
		order:        make([]string, 0),
		CurrentPhase: PHASE_NIGHT,
		Day:          1,
		Nominations:  make(map[string][]string),
		WhoNominated: make(map[string]string),
		NightQueue:   make([]NightAction, 0),
		Events:       NewEventLog(),
		DaySummaries: make(map[int]string),
	}
}

// Clone 返回深拷贝快照，供代理等并发读者在锁外使用。
// 事件数据在写入日志后不再修改，事件按值复制即可。
func (gs *GameState) Clone() *GameState {
	out := &GameState{
		ID:                gs.ID,
		Players:           make(map[string]*Player, len(gs.Players)),
		order:             append([]string(nil), gs.order...),
		CurrentPhase:      gs.CurrentPhase,
		Day:               gs.Day,
		CurrentSpeakerIdx: gs.CurrentSpeakerIdx,
		Nominations:       make(map[string][]string, len(gs.Nominations)),
		WhoNominated:      make(map[string]string, len(gs.WhoNominated)),
		Trial:             gs.Trial.clone(),
		Voting:            gs.Voting.clone(),
		NightQueue:        append([]NightAction(nil), gs.NightQueue...),
		Events:            gs.Events.Clone(),
		DaySummaries:      make(map[int]string, len(gs.DaySummaries)),
		Winner:            gs.Winner,
		IsStarted:         gs.IsStarted,
		IsComplete:        gs.IsComplete,
	}

	for id, p := range gs.Players {
		cp := *p
		out.Players[id] = &cp
	}

	for targetID, nominators := range gs.Nominations {
		out.Nominations[targetID] = append([]string(nil), nominators...)
	}

	for nominatorID, targetID := range gs.WhoNominated {
		out.WhoNominated[nominatorID] = targetID
	}

	for day, summary := range gs.DaySummaries {
		out.DaySummaries[day] = summary
	}

	return out
}

func (gs *GameState) AddPlayer(p *Player) error {
	if _, ok := gs.Players[p.ID]; ok {
		return ErrDuplicatePlayer
	}

	gs.Players[p.ID] = p
	gs.order = append(gs.order, p.ID)

	return nil
}

func (gs *GameState) Player(id string) (*Player, bool) {
	p, ok := gs.Players[id]
	return p, ok
}

// PlayersInOrder 按座位顺序返回所有玩家（含已死亡的）
func (gs *GameState) PlayersInOrder() []*Player {
	out := make([]*Player, 0, len(gs.order))

	for _, id := range gs.order {
		out = append(out, gs.Players[id])
	}

	return out
}

// AlivePlayers 按座位顺序返回所有存活玩家
func (gs *GameState) AlivePlayers() []*Player {
	out := make([]*Player, 0, len(gs.order))

	for _, id := range gs.order {
		if p := gs.Players[id]; p.IsAlive {
			out = append(out, p)
		}
	}

	return out
}

func (gs *GameState) AlivePlayerIDs() []string {
	alive := gs.AlivePlayers()
	out := make([]string, 0, len(alive))

	for _, p := range alive {
		out = append(out, p.ID)
	}

	return out
}

// PlayersByRole 返回指定角色的存活玩家
func (gs *GameState) PlayersByRole(role string) []*Player {
	out := make([]*Player, 0)

	for _, id := range gs.order {
		if p := gs.Players[id]; p.IsAlive && p.Role == role {
			out = append(out, p)
		}
	}

	return out
}

// PlayersByTeam 返回指定阵营的存活玩家
func (gs *GameState) PlayersByTeam(team string) []*Player {
	out := make([]*Player, 0)

	for _, id := range gs.order {
		if p := gs.Players[id]; p.IsAlive && p.Team == team {
			out = append(out, p)
		}
	}

	return out
}

// CurrentSpeaker 返回轮询顺序中的当前发言者，无人存活时返回 nil
func (gs *GameState) CurrentSpeaker() *Player {
	alive := gs.AlivePlayers()
	if len(alive) == 0 {
		return nil
	}

	return alive[gs.CurrentSpeakerIdx%len(alive)]
}

// AdvanceSpeaker 只移动下标，不做任何校验，调用方需保证处于讨论类阶段
func (gs *GameState) AdvanceSpeaker() {
	gs.CurrentSpeakerIdx++
}

func (gs *GameState) ResetSpeakerOrder() {
	gs.CurrentSpeakerIdx = 0
}

// AddNomination 记录一次提名。同一玩家重复提名同一目标是幂等的；
// 改提其他目标时，旧提名会被移除。
func (gs *GameState) AddNomination(nominatorID, targetID string) {
	if prev, ok := gs.WhoNominated[nominatorID]; ok {
		if prev == targetID {
			return
		}

		gs.removeNomination(nominatorID, prev)
	}

	gs.WhoNominated[nominatorID] = targetID
	gs.Nominations[targetID] = append(gs.Nominations[targetID], nominatorID)
}

func (gs *GameState) removeNomination(nominatorID, targetID string) {
	nominators := gs.Nominations[targetID]

	for i, id := range nominators {
		if id == nominatorID {
			gs.Nominations[targetID] = append(nominators[:i], nominators[i+1:]...)
			break
		}
	}

	if len(gs.Nominations[targetID]) == 0 {
		delete(gs.Nominations, targetID)
	}

	delete(gs.WhoNominated, nominatorID)
}

// CheckWinConditions 返回胜利阵营：
// 场上没有存活 MAFIA 时 TOWN_TEAM 获胜；
// 存活 MAFIA 数量达到存活 TOWN_TEAM 数量时 MAFIA_TEAM 获胜；
// 否则返回空字符串。
func (gs *GameState) CheckWinConditions() string {
	mafiaCount := len(gs.PlayersByRole(ROLE_MAFIA))
	townCount := len(gs.PlayersByTeam(TEAM_TOWN))

	if mafiaCount == 0 {
		return TEAM_TOWN
	}

	if mafiaCount >= townCount {
		return TEAM_MAFIA
	}

	return ""
}

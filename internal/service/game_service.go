package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"mafia-arena-be/internal/service/dto"
	"mafia-arena-be/internal/service/game"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AgentSpec 描述一名 LLM 玩家使用的模型
type AgentSpec struct {
	PlayerID  string
	ModelName string
	Persona   string
}

// AgentPool 是外部代理协作方的契约。实现方不保证成功，也不保证返回合法行动：
// 编排器必须重新校验并在失败时使用确定性的兜底行动。
type AgentPool interface {
	// Has 判断指定玩家是否由代理驱动
	Has(playerID string) bool

	// RequestAction 为指定玩家请求一个行动。
	// 传入的 GameState 是在锁内构造的深拷贝快照，调用期间不会被任何人修改。
	RequestAction(ctx context.Context, gs *game.GameState, playerID string, daySummary string) (game.Action, error)

	// SummarizeDay 生成指定天的事件总结
	SummarizeDay(ctx context.Context, gs *game.GameState, day int) (string, error)

	// UpdateMemories 尽力而为地更新所有代理玩家的工作记忆，
	// 失败时保持原有记忆不变，绝不影响游戏状态
	UpdateMemories(ctx context.Context, gs *game.GameState, day int)
}

// AgentFactory 在创建游戏时为 LLM 玩家构建代理池
type AgentFactory func(specs []AgentSpec) AgentPool

type GameService struct {
	state *gameServiceState

	rules        game.Rules
	agentTimeout time.Duration
	gameTTL      time.Duration
	newAgents    AgentFactory
}

type gameServiceState struct {
	mu sync.RWMutex

	games map[string]*gameInstance

	cleanUpDone chan struct{}
	closeOnce   sync.Once
}

// gameInstance 是一局游戏的运行时容器。
// inst.mu 串行化所有对 gs 和 pending 的访问；编排器 goroutine 是 gs 的唯一写者。
type gameInstance struct {
	mu sync.Mutex

	gs     *game.GameState
	agents AgentPool

	// 待处理行动邮箱：每个 (game, player) 一个槽位，后写覆盖先写，
	// 由编排器循环恰好消费一次
	pending map[string]game.Action

	// 提名阶段里已处理但选择弃权的玩家，阶段切换时重置
	nomPassed map[string]bool
	lastPhase string

	subs      map[chan game.GameEvent]struct{}
	published int

	running    bool
	doneCh     chan struct{}
	createdAt  time.Time
	finishedAt time.Time
}

func NewGameService(rules game.Rules, agentTimeout, gameTTL time.Duration, newAgents AgentFactory) *GameService {
	state := &gameServiceState{
		games:       make(map[string]*gameInstance),
		cleanUpDone: make(chan struct{}),
	}

	svc := &GameService{
		state:        state,
		rules:        rules,
		agentTimeout: agentTimeout,
		gameTTL:      gameTTL,
		newAgents:    newAgents,
	}

	// 定期清理已结束且超过保留期的游戏
	go svc.startCleanupLoop()

	return svc
}

func (svc *GameService) startCleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-svc.state.cleanUpDone:
			return

		case <-ticker.C:
			svc.state.mu.Lock()

			for gameID, inst := range svc.state.games {
				inst.mu.Lock()
				expired := inst.gs.IsComplete && !inst.finishedAt.IsZero() &&
					time.Since(inst.finishedAt) > svc.gameTTL
				inst.mu.Unlock()

				if expired {
					zap.S().Infof("游戏 %s 已结束且过期，开始清理", gameID)

					close(inst.doneCh)

					inst.mu.Lock()
					inst.closeSubs()
					inst.mu.Unlock()

					delete(svc.state.games, gameID)
				}
			}

			svc.state.mu.Unlock()
		}
	}
}

func (svc *GameService) Close() {
	svc.state.closeOnce.Do(func() {
		close(svc.state.cleanUpDone)

		svc.state.mu.Lock()
		defer svc.state.mu.Unlock()

		for gameID, inst := range svc.state.games {
			close(inst.doneCh)

			inst.mu.Lock()
			inst.closeSubs()
			inst.mu.Unlock()

			delete(svc.state.games, gameID)
		}
	})
}

// assignRoles 按人数分配角色：
// 8 人局为 2 MAFIA / 1 DETECTIVE / 1 DOCTOR / 4 VILLAGER；
// 少于 6 人为 1 MAFIA / 1 DETECTIVE，其余 VILLAGER；
// 更大的局按 max(2, n/4) 配置黑手党。分配后随机打乱。
func assignRoles(playerCount int) []string {
	roles := make([]string, 0, playerCount)

	switch {
	case playerCount < 6:
		roles = append(roles, game.ROLE_MAFIA, game.ROLE_DETECTIVE)
		for len(roles) < playerCount {
			roles = append(roles, game.ROLE_VILLAGER)
		}
	default:
		mafiaCount := playerCount / 4
		if mafiaCount < 2 {
			mafiaCount = 2
		}

		for i := 0; i < mafiaCount; i++ {
			roles = append(roles, game.ROLE_MAFIA)
		}

		roles = append(roles, game.ROLE_DETECTIVE, game.ROLE_DOCTOR)

		for len(roles) < playerCount {
			roles = append(roles, game.ROLE_VILLAGER)
		}
	}

	rand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	return roles
}

func shortID() string {
	return uuid.New().String()[:8]
}

func (svc *GameService) CreateGame(req dto.CreateGameRequest) (dto.CreateGameResponse, error) {
	playerCount := req.PlayerCount
	if playerCount == 0 {
		playerCount = 8
	}

	if playerCount < 4 {
		return dto.CreateGameResponse{}, errors.New("至少需要 4 名玩家")
	}

	if req.HumanPlayerName == "" && len(req.Models) == 0 {
		return dto.CreateGameResponse{}, errors.New("必须至少提供一个 LLM 模型或一名人类玩家")
	}

	// 人类至多占一个席位，其余席位都需要模型
	if len(req.Models) == 0 && playerCount > 1 {
		return dto.CreateGameResponse{}, errors.New("缺少填充其余席位的 LLM 模型")
	}

	roles := assignRoles(playerCount)

	gs := game.NewGameState(game.GenID())

	specs := make([]AgentSpec, 0, playerCount)
	playersResp := make([]dto.PlayerView, 0, playerCount)

	modelIdx := 0

	for i := 0; i < playerCount; i++ {
		playerID := shortID()
		role := roles[i]

		var p *game.Player

		if i == 0 && req.HumanPlayerName != "" {
			p = game.NewPlayer(playerID, req.HumanPlayerName, role, true)
		} else {
			model := req.Models[modelIdx%len(req.Models)]
			modelIdx++

			segments := strings.Split(model.ModelName, "/")
			name := fmt.Sprintf("%s %d", segments[len(segments)-1], modelIdx)

			p = game.NewPlayer(playerID, name, role, false)
			p.ModelName = model.ModelName
			p.ModelLabel = model.Label
			p.ModelProvider = model.Provider

			specs = append(specs, AgentSpec{
				PlayerID:  playerID,
				ModelName: model.ModelName,
				Persona:   model.Persona,
			})
		}

		if err := gs.AddPlayer(p); err != nil {
			return dto.CreateGameResponse{}, err
		}

		// 创建响应对创建者揭示全部身份
		playersResp = append(playersResp, dto.PlayerView{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role,
			Team:     p.Team,
			IsAlive:  true,
			IsHuman:  p.IsHuman,
		})
	}

	inst := &gameInstance{
		gs:        gs,
		agents:    svc.newAgents(specs),
		pending:   make(map[string]game.Action),
		nomPassed: make(map[string]bool),
		lastPhase: gs.CurrentPhase,
		subs:      make(map[chan game.GameEvent]struct{}),
		doneCh:    make(chan struct{}),
		createdAt: time.Now(),
	}

	svc.state.mu.Lock()
	svc.state.games[gs.ID] = inst
	svc.state.mu.Unlock()

	zap.S().Infof("游戏 %s 创建，共 %d 名玩家", gs.ID, playerCount)

	return dto.CreateGameResponse{
		GameID:  gs.ID,
		Players: playersResp,
	}, nil
}

func (svc *GameService) instance(gameID string) (*gameInstance, error) {
	svc.state.mu.RLock()
	defer svc.state.mu.RUnlock()

	inst, ok := svc.state.games[gameID]
	if !ok {
		return nil, game.ErrGameNotFound
	}

	return inst, nil
}

// StartGame 标记游戏开始并启动该局的编排器 goroutine
func (svc *GameService) StartGame(gameID string) error {
	inst, err := svc.instance(gameID)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.running {
		return errors.New("game already started")
	}

	inst.running = true
	inst.gs.IsStarted = true

	go svc.runLoop(inst)

	return nil
}

// JoinGame 在开局前由人类玩家接管一个非人类席位
func (svc *GameService) JoinGame(gameID, playerName string) (dto.JoinGameResponse, error) {
	inst, err := svc.instance(gameID)
	if err != nil {
		return dto.JoinGameResponse{}, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.gs.IsStarted {
		return dto.JoinGameResponse{}, errors.New("game already started")
	}

	for _, p := range inst.gs.AlivePlayers() {
		if p.IsHuman {
			continue
		}

		p.IsHuman = true
		p.Name = playerName
		p.ModelName = ""
		p.ModelLabel = ""
		p.ModelProvider = ""

		return dto.JoinGameResponse{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role,
		}, nil
	}

	return dto.JoinGameResponse{}, errors.New("game is full")
}

// SubmitAction 是外部行动提交入口：先校验，通过后写入邮箱；被拒绝时不存任何东西。
// 同一玩家在消费周期之间重复提交时，后写覆盖先写。
func (svc *GameService) SubmitAction(gameID string, req dto.SubmitActionRequest) (dto.SubmitActionResponse, error) {
	inst, err := svc.instance(gameID)
	if err != nil {
		return dto.SubmitActionResponse{}, err
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return dto.SubmitActionResponse{}, err
	}

	action, err := game.ActionFromJSON(raw)
	if err != nil {
		return dto.SubmitActionResponse{Accepted: false, Reason: err.Error()}, nil
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	ok, reason := action.Validate(inst.gs)
	if !ok {
		return dto.SubmitActionResponse{Accepted: false, Reason: reason}, nil
	}

	inst.pending[action.Actor()] = action

	return dto.SubmitActionResponse{Accepted: true}, nil
}

// StartLegacyVote 显式开启旧版两候选人投票（兼容入口）
func (svc *GameService) StartLegacyVote(gameID, nominee1ID, nominee2ID string) error {
	inst, err := svc.instance(gameID)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	return game.StartLegacyVote(inst.gs, nominee1ID, nominee2ID)
}

// Snapshot 构建面向 viewerID 的只读投影
func (svc *GameService) Snapshot(gameID, viewerID string) (dto.GameStateView, error) {
	inst, err := svc.instance(gameID)
	if err != nil {
		return dto.GameStateView{}, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	return buildView(inst.gs, viewerID), nil
}

// buildView 是投影规则的唯一实现：
// 角色与阵营只对（人类）请求者本人揭示，死亡玩家完全公开；
// 提名计数只包含仍然存活的目标。调用方必须持有 inst.mu。
func buildView(gs *game.GameState, viewerID string) dto.GameStateView {
	viewer, viewerKnown := gs.Players[viewerID]

	players := make([]dto.PlayerView, 0, len(gs.Players))

	for _, p := range gs.PlayersInOrder() {
		players = append(players, playerView(p, viewer, viewerKnown))
	}

	aliveIDs := make(map[string]bool)
	for _, id := range gs.AlivePlayerIDs() {
		aliveIDs[id] = true
	}

	nominations := make(map[string][]string)
	for targetID, nominators := range gs.Nominations {
		if aliveIDs[targetID] {
			nominations[targetID] = append([]string{}, nominators...)
		}
	}

	view := dto.GameStateView{
		GameID:      gs.ID,
		Phase:       gs.CurrentPhase,
		Day:         gs.Day,
		Players:     players,
		Nominations: nominations,
		Winner:      gs.Winner,
		IsComplete:  gs.IsComplete,
		DaySummary:  gs.DaySummaries[gs.Day-1],
	}

	if speaker := gs.CurrentSpeaker(); speaker != nil {
		view.CurrentSpeakerID = speaker.ID
	}

	if gs.Trial != nil {
		guilty, innocent := gs.Trial.Tally()
		view.Trial = &dto.TrialView{
			DefendantID:   gs.Trial.DefendantID,
			DefensePhase:  gs.Trial.DefensePhase,
			GuiltyVotes:   guilty,
			InnocentVotes: innocent,
		}
	}

	if gs.Voting != nil {
		votes := make(map[string]string, len(gs.Voting.Votes))
		for voterID, nomineeID := range gs.Voting.Votes {
			votes[voterID] = nomineeID
		}

		view.Voting = &dto.VotingView{
			Nominee1ID: gs.Voting.Nominee1ID,
			Nominee2ID: gs.Voting.Nominee2ID,
			Votes:      votes,
		}
	}

	return view
}

func playerView(p *game.Player, viewer *game.Player, viewerKnown bool) dto.PlayerView {
	view := dto.PlayerView{
		PlayerID: p.ID,
		Name:     p.Name,
		IsAlive:  p.IsAlive,
		IsHuman:  p.IsHuman,
	}

	reveal := !p.IsAlive ||
		(viewerKnown && viewer.IsHuman && viewer.ID == p.ID)

	if reveal {
		view.Role = p.Role
		view.Team = p.Team
	}

	return view
}

// Events 返回事件日志，可按天或类型过滤。
// 夜间行动事件只对行动者本人可见（查验结果等不得泄露给其他观察者）。
func (svc *GameService) Events(gameID, viewerID string, day int, eventType string) ([]game.GameEvent, error) {
	inst, err := svc.instance(gameID)
	if err != nil {
		return nil, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	events := inst.gs.Events.Events()
	out := make([]game.GameEvent, 0, len(events))

	for _, ev := range events {
		if day > 0 && ev.Day != day {
			continue
		}

		if eventType != "" && ev.Type != eventType {
			continue
		}

		if ev.Type == game.EVENT_NIGHT_ACTION && ev.PlayerID != viewerID {
			continue
		}

		out = append(out, ev)
	}

	return out, nil
}

// Subscribe 订阅一局游戏的后续事件，返回取消函数
func (svc *GameService) Subscribe(gameID string) (<-chan game.GameEvent, func(), error) {
	inst, err := svc.instance(gameID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan game.GameEvent, 64)

	inst.mu.Lock()
	inst.subs[ch] = struct{}{}
	inst.mu.Unlock()

	cancel := func() {
		inst.mu.Lock()
		delete(inst.subs, ch)
		inst.mu.Unlock()
	}

	return ch, cancel, nil
}

// closeSubs 关闭并清空全部订阅通道，让读端结束而不是挂在心跳上。
// 调用方必须持有 inst.mu；之后的 publish 看到空集合，不会写已关闭的通道。
func (inst *gameInstance) closeSubs() {
	for ch := range inst.subs {
		close(ch)
	}

	inst.subs = make(map[chan game.GameEvent]struct{})
}

// publish 把日志中尚未推送的事件发给所有订阅者，通道满时丢弃
func (inst *gameInstance) publish() {
	events := inst.gs.Events.Events()

	for ; inst.published < len(events); inst.published++ {
		ev := events[inst.published]

		for ch := range inst.subs {
			select {
			case ch <- ev:
			default:
				zap.L().Warn("事件推送失败：订阅通道已满")
			}
		}
	}
}

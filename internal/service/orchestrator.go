package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"mafia-arena-be/internal/service/game"

	"go.uber.org/zap"
)

// runLoop 把一局游戏驱动到结束。每局游戏一个 goroutine，
// 它是 GameState 的唯一写者；所有外部输入都经由待处理行动邮箱进入。
func (svc *GameService) runLoop(inst *gameInstance) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	zap.L().Info("游戏循环启动", zap.String("game_id", inst.gs.ID))

	for {
		select {
		case <-inst.doneCh:
			zap.L().Info("收到退出信号，结束游戏循环", zap.String("game_id", inst.gs.ID))
			return
		case <-ticker.C:
		}

		if svc.step(inst) {
			break
		}
	}

	inst.mu.Lock()
	inst.finishedAt = time.Now()
	winner := inst.gs.Winner
	inst.mu.Unlock()

	zap.L().Info(
		"游戏循环结束",
		zap.String("game_id", inst.gs.ID),
		zap.String("winner", winner),
	)
}

// step 推进一小步。返回 true 表示游戏已经结束。
func (svc *GameService) step(inst *gameInstance) bool {
	inst.mu.Lock()

	if inst.gs.IsComplete {
		inst.publish()
		inst.mu.Unlock()
		return true
	}

	phase := inst.gs.CurrentPhase

	// 阶段切换时重置阶段内的编排器记账
	if phase != inst.lastPhase {
		inst.lastPhase = phase
		inst.nomPassed = make(map[string]bool)
	}

	inst.mu.Unlock()

	switch phase {
	case game.PHASE_NIGHT:
		svc.stepNight(inst)
	case game.PHASE_DAY_DISCUSSION:
		svc.stepDiscussion(inst)
	case game.PHASE_DAY_NOMINATION:
		svc.stepNomination(inst)
	case game.PHASE_DAY_DEFENSE:
		svc.stepDefense(inst)
	case game.PHASE_DAY_JUDGMENT:
		svc.stepJudgment(inst)
	case game.PHASE_GAME_END:
		// IsComplete 在下一次迭代收尾
	}

	inst.mu.Lock()
	inst.publish()
	done := inst.gs.IsComplete
	if done {
		inst.finishedAt = time.Now()
	}
	inst.mu.Unlock()

	return done
}

// takePending 取走并清空某玩家的待处理行动，没有则返回 nil
func (inst *gameInstance) takePending(playerID string) game.Action {
	action, ok := inst.pending[playerID]
	if !ok {
		return nil
	}

	delete(inst.pending, playerID)

	return action
}

// requestAgentAction 在不持有 inst.mu 的情况下请求代理行动，带超时。
// 快照在锁内深拷贝，代理挂起期间其他 goroutine（如 StartLegacyVote）
// 对活动状态的写入不会被代理观察到。
func (svc *GameService) requestAgentAction(inst *gameInstance, playerID string) game.Action {
	ctx, cancel := context.WithTimeout(context.Background(), svc.agentTimeout)
	defer cancel()

	inst.mu.Lock()
	snapshot := inst.gs.Clone()
	inst.mu.Unlock()

	daySummary := snapshot.DaySummaries[snapshot.Day-1]

	action, err := inst.agents.RequestAction(ctx, snapshot, playerID, daySummary)
	if err != nil {
		zap.L().Warn(
			"代理行动请求失败，使用兜底行动",
			zap.String("game_id", inst.gs.ID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return nil
	}

	return action
}

// obtainAction 为指定玩家获取下一个行动：
// 优先消费邮箱；人类玩家没有提交时返回 (nil, false) 继续等待；
// 代理玩家走外部请求，失败时返回 (nil, true) 让调用方兜底。
func (svc *GameService) obtainAction(inst *gameInstance, playerID string) (game.Action, bool) {
	inst.mu.Lock()
	action := inst.takePending(playerID)
	isHuman := inst.gs.Players[playerID].IsHuman
	inst.mu.Unlock()

	if action != nil {
		return action, true
	}

	if isHuman {
		return nil, false
	}

	if !inst.agents.Has(playerID) {
		// 没有代理也不是人类：只能兜底
		return nil, true
	}

	return svc.requestAgentAction(inst, playerID), true
}

// applyOrFallback 应用行动；行动缺失或被拒绝时改用确定性兜底。
// 返回实际是否推进了状态。
func (svc *GameService) applyOrFallback(inst *gameInstance, playerID string, action game.Action) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	gs := inst.gs

	if action != nil {
		if ok, reason := game.ProcessAction(gs, action); ok {
			return true
		} else {
			zap.L().Debug(
				"行动被拒绝，使用兜底行动",
				zap.String("game_id", gs.ID),
				zap.String("player_id", playerID),
				zap.String("kind", action.Kind()),
				zap.String("reason", reason),
			)
		}
	}

	fallback := svc.fallbackAction(gs, playerID)
	if fallback == nil {
		// 辩护阶段的兜底是直接跳过发言
		if gs.CurrentPhase == game.PHASE_DAY_DEFENSE {
			game.SkipDefenseSpeech(gs, playerID)
			return true
		}

		return false
	}

	if ok, reason := game.ProcessAction(gs, fallback); !ok {
		// 兜底行动必须合法，否则是编排器的缺陷
		panic(fmt.Sprintf("fallback action rejected: %s", reason))
	}

	if fallback.Kind() == game.ACTION_PASS && gs.CurrentPhase == game.PHASE_DAY_NOMINATION {
		inst.nomPassed[playerID] = true
	}

	return true
}

// fallbackAction 为无响应的玩家构造一个确定合法的行动。
// 辩护阶段返回 nil（用 SkipDefenseSpeech 处理）。
func (svc *GameService) fallbackAction(gs *game.GameState, playerID string) game.Action {
	switch gs.CurrentPhase {
	case game.PHASE_NIGHT:
		return nightFallback(gs, playerID)

	case game.PHASE_DAY_DISCUSSION:
		return game.PassAction{PlayerID: playerID}

	case game.PHASE_DAY_NOMINATION:
		targets := make([]string, 0)
		for _, p := range gs.AlivePlayers() {
			if p.ID != playerID {
				targets = append(targets, p.ID)
			}
		}

		if len(targets) == 0 {
			return game.PassAction{PlayerID: playerID}
		}

		return game.NominateAction{
			PlayerID: playerID,
			TargetID: targets[rand.Intn(len(targets))],
		}

	case game.PHASE_DAY_JUDGMENT:
		if gs.Voting != nil {
			nominees := []string{gs.Voting.Nominee1ID, gs.Voting.Nominee2ID}
			return game.VoteAction{
				PlayerID:  playerID,
				NomineeID: nominees[rand.Intn(2)],
			}
		}

		return game.JudgmentVoteAction{
			PlayerID: playerID,
			Verdict:  svc.rules.DefaultVerdict,
		}
	}

	return nil
}

// nightFallback 按角色选择一个随机合法目标
func nightFallback(gs *game.GameState, playerID string) game.Action {
	p := gs.Players[playerID]

	targets := make([]string, 0)

	for _, alive := range gs.AlivePlayers() {
		// 只有医生可以以自己为目标
		if alive.ID == playerID && p.Role != game.ROLE_DOCTOR {
			continue
		}

		targets = append(targets, alive.ID)
	}

	if len(targets) == 0 {
		return nil
	}

	targetID := targets[rand.Intn(len(targets))]

	var nightType string

	switch p.Role {
	case game.ROLE_MAFIA:
		nightType = game.NIGHT_KILL
	case game.ROLE_DOCTOR:
		nightType = game.NIGHT_SAVE
	case game.ROLE_DETECTIVE:
		nightType = game.NIGHT_INVESTIGATE
	default:
		return nil
	}

	return game.NightAction{
		PlayerID:  playerID,
		NightType: nightType,
		TargetID:  targetID,
	}
}

// stepNight 收集特殊角色的夜间行动，凑齐后结算进入白天
func (svc *GameService) stepNight(inst *gameInstance) {
	inst.mu.Lock()
	pending := game.NightActorsPending(inst.gs)

	if len(pending) == 0 {
		game.ResolveNight(inst.gs)
		inst.mu.Unlock()
		return
	}

	actorID := pending[0]
	inst.mu.Unlock()

	action, proceed := svc.obtainAction(inst, actorID)
	if !proceed {
		// 等待人类玩家提交
		return
	}

	svc.applyOrFallback(inst, actorID, action)

	inst.mu.Lock()
	if len(game.NightActorsPending(inst.gs)) == 0 {
		game.ResolveNight(inst.gs)
	}
	inst.mu.Unlock()
}

// stepDiscussion 轮询存活玩家发言，配置的轮数结束后进入提名
func (svc *GameService) stepDiscussion(inst *gameInstance) {
	inst.mu.Lock()

	alive := inst.gs.AlivePlayers()
	if len(alive) == 0 {
		inst.mu.Unlock()
		return
	}

	if inst.gs.CurrentSpeakerIdx >= svc.rules.DiscussionRounds*len(alive) {
		game.EndDiscussion(inst.gs)
		inst.mu.Unlock()
		return
	}

	speaker := inst.gs.CurrentSpeaker()
	inst.mu.Unlock()

	action, proceed := svc.obtainAction(inst, speaker.ID)
	if !proceed {
		return
	}

	svc.applyOrFallback(inst, speaker.ID, action)
}

// stepNomination 让每名存活玩家恰好提名一次；
// 全员处理完毕后收束（弃权者不计提名，可能出现零提名直接入夜）
func (svc *GameService) stepNomination(inst *gameInstance) {
	inst.mu.Lock()

	var nextID string

	for _, p := range inst.gs.AlivePlayers() {
		if _, nominated := inst.gs.WhoNominated[p.ID]; nominated {
			continue
		}

		if inst.nomPassed[p.ID] {
			continue
		}

		nextID = p.ID
		break
	}

	if nextID == "" {
		// 所有人都已提名或弃权。全员提名时引擎已自动收束；
		// 剩下的是存在弃权者的情况，在这里显式收束。
		if inst.gs.CurrentPhase == game.PHASE_DAY_NOMINATION {
			game.FinishNominations(inst.gs)
		}

		inst.mu.Unlock()
		return
	}

	inst.mu.Unlock()

	action, proceed := svc.obtainAction(inst, nextID)
	if !proceed {
		return
	}

	inst.mu.Lock()
	if action != nil {
		if _, isPass := action.(game.PassAction); isPass {
			inst.nomPassed[nextID] = true
		}
	}
	inst.mu.Unlock()

	svc.applyOrFallback(inst, nextID, action)
}

// stepDefense 按固定顺序推进辩护：被告开场、其余玩家回应、被告结案
func (svc *GameService) stepDefense(inst *gameInstance) {
	inst.mu.Lock()
	nextID := game.NextDefenseSpeaker(inst.gs)
	inst.mu.Unlock()

	if nextID == "" {
		return
	}

	action, proceed := svc.obtainAction(inst, nextID)
	if !proceed {
		return
	}

	svc.applyOrFallback(inst, nextID, action)
}

// stepJudgment 收集有罪/无罪投票（或旧版投票），结算后处理日终收尾
func (svc *GameService) stepJudgment(inst *gameInstance) {
	inst.mu.Lock()

	gs := inst.gs

	var nextID string

	if gs.Voting != nil {
		for _, p := range gs.AlivePlayers() {
			if _, voted := gs.Voting.Votes[p.ID]; !voted {
				nextID = p.ID
				break
			}
		}
	} else if gs.Trial != nil {
		for _, p := range gs.AlivePlayers() {
			if p.ID == gs.Trial.DefendantID {
				continue
			}

			if _, voted := gs.Trial.Votes[p.ID]; !voted {
				nextID = p.ID
				break
			}
		}
	}

	day := gs.Day
	inst.mu.Unlock()

	if nextID == "" {
		return
	}

	action, proceed := svc.obtainAction(inst, nextID)
	if !proceed {
		return
	}

	svc.applyOrFallback(inst, nextID, action)

	// 审判结算会把阶段切回夜晚并把天数加一；此时做日终总结和记忆更新
	inst.mu.Lock()
	dayEnded := gs.CurrentPhase == game.PHASE_NIGHT && gs.Day == day+1
	inst.mu.Unlock()

	if dayEnded {
		svc.finishDay(inst, day)
	}
}

// finishDay 在一天结束后生成总结并更新代理记忆。
// 两者都是尽力而为：失败只记日志，绝不影响游戏状态。
func (svc *GameService) finishDay(inst *gameInstance, day int) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.agentTimeout)
	defer cancel()

	inst.mu.Lock()
	snapshot := inst.gs.Clone()
	inst.mu.Unlock()

	summary, err := inst.agents.SummarizeDay(ctx, snapshot, day)
	if err != nil {
		zap.L().Warn(
			"日终总结失败",
			zap.String("game_id", inst.gs.ID),
			zap.Int("day", day),
			zap.Error(err),
		)
		summary = fmt.Sprintf("Day %d summary unavailable", day)
	}

	inst.mu.Lock()
	inst.gs.DaySummaries[day] = summary
	inst.mu.Unlock()

	inst.agents.UpdateMemories(ctx, snapshot, day)
}

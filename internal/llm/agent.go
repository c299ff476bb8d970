package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"mafia-arena-be/internal/service/game"
)

const (
	actionTemperature  = 0.8
	summaryTemperature = 0.5
)

// Agent 将一个席位绑定到一个模型和可选的人设
type Agent struct {
	PlayerID  string
	ModelName string
	Persona   string
}

// Pool 为一局游戏中的全部 LLM 玩家提供行动、总结与记忆维护。
// 实现 service.AgentPool。
type Pool struct {
	client       *Client
	summaryModel string
	agents       map[string]*Agent
	memory       *MemoryManager
}

func NewPool(client *Client, summaryModel string, agents []Agent) *Pool {
	byID := make(map[string]*Agent, len(agents))

	for i := range agents {
		byID[agents[i].PlayerID] = &agents[i]
	}

	return &Pool{
		client:       client,
		summaryModel: summaryModel,
		agents:       byID,
		memory:       NewMemoryManager(),
	}
}

func (p *Pool) Has(playerID string) bool {
	_, ok := p.agents[playerID]
	return ok
}

// RequestAction 向模型请求一个行动并解码为引擎行动。
// 模型不能伪造身份：player_id 一律以席位为准覆盖写入。
func (p *Pool) RequestAction(
	ctx context.Context,
	gs *game.GameState,
	playerID string,
	daySummary string,
) (game.Action, error) {
	agent, ok := p.agents[playerID]
	if !ok {
		return nil, fmt.Errorf("no agent bound to player %s", playerID)
	}

	player, ok := gs.Player(playerID)
	if !ok {
		return nil, game.ErrPlayerNotFound
	}

	prompt := BuildActionPrompt(gs, player, agent.Persona, p.memory.Get(playerID), daySummary)

	data, err := p.client.JSONResponse(ctx, agent.ModelName, prompt, actionTemperature)
	if err != nil {
		return nil, err
	}

	data["player_id"] = playerID

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	action, err := game.ActionFromJSON(raw)
	if err != nil {
		return nil, err
	}

	return action, nil
}

// SummarizeDay 用总结模型生成当天的中立编年纪录
func (p *Pool) SummarizeDay(ctx context.Context, gs *game.GameState, day int) (string, error) {
	prompt := BuildSummaryPrompt(gs, day)

	return p.client.ChatCompletion(ctx, p.summaryModel, "", prompt, summaryTemperature)
}

// UpdateMemories 让每个代理重写自己的工作记忆。
// 任一代理失败时保留其旧记忆，不影响其他代理。
func (p *Pool) UpdateMemories(ctx context.Context, gs *game.GameState, day int) {
	for playerID, agent := range p.agents {
		player, ok := gs.Player(playerID)
		if !ok || !player.IsAlive {
			continue
		}

		prompt := BuildMemoryPrompt(gs, player, p.memory.Get(playerID), day)

		data, err := p.client.JSONResponse(ctx, agent.ModelName, prompt, summaryTemperature)
		if err != nil {
			zap.S().Warnf("玩家 %s 更新记忆失败: %v", playerID, err)
			continue
		}

		memory, ok := data["memory"].(string)
		if !ok || memory == "" {
			zap.S().Warnf("玩家 %s 返回的记忆为空，保留旧记忆", playerID)
			continue
		}

		p.memory.Update(playerID, memory)
	}
}

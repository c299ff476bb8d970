package main

import (
	"time"

	"mafia-arena-be/internal/api/http"
	"mafia-arena-be/internal/config"
	"mafia-arena-be/internal/llm"
	"mafia-arena-be/internal/logger"
	"mafia-arena-be/internal/service"
	"mafia-arena-be/internal/service/game"
	"mafia-arena-be/internal/state"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	// LLM 客户端，所有代理共用一个
	client, err := llm.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	if err != nil {
		panic(err)
	}

	newAgents := func(specs []service.AgentSpec) service.AgentPool {
		agents := make([]llm.Agent, 0, len(specs))

		for _, spec := range specs {
			modelName := spec.ModelName
			if modelName == "" {
				modelName = cfg.DefaultModel
			}

			agents = append(agents, llm.Agent{
				PlayerID:  spec.PlayerID,
				ModelName: modelName,
				Persona:   spec.Persona,
			})
		}

		return llm.NewPool(client, cfg.SummaryModel, agents)
	}

	rules := game.Rules{
		DiscussionRounds: cfg.DiscussionRounds,
		DefaultVerdict:   cfg.DefaultVerdict,
	}

	gameSvc := service.NewGameService(
		rules,
		time.Duration(cfg.AgentTimeoutSec)*time.Second,
		time.Duration(cfg.GameTTLMin)*time.Minute,
		newAgents,
	)
	defer gameSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, gameSvc)

	// 启动服务器
	http.RunServer(appState)
}

package http

import (
	"fmt"

	"mafia-arena-be/internal/api/http/websocket"
	"mafia-arena-be/internal/state"

	"github.com/kataras/iris/v12"
)

func RunServer(appState *state.AppState) {
	app := iris.Default()

	api := app.Party("/api/v1")

	api.Post("/games", CreateGame(appState))
	api.Get("/games/{game_id}", GetGameState(appState))
	api.Post("/games/{game_id}/start", StartGame(appState))
	api.Post("/games/{game_id}/join", JoinGame(appState))
	api.Post("/games/{game_id}/actions", SubmitAction(appState))
	api.Post("/games/{game_id}/runoff", StartRunoffVote(appState))
	api.Get("/games/{game_id}/events", GetGameEvents(appState))

	api.Get("/ws/games/{game_id}/feed", websocket.EventFeed(appState))

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	app.Listen(addr)
}

package http

import (
	"errors"

	"mafia-arena-be/internal/service/dto"
	"mafia-arena-be/internal/service/game"
	"mafia-arena-be/internal/state"

	"github.com/kataras/iris/v12"
)

func statusForErr(err error) int {
	if errors.Is(err, game.ErrGameNotFound) || errors.Is(err, game.ErrPlayerNotFound) {
		return iris.StatusNotFound
	}

	return iris.StatusBadRequest
}

func CreateGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateGameRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		resp, err := appState.GameSvc.CreateGame(req)
		if err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(resp)
	}
}

func GetGameState(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")
		viewerID := ctx.URLParam("player_id")

		view, err := appState.GameSvc.Snapshot(gameID, viewerID)
		if err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(view)
	}
}

func StartGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")

		if err := appState.GameSvc.StartGame(gameID); err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{
			"status": "started",
		})
	}
}

func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")

		var req dto.JoinGameRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		resp, err := appState.GameSvc.JoinGame(gameID, req.PlayerName)
		if err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(resp)
	}
}

func SubmitAction(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")

		var req dto.SubmitActionRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		resp, err := appState.GameSvc.SubmitAction(gameID, req)
		if err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		// 被规则拒绝的行动不是传输错误，返回 200 和拒绝原因
		ctx.JSON(resp)
	}
}

type runoffRequest struct {
	Nominee1ID string `json:"nominee1_id"`
	Nominee2ID string `json:"nominee2_id"`
}

func StartRunoffVote(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")

		var req runoffRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		if err := appState.GameSvc.StartLegacyVote(gameID, req.Nominee1ID, req.Nominee2ID); err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{
			"status": "voting",
		})
	}
}

func GetGameEvents(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")
		viewerID := ctx.URLParam("player_id")
		eventType := ctx.URLParam("type")
		day := ctx.URLParamIntDefault("day", 0)

		events, err := appState.GameSvc.Events(gameID, viewerID, day, eventType)
		if err != nil {
			ctx.StatusCode(statusForErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{
			"events": events,
		})
	}
}

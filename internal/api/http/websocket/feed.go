package websocket

import (
	"time"

	"mafia-arena-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// EventFeed 把一局游戏的公开事件流推送给客户端。
// 事件单向推送，读循环只用于探测客户端断开。
func EventFeed(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		gameID := ctx.Params().Get("game_id")

		eventCh, cancel, err := appState.GameSvc.Subscribe(gameID)
		if err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			cancel()
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()
		defer cancel()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		clientIP := ctx.RemoteAddr()

		zap.L().Info(
			"事件流连接建立",
			zap.String("client_ip", clientIP),
			zap.String("game_id", gameID),
		)

		// 读取协程只负责探测断开
		readClosedCh := make(chan struct{})

		go func() {
			defer close(readClosedCh)

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(
						err,
						websocket.CloseGoingAway,
						websocket.CloseAbnormalClosure,
					) {
						zap.L().Error(
							"读取消息失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
					}

					return
				}
			}
		}()

		ticker := time.NewTicker(HEARTBEAT_INTERVAL)
		defer ticker.Stop()

		for {
			select {
			case <-readClosedCh:
				zap.L().Info(
					"客户端断开，关闭事件流",
					zap.String("client_ip", clientIP),
					zap.String("game_id", gameID),
				)
				return

			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					zap.L().Error(
						"发送心跳失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
					return
				}

				conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

			case ev, ok := <-eventCh:
				// 游戏结束或被清理时通道关闭
				if !ok {
					zap.L().Info(
						"事件通道已关闭，结束推送",
						zap.String("client_ip", clientIP),
						zap.String("game_id", gameID),
					)
					return
				}

				if err := conn.WriteJSON(ev); err != nil {
					zap.L().Error(
						"发送事件失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
					return
				}

				zap.L().Debug(
					"推送事件",
					zap.String("client_ip", clientIP),
					zap.String("event_type", ev.Type),
				)
			}
		}
	}
}

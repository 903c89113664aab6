package http

import (
	"fmt"

	"midnight-be/internal/api/http/websocket"
	"midnight-be/internal/state"

	"github.com/kataras/iris/v12"
)

func RunServer(appState *state.AppState) {
	app := iris.Default()

	app.HandleDir(
		"/",
		iris.Dir("./midnight-fe"),
		iris.DirOptions{
			IndexName: "index.html",
			SPA:       true,
			Compress:  true,
		},
	)

	api := app.Party("/api/v1")

	api.Post("/rooms/create", CreateRoom(appState))
	api.Post("/rooms/join", JoinRoom(appState))
	api.Post("/rooms/leave", LeaveRoom(appState))
	api.Get("/rooms/{code:string}/qr", RoomQR(appState))

	api.Post("/identity", NewIdentity())

	api.Get("/ws/join", websocket.JoinGame(appState))

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	app.Listen(addr)
}

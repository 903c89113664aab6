package http

import (
	"errors"
	"fmt"

	"midnight-be/internal/identity"
	"midnight-be/internal/service"
	"midnight-be/internal/service/dto"
	"midnight-be/internal/state"

	"github.com/kataras/iris/v12"
	qrcode "github.com/skip2/go-qrcode"
)

// statusForLifecycleErr 把房间生命周期错误映射成 HTTP 状态码
// 前端拿到行内 error 文本直接展示，没有重试逻辑
func statusForLifecycleErr(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return iris.StatusNotFound
	case errors.Is(err, service.ErrRoomNotJoinable),
		errors.Is(err, service.ErrRoomFull),
		errors.Is(err, service.ErrNameTaken):
		return iris.StatusConflict
	default:
		return iris.StatusBadRequest
	}
}

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		code, err := appState.RoomSvc.CreateRoom(req.HostName)
		if err != nil {
			ctx.StatusCode(statusForLifecycleErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(dto.CreateRoomResponse{RoomCode: code})
	}
}

func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.JoinRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		if err := appState.RoomSvc.JoinRoom(req.RoomCode, req.PlayerName); err != nil {
			ctx.StatusCode(statusForLifecycleErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{
			"room_code": req.RoomCode,
		})
	}
}

func LeaveRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.LeaveRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		if err := appState.RoomSvc.LeaveRoom(req.RoomCode, req.PlayerName); err != nil {
			ctx.StatusCode(statusForLifecycleErr(err))
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{})
	}
}

// RoomQR 返回加入链接的二维码 PNG，扫码进房
func RoomQR(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		_, exists, err := appState.RoomSvc.ReadRoom(code)
		if err != nil || !exists {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": service.ErrRoomNotFound.Error(),
			})
			return
		}

		joinURL := fmt.Sprintf("%s/?room=%s", appState.Cfg.PublicURL, code)

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(iris.Map{
				"error": "生成二维码失败",
			})
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}

// NewIdentity 给新设备发一个可读的玩家标识
func NewIdentity() iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(dto.IdentityResponse{
			PlayerID: identity.NewPlayerID(ctx.GetHeader("User-Agent")),
		})
	}
}

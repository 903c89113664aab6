package state

import (
	"midnight-be/internal/config"
	"midnight-be/internal/service"
	"midnight-be/internal/store"
)

// AppState 聚合所有共享依赖，HTTP 层和 WS 会话只拿它
type AppState struct {
	Cfg     *config.AppConfig
	Store   store.Store
	RoomSvc *service.RoomService
}

func NewAppState(
	cfg *config.AppConfig,
	st store.Store,
	roomSvc *service.RoomService,
) *AppState {
	return &AppState{
		Cfg:     cfg,
		Store:   st,
		RoomSvc: roomSvc,
	}
}

package game

import (
	"encoding/json"

	"go.uber.org/zap"

	"midnight-be/internal/service/dto"
)

// 客户端请求类型
const (
	REQ_START_GAME   = "StartGame"
	REQ_READY        = "Ready"
	REQ_VOTE         = "Vote"
	REQ_REQUEST_VOTE = "RequestVote"
	REQ_CHAT         = "Chat"
	REQ_RESET        = "Reset"
	REQ_LEAVE        = "Leave"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`
}

type StartGameRequest struct {
	Settings dto.StartGameSettings `json:"settings"`
}

type VoteRequest struct {
	Target string `json:"target"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	if wrapper.ReqType != REQ_START_GAME {
		return nil
	}

	var req StartGameRequest

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap StartGameRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

func TryUnwrapVoteRequest(wrapper RequestWrapper) *VoteRequest {
	if wrapper.ReqType != REQ_VOTE {
		return nil
	}

	var req VoteRequest

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap VoteRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

func TryUnwrapChatRequest(wrapper RequestWrapper) *ChatRequest {
	if wrapper.ReqType != REQ_CHAT {
		return nil
	}

	var req ChatRequest

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap ChatRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

// 服务器事件类型
const (
	EVT_ERROR = "Error"

	// 每次已提交变更推送一次完整房间快照，data 为 null
	// 表示房间已删除，客户端应视为被踢回大厅菜单
	EVT_ROOM_SNAPSHOT = "RoomSnapshot"
)

type EventWrapper struct {
	EventType string `json:"event_type"`
	Data      any    `json:"data,omitempty"`
	ErrMsg    string `json:"error_message,omitempty"`
}

func WrapEvent(eventType string, data any) EventWrapper {
	return EventWrapper{
		EventType: eventType,
		Data:      data,
	}
}

func WrapErrEvent(errMsg string) EventWrapper {
	return EventWrapper{
		EventType: EVT_ERROR,
		ErrMsg:    errMsg,
	}
}

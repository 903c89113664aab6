package dto

type CreateRoomRequest struct {
	HostName string `json:"host_name"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"room_code"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type LeaveRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type IdentityResponse struct {
	PlayerID string `json:"player_id"`
}

// StartGameSettings 是房主按下开始时的一局设置
// CustomWords 非空时优先于内置题库（自定义主题的生成结果）
type StartGameSettings struct {
	GameMode     string   `json:"game_mode"`
	SpyCount     int      `json:"spy_count"`
	Topic        string   `json:"topic"`
	TimerSeconds int      `json:"timer_seconds"`
	CustomWords  []string `json:"custom_words,omitempty"`
}

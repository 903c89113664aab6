package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"midnight-be/internal/service/dto"
	"midnight-be/internal/service/game"
	"midnight-be/internal/service/words"
	"midnight-be/internal/store"
)

// 房间生命周期错误，HTTP 层映射成行内提示，用户换个输入重试
var (
	ErrRoomNotFound    = errors.New("房间不存在")
	ErrRoomNotJoinable = errors.New("游戏已经开始，无法加入")
	ErrRoomFull        = errors.New("房间已满")
	ErrNameTaken       = errors.New("该名字已被占用")
	ErrNotHost         = errors.New("只有房主可以执行该操作")
	ErrNotInRoom       = errors.New("玩家不在房间中")
	ErrAlreadyVoted    = errors.New("你已投票，不能重复投票")
	ErrBadPhase        = errors.New("当前阶段不支持该操作")
)

// RoomService 管理房间的创建、加入、离开以及对共享房间文档的
// 一切修改。存储客户端由构造器注入，没有进程内的房间注册表：
// 每个操作先重读文档再写入，进程重启不丢任何状态
type RoomService struct {
	store store.Store
	words words.Source

	// rand.Rand 不是并发安全的，多个会话会同时开局
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewRoomService(st store.Store, wordSrc words.Source, rng *rand.Rand) *RoomService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &RoomService{
		store: st,
		words: wordSrc,
		rng:   rng,
	}
}

func roomPath(code string) string {
	return "rooms/" + code
}

// ReadRoom 读取房间文档的当前值
func (rs *RoomService) ReadRoom(code string) (*dto.Room, bool, error) {
	var room dto.Room

	ok, err := rs.store.Read(roomPath(code), &room)
	if err != nil || !ok {
		return nil, false, err
	}

	return &room, true, nil
}

// Subscribe 订阅房间文档，每次已提交的变更都送达完整快照
func (rs *RoomService) Subscribe(code string) *store.Subscription {
	return rs.store.Subscribe(roomPath(code))
}

// CreateRoom 分配一个未使用的房间码并写入初始文档
// 码冲突在 32^6 的空间里概率可以忽略，撞上就重新生成
func (rs *RoomService) CreateRoom(hostName string) (string, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return "", errors.New("房主名称不能为空")
	}

	var code string

	for {
		code = GenRoomCode()

		_, exists, err := rs.ReadRoom(code)
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
	}

	room := dto.Room{
		Code:     code,
		Host:     hostName,
		Players:  []string{hostName},
		Phase:    dto.PHASE_LOBBY,
		GameMode: dto.MODE_CLASSIC,
		SpyCount: 1,
		RoundConfig: dto.RoundConfig{
			Topic:        "Places",
			TimerSeconds: 300,
		},
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := rs.store.Create(roomPath(code), &room); err != nil {
		return "", err
	}

	zap.S().Infof("房间 %s 由 %s 创建", code, hostName)

	return code, nil
}

// JoinRoom 把玩家追加到玩家列表末尾
// 名字按区分大小写的精确匹配判重
func (rs *RoomService) JoinRoom(code, playerName string) error {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return errors.New("玩家名称不能为空")
	}

	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if room.Phase != dto.PHASE_LOBBY {
		return ErrRoomNotJoinable
	}
	if len(room.Players) >= dto.MAX_PLAYERS {
		return ErrRoomFull
	}
	if room.HasPlayer(playerName) {
		return ErrNameTaken
	}

	updated := append(append([]string{}, room.Players...), playerName)

	if err := rs.store.WriteFields(roomPath(code), map[string]any{
		"players": updated,
	}); err != nil {
		return err
	}

	zap.S().Infof("房间 %s 接纳玩家 %s", code, playerName)

	return nil
}

// LeaveRoom 把玩家从房间移除；房主离开或房间清空时删除整个
// 房间文档，订阅者收到 nil 快照后回到大厅菜单
//
// 投票中途离开的玩家，其选票与就绪标记一并撤回，避免计票
// 基数与在场玩家脱节
func (rs *RoomService) LeaveRoom(code, playerName string) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil || !exists {
		return err
	}

	updated := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		if p != playerName {
			updated = append(updated, p)
		}
	}

	if len(updated) == 0 || playerName == room.Host {
		zap.S().Infof("房间 %s 已删除（房主离开或房间清空）", code)
		return rs.store.Delete(roomPath(code))
	}

	return rs.store.WriteFields(roomPath(code), map[string]any{
		"players":                    updated,
		"votes/" + playerName:        nil,
		"playersReady/" + playerName: nil,
	})
}

// ResetRoom 为新的一局重置房间：保留玩家和用词历史，
// 清空其余一切回合状态，从 RESULTS 回到 LOBBY
func (rs *RoomService) ResetRoom(code string) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if room.Phase != dto.PHASE_RESULTS {
		return ErrBadPhase
	}

	return rs.store.WriteFieldsIf(
		roomPath(code),
		map[string]any{
			"phase":        dto.PHASE_RESULTS,
			"phaseVersion": room.PhaseVersion,
		},
		map[string]any{
			"phase":        dto.PHASE_LOBBY,
			"phaseVersion": room.PhaseVersion + 1,
			"roleData":     nil,
			"playersReady": nil,
			"votes":        nil,
			"ejected":      nil,
			"lastEjected":  nil,
			"winner":       nil,
			"messages":     nil,
		},
	)
}

// StartGame 由房主触发：校验配置、选词、分配身份，
// 然后带版本条件提交 LOBBY→REVEAL
//
// 词语生成失败即开局失败，绝不用空词库开始回合
func (rs *RoomService) StartGame(ctx context.Context, code, starter string, settings dto.StartGameSettings) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if starter != room.Host {
		return ErrNotHost
	}
	if room.Phase != dto.PHASE_LOBBY {
		return ErrBadPhase
	}
	if len(room.Players) < dto.MIN_PLAYERS {
		return game.ErrTooFewPlayers
	}

	pool, err := rs.resolveWordPool(ctx, room, settings)
	if err != nil {
		return err
	}

	rs.rngMu.Lock()
	word, err := game.PickWord(pool, room.WordHistory, rs.rng)
	if err != nil {
		rs.rngMu.Unlock()
		return err
	}

	roleData, err := game.AssignRoles(room.Players, settings.GameMode, settings.SpyCount, rs.rng)
	rs.rngMu.Unlock()

	if err != nil {
		return err
	}

	roleData.Word = word

	timerSeconds := settings.TimerSeconds
	if timerSeconds <= 0 {
		timerSeconds = room.RoundConfig.TimerSeconds
	}

	err = rs.store.WriteFieldsIf(
		roomPath(code),
		map[string]any{
			"phase":        dto.PHASE_LOBBY,
			"phaseVersion": room.PhaseVersion,
		},
		map[string]any{
			"phase":        dto.PHASE_REVEAL,
			"phaseVersion": room.PhaseVersion + 1,
			"gameMode":     settings.GameMode,
			"spyCount":     settings.SpyCount,
			"roundConfig": dto.RoundConfig{
				Topic:        settings.Topic,
				TimerSeconds: timerSeconds,
			},
			"roleData":     roleData,
			"wordHistory":  game.PushHistory(room.WordHistory, word),
			"playersReady": nil,
			"votes":        nil,
			"ejected":      nil,
			"lastEjected":  nil,
			"winner":       nil,
		},
	)
	if err != nil {
		return err
	}

	zap.S().Infof("房间 %s 开始游戏：模式 %s，%d 名玩家", code, settings.GameMode, len(room.Players))

	return nil
}

// resolveWordPool 决定本局候选词来源：
// 自定义词表 > 内置题库 > 外部生成服务
func (rs *RoomService) resolveWordPool(ctx context.Context, room *dto.Room, settings dto.StartGameSettings) ([]string, error) {
	if len(settings.CustomWords) > 0 {
		return settings.CustomWords, nil
	}

	if pool, ok := game.Topics[settings.Topic]; ok {
		return pool, nil
	}

	if rs.words == nil {
		return nil, game.ErrEmptyWordPool
	}

	pool, err := rs.words.Generate(ctx, settings.Topic, room.WordHistory)
	if err != nil {
		return nil, fmt.Errorf("生成主题词失败: %w", err)
	}

	return pool, nil
}

// MarkReady 记录玩家已确认看过自己的身份卡
func (rs *RoomService) MarkReady(code, playerName string) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if room.Phase != dto.PHASE_REVEAL {
		return ErrBadPhase
	}
	if !room.HasPlayer(playerName) {
		return ErrNotInRoom
	}

	return rs.store.WriteFields(roomPath(code), map[string]any{
		"playersReady/" + playerName: true,
	})
}

// SubmitVote 写入一张选票，target 可以是 SKIP 哨兵
func (rs *RoomService) SubmitVote(code, voter, target string) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if room.Phase != dto.PHASE_VOTING {
		return ErrBadPhase
	}
	if !room.HasPlayer(voter) || room.IsEjected(voter) {
		return ErrNotInRoom
	}
	if _, voted := room.Votes[voter]; voted {
		return ErrAlreadyVoted
	}

	if target != dto.VOTE_SKIP {
		if !room.HasPlayer(target) || room.IsEjected(target) {
			return errors.New("不能投给已出局或不存在的玩家")
		}
	}

	return rs.store.WriteFields(roomPath(code), map[string]any{
		"votes/" + voter: target,
	})
}

// RequestVote 任何在场玩家都可以叫停讨论、发起投票
func (rs *RoomService) RequestVote(code, playerName string) error {
	room, exists, err := rs.ReadRoom(code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if room.Phase != dto.PHASE_PLAYING {
		return ErrBadPhase
	}
	if !room.HasPlayer(playerName) || room.IsEjected(playerName) {
		return ErrNotInRoom
	}

	// 系统消息先行，阶段切换紧随其后
	if err := rs.SendMessage(code, "SYSTEM", playerName+" has asked to start voting!"); err != nil {
		zap.L().Warn("写入系统消息失败", zap.String("room", code), zap.Error(err))
	}

	return rs.AdvancePhase(code, dto.PHASE_PLAYING, room.PhaseVersion, dto.PHASE_VOTING)
}

// Eject 提交出局决定；SKIP 只更新 lastEjected
// ejected 集合在一局之内只增不减，只有整局重置才清空
func (rs *RoomService) Eject(code, target string) error {
	fields := map[string]any{
		"lastEjected": target,
	}

	if target != dto.VOTE_SKIP {
		fields["ejected/"+target] = true
	}

	return rs.store.WriteFields(roomPath(code), fields)
}

func (rs *RoomService) SetWinner(code, winner string) error {
	return rs.store.WriteFields(roomPath(code), map[string]any{
		"winner": winner,
	})
}

func (rs *RoomService) ClearVotes(code string) error {
	return rs.store.WriteFields(roomPath(code), map[string]any{
		"votes": nil,
	})
}

// AdvancePhase 带版本条件的阶段推进，非法边直接拒绝
// 版本冲突返回 store.ErrConflict，调用方丢弃即可：说明
// 另一个写入者已经完成了这次迁移
func (rs *RoomService) AdvancePhase(code, from string, fromVersion int64, to string) error {
	if !game.CanTransition(from, to) {
		return fmt.Errorf("非法的阶段迁移: %s -> %s", from, to)
	}

	return rs.store.WriteFieldsIf(
		roomPath(code),
		map[string]any{
			"phase":        from,
			"phaseVersion": fromVersion,
		},
		map[string]any{
			"phase":        to,
			"phaseVersion": fromVersion + 1,
		},
	)
}

// SendMessage 追加一条聊天记录，键由存储生成，
// 多个客户端并发追加互不覆盖
func (rs *RoomService) SendMessage(code, player, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("消息不能为空")
	}

	if runes := []rune(text); len(runes) > 200 {
		text = string(runes[:200])
	}

	_, err := rs.store.AppendChild(roomPath(code), "messages", dto.ChatMessage{
		Player:    player,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})

	return err
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"midnight-be/internal/service/dto"
	"midnight-be/internal/service/game"
	"midnight-be/internal/state"
	"midnight-be/internal/store"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// session 是一条 WebSocket 连接背后的同步会话
//
// 会话与房间之间只通过存储的文档交互：会话订阅房间文档，
// 把每个已提交快照推给客户端，并在快照上运行本客户端的
// 协调器。断线只结束会话，不把玩家移出房间——重连重新订阅
// 即可恢复，幂等且无副作用
type session struct {
	appState *state.AppState

	roomCode string
	player   string

	coord *game.Coordinator

	// 写协程消费的事件队列，带缓冲防止慢客户端阻塞快照泵
	respCh chan game.EventWrapper

	// 兜底倒计时的时长，构造时取 game 包常量，测试注入短值
	readyTimeout time.Duration
	voteTimeout  time.Duration
	judgeDelay   time.Duration

	// 兜底倒计时，只在快照泵协程里读写；会话收尾时
	// 先等泵协程退出再停止
	afkTimer   *time.Timer
	judgeTimer *time.Timer

	// 上一个快照的阶段与版本，用来判断计时器是否要重置
	lastPhase   string
	lastVersion int64
}

func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		roomCode := ctx.URLParam("room_code")
		playerName := ctx.URLParam("player_name")

		if roomCode == "" || playerName == "" {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "缺少 room_code 或 player_name 参数",
			})
			return
		}

		room, exists, err := appState.RoomSvc.ReadRoom(roomCode)
		if err != nil || !exists {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": "房间不存在",
			})
			return
		}

		if !room.HasPlayer(playerName) {
			ctx.StatusCode(iris.StatusForbidden)
			ctx.JSON(iris.Map{
				"error": "玩家不在房间中，请先加入",
			})
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(pongHandler(conn))

		s := newSession(appState, roomCode, playerName)

		s.run(conn, ctx.RemoteAddr())
	}
}

func newSession(appState *state.AppState, roomCode, playerName string) *session {
	return &session{
		appState:     appState,
		roomCode:     roomCode,
		player:       playerName,
		coord:        game.NewCoordinator(playerName),
		respCh:       make(chan game.EventWrapper, 64),
		readyTimeout: game.ReadyTimeout,
		voteTimeout:  game.VoteTimeout,
		judgeDelay:   game.EjectionDelay,
	}
}

func (s *session) run(conn *websocket.Conn, clientIP string) {
	zap.L().Info(
		"同步会话开始",
		zap.String("client_ip", clientIP),
		zap.String("room", s.roomCode),
		zap.String("player", s.player),
	)

	sub := s.appState.RoomSvc.Subscribe(s.roomCode)

	// 写协程的退出信号
	writeDoneCh := make(chan struct{})
	defer close(writeDoneCh)

	// 写入协程：心跳 + 事件下发
	go func() {
		ticker := time.NewTicker(HEARTBEAT_INTERVAL)
		defer ticker.Stop()

		for {
			select {
			case <-writeDoneCh:
				zap.L().Info(
					"WebSocket写入协程退出",
					zap.String("client_ip", clientIP),
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

			case evt := <-s.respCh:
				if err := conn.WriteJSON(evt); err != nil {
					zap.L().Error(
						"发送消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
					return
				}
			}
		}
	}()

	// 快照泵协程：订阅通道 → 客户端 + 协调器
	pumpDoneCh := make(chan struct{})

	go func() {
		defer close(pumpDoneCh)

		for snap := range sub.C {
			s.handleSnapshot(snap)
		}
	}()

	// 读取协程（当前协程）：客户端请求分发
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
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

			break
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"解析消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)

			s.pushEvent(game.WrapErrEvent("无效的请求格式"))

			continue
		}

		if leave := s.dispatch(wrapper); leave {
			break
		}
	}

	// 读循环退出即会话结束。计时器字段只在泵协程上读写，
	// 必须先取消订阅、等泵协程退出，才能安全回收计时器
	sub.Cancel()
	<-pumpDoneCh
	s.stopTimers()

	// 注意断线不等于离开房间，
	// 只有显式 Leave 请求才会把玩家移出玩家列表
	zap.L().Info(
		"同步会话结束",
		zap.String("client_ip", clientIP),
		zap.String("room", s.roomCode),
		zap.String("player", s.player),
	)
}

// dispatch 处理一条客户端请求，返回 true 表示会话应结束
func (s *session) dispatch(wrapper game.RequestWrapper) bool {
	rs := s.appState.RoomSvc

	var err error

	switch wrapper.ReqType {
	case game.REQ_START_GAME:
		req := game.TryUnwrapStartGameRequest(wrapper)
		if req == nil {
			s.pushEvent(game.WrapErrEvent("无效的开始游戏请求"))
			return false
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		err = rs.StartGame(ctx, s.roomCode, s.player, req.Settings)
		cancel()

	case game.REQ_READY:
		err = rs.MarkReady(s.roomCode, s.player)

	case game.REQ_VOTE:
		req := game.TryUnwrapVoteRequest(wrapper)
		if req == nil {
			s.pushEvent(game.WrapErrEvent("无效的投票请求"))
			return false
		}

		err = rs.SubmitVote(s.roomCode, s.player, req.Target)

	case game.REQ_REQUEST_VOTE:
		err = rs.RequestVote(s.roomCode, s.player)

	case game.REQ_CHAT:
		req := game.TryUnwrapChatRequest(wrapper)
		if req == nil {
			s.pushEvent(game.WrapErrEvent("无效的聊天请求"))
			return false
		}

		err = rs.SendMessage(s.roomCode, s.player, req.Text)

	case game.REQ_RESET:
		err = s.reset()

	case game.REQ_LEAVE:
		if err := rs.LeaveRoom(s.roomCode, s.player); err != nil {
			zap.L().Warn(
				"离开房间失败",
				zap.String("room", s.roomCode),
				zap.String("player", s.player),
				zap.Error(err),
			)
		}
		return true

	default:
		s.pushEvent(game.WrapErrEvent("未知的请求类型"))
		return false
	}

	if err != nil {
		// 版本冲突说明别的客户端抢先完成了同一迁移，静默丢弃
		if errors.Is(err, store.ErrConflict) {
			return false
		}

		s.pushEvent(game.WrapErrEvent(err.Error()))
	}

	return false
}

// reset 开新一局，只有房主可以按下 Play Again
func (s *session) reset() error {
	room, exists, err := s.appState.RoomSvc.ReadRoom(s.roomCode)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("房间不存在")
	}

	if s.player != room.Host {
		return errors.New("只有房主可以重新开始")
	}

	return s.appState.RoomSvc.ResetRoom(s.roomCode)
}

// handleSnapshot 处理一个已提交快照：推给客户端、运行协调器、
// 重置兜底计时器
func (s *session) handleSnapshot(snap store.Snapshot) {
	if !snap.Exists() {
		// 房间已删除，通知客户端回大厅
		s.pushEvent(game.WrapEvent(game.EVT_ROOM_SNAPSHOT, nil))
		s.stopTimers()
		return
	}

	var room dto.Room

	if err := snap.Decode(&room); err != nil {
		zap.L().Error(
			"解析房间快照失败",
			zap.String("room", s.roomCode),
			zap.Error(err),
		)
		return
	}

	s.pushEvent(game.WrapEvent(game.EVT_ROOM_SNAPSHOT, json.RawMessage(snap.Data)))

	s.applyEffects(s.coord.Step(&room))

	if room.Phase != s.lastPhase || room.PhaseVersion != s.lastVersion {
		s.lastPhase = room.Phase
		s.lastVersion = room.PhaseVersion
		s.resetTimers(&room)
	}
}

// resetTimers 在阶段变化时重排本会话的兜底倒计时
//
// 计时器到点后调用的操作都会重读文档并校验当前阶段，
// 迟到的触发是无害的空操作
func (s *session) resetTimers(room *dto.Room) {
	s.stopTimers()

	rs := s.appState.RoomSvc

	switch room.Phase {
	case dto.PHASE_REVEAL:
		if room.PlayersReady[s.player] {
			return
		}

		s.afkTimer = time.AfterFunc(s.readyTimeout, func() {
			if err := rs.MarkReady(s.roomCode, s.player); err != nil {
				zap.L().Debug("自动就绪被拒绝", zap.Error(err))
			}
		})

	case dto.PHASE_PLAYING:
		if !s.coord.IsAuthority(room) {
			return
		}

		// 讨论计时耗尽后由权威客户端强制进入投票
		seconds := room.RoundConfig.TimerSeconds
		if seconds <= 0 {
			return
		}

		from, version := room.Phase, room.PhaseVersion

		s.afkTimer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
			err := rs.AdvancePhase(s.roomCode, from, version, dto.PHASE_VOTING)
			if err != nil && !errors.Is(err, store.ErrConflict) {
				zap.L().Debug("讨论超时推进被拒绝", zap.Error(err))
			}
		})

	case dto.PHASE_VOTING:
		if _, voted := room.Votes[s.player]; voted || room.IsEjected(s.player) {
			return
		}

		target := randomVoteTarget(room, s.player)

		s.afkTimer = time.AfterFunc(s.voteTimeout, func() {
			if err := rs.SubmitVote(s.roomCode, s.player, target); err != nil {
				zap.L().Debug("自动投票被拒绝", zap.Error(err))
			}
		})

	case dto.PHASE_EJECTION:
		if !s.coord.IsAuthority(room) {
			return
		}

		// 出局画面播完后由权威客户端判定胜负
		s.judgeTimer = time.AfterFunc(s.judgeDelay, s.judge)
	}
}

func (s *session) judge() {
	room, exists, err := s.appState.RoomSvc.ReadRoom(s.roomCode)
	if err != nil || !exists {
		return
	}

	s.applyEffects(s.coord.JudgeEjection(room))
}

// applyEffects 把协调器的决定落到存储，版本冲突静默丢弃
func (s *session) applyEffects(effects []game.Effect) {
	rs := s.appState.RoomSvc

	for _, effect := range effects {
		var err error

		switch e := effect.(type) {
		case game.AdvancePhase:
			err = rs.AdvancePhase(s.roomCode, e.From, e.FromVersion, e.To)
		case game.Eject:
			err = rs.Eject(s.roomCode, e.Target)
		case game.SetWinner:
			err = rs.SetWinner(s.roomCode, e.Winner)
		case game.ClearVotes:
			err = rs.ClearVotes(s.roomCode)
		}

		if err != nil && !errors.Is(err, store.ErrConflict) {
			zap.L().Warn(
				"提交协调效果失败",
				zap.String("room", s.roomCode),
				zap.Error(err),
			)
		}
	}
}

func (s *session) stopTimers() {
	if s.afkTimer != nil {
		s.afkTimer.Stop()
		s.afkTimer = nil
	}
	if s.judgeTimer != nil {
		s.judgeTimer.Stop()
		s.judgeTimer = nil
	}
}

// pushEvent 非阻塞入队，慢客户端丢最旧的事件
func (s *session) pushEvent(evt game.EventWrapper) {
	for {
		select {
		case s.respCh <- evt:
			return
		default:
		}

		select {
		case <-s.respCh:
		default:
		}
	}
}

// randomVoteTarget 为超时玩家挑一个随机的在场目标（不含本人），
// 没有可投对象时弃票
func randomVoteTarget(room *dto.Room, self string) string {
	candidates := make([]string, 0, len(room.Players))

	for _, p := range room.ActivePlayers() {
		if p != self {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return dto.VOTE_SKIP
	}

	return candidates[rand.IntN(len(candidates))]
}

package game

import (
	"time"

	"midnight-be/internal/service/dto"
)

// 各阶段的本地兜底倒计时：到点后客户端替本人自动提交，
// 卡住的客户端不能让整个房间死锁
const (
	ReadyTimeout = 60 * time.Second
	VoteTimeout  = 90 * time.Second

	// EJECTION 画面的展示延时，到点后权威客户端做胜负判定
	EjectionDelay = 6 * time.Second
)

// 合法的阶段迁移边，此外的一切迁移都被拒绝
var legalEdges = map[string][]string{
	dto.PHASE_LOBBY:    {dto.PHASE_REVEAL},
	dto.PHASE_REVEAL:   {dto.PHASE_PLAYING},
	dto.PHASE_PLAYING:  {dto.PHASE_VOTING},
	dto.PHASE_VOTING:   {dto.PHASE_EJECTION},
	dto.PHASE_EJECTION: {dto.PHASE_PLAYING, dto.PHASE_RESULTS},
	dto.PHASE_RESULTS:  {dto.PHASE_LOBBY},
}

// CanTransition 判断一条阶段迁移边是否合法
func CanTransition(from, to string) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Effect 是协调器对快照做出的决定，由会话层落到存储
type Effect interface {
	isEffect()
}

// AdvancePhase 带着读到的版本做条件提交，版本不匹配说明
// 另一个写入者已经抢先，丢弃即可
type AdvancePhase struct {
	From        string
	FromVersion int64
	To          string
}

// Eject 提交出局决定，Target 为 SKIP 时只更新 lastEjected
type Eject struct {
	Target string
}

type SetWinner struct {
	Winner string
}

type ClearVotes struct{}

func (AdvancePhase) isEffect() {}
func (Eject) isEffect()        {}
func (SetWinner) isEffect()    {}
func (ClearVotes) isEffect()   {}

// Coordinator 是每个客户端各自持有的阶段迁移协调器
//
// 收敛判定（所有人已就绪、所有人已投票）由每个订阅者对同一份
// 快照冗余计算，但只有权威客户端（约定为 players[0]）产生实际
// 写入，其余客户端只用计算结果渲染本地界面
type Coordinator struct {
	self string
}

func NewCoordinator(self string) *Coordinator {
	return &Coordinator{self: self}
}

// IsAuthority 报告本客户端是否为当前快照下的权威
func (c *Coordinator) IsAuthority(room *dto.Room) bool {
	return room.Authority() == c.self
}

// Step 是同步的归约函数：对每个快照重新计算，返回应当提交的
// 写入效果。对非权威客户端恒为空
func (c *Coordinator) Step(room *dto.Room) []Effect {
	if room == nil || !c.IsAuthority(room) {
		return nil
	}

	switch room.Phase {
	case dto.PHASE_REVEAL:
		if ReadyCount(room) >= len(room.Players) && len(room.Players) > 0 {
			return []Effect{
				AdvancePhase{
					From:        dto.PHASE_REVEAL,
					FromVersion: room.PhaseVersion,
					To:          dto.PHASE_PLAYING,
				},
			}
		}

	case dto.PHASE_VOTING:
		active := room.ActivePlayers()
		if len(active) == 0 {
			return nil
		}

		if BallotCount(room) >= len(active) {
			target := Tally(room.Votes, room.Players, room.Ejected)

			return []Effect{
				Eject{Target: target},
				AdvancePhase{
					From:        dto.PHASE_VOTING,
					FromVersion: room.PhaseVersion,
					To:          dto.PHASE_EJECTION,
				},
			}
		}
	}

	return nil
}

// JudgeEjection 在 EJECTION 展示延时结束后调用，决定终局
// 还是回到下一轮讨论
func (c *Coordinator) JudgeEjection(room *dto.Room) []Effect {
	if room == nil || room.Phase != dto.PHASE_EJECTION || !c.IsAuthority(room) {
		return nil
	}

	winner, done := EvaluateWin(room.RoleData, room.Players, room.Ejected)

	if done {
		return []Effect{
			SetWinner{Winner: winner},
			AdvancePhase{
				From:        dto.PHASE_EJECTION,
				FromVersion: room.PhaseVersion,
				To:          dto.PHASE_RESULTS,
			},
		}
	}

	return []Effect{
		ClearVotes{},
		AdvancePhase{
			From:        dto.PHASE_EJECTION,
			FromVersion: room.PhaseVersion,
			To:          dto.PHASE_PLAYING,
		},
	}
}

// ReadyCount 统计已确认看过身份的在场玩家数
func ReadyCount(room *dto.Room) int {
	count := 0

	for _, p := range room.Players {
		if room.PlayersReady[p] {
			count++
		}
	}

	return count
}

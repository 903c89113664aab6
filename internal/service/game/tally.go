package game

import (
	"midnight-be/internal/service/dto"
)

// Tally 把一轮选票聚合成出局决定，是 votes 映射的纯函数
//
// 规则：弃票不计给任何候选人；唯一且大于零的最高票出局；
// 平票或最高票为零时维持现状，返回 SKIP
//
// 无效选票（投票者已出局或不在房间、票指向已出局或不存在的
// 玩家）直接丢弃而不是让计票崩溃，容忍陈旧快照带来的脏数据
func Tally(votes map[string]string, players []string, ejected map[string]bool) string {
	active := make(map[string]bool, len(players))
	for _, p := range players {
		if !ejected[p] {
			active[p] = true
		}
	}

	counts := make(map[string]int)

	for voter, target := range votes {
		if !active[voter] {
			continue
		}
		if target == dto.VOTE_SKIP {
			continue
		}
		if !active[target] {
			continue
		}

		counts[target]++
	}

	maxVotes := 0
	mostVoted := ""
	tie := false

	for target, count := range counts {
		switch {
		case count > maxVotes:
			maxVotes = count
			mostVoted = target
			tie = false
		case count == maxVotes:
			tie = true
		}
	}

	if tie || mostVoted == "" || maxVotes == 0 {
		return dto.VOTE_SKIP
	}

	return mostVoted
}

// BallotCount 统计有效投票人数（只计未出局玩家的票）
// 每个客户端都会冗余计算它来渲染“等待他人投票”
func BallotCount(room *dto.Room) int {
	count := 0

	for voter := range room.Votes {
		if room.HasPlayer(voter) && !room.IsEjected(voter) {
			count++
		}
	}

	return count
}

// EvaluateWin 对出局后的局面做胜负判定
//
// 卧底全部出局则特工方胜；否则当存活卧底不少于存活特工时
// 卧底方胜（>= 是刻意的派对游戏平衡取值，属于可调常量而非
// 保守写法）；两者都不满足则回到讨论阶段继续
func EvaluateWin(roleData *dto.RoleData, players []string, ejected map[string]bool) (string, bool) {
	if roleData == nil {
		return "", false
	}

	remainingSpies := 0
	for _, spy := range roleData.Spies {
		if !ejected[spy] {
			remainingSpies++
		}
	}

	if remainingSpies == 0 {
		return dto.WINNER_AGENTS, true
	}

	ejectedCount := 0
	for _, p := range players {
		if ejected[p] {
			ejectedCount++
		}
	}

	activePlayers := len(players) - ejectedCount
	activeSpies := remainingSpies

	if activeSpies >= activePlayers-activeSpies {
		return dto.WINNER_SPY, true
	}

	return "", false
}

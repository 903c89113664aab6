package game

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"midnight-be/internal/service/dto"
)

// 配置类错误，在任何房间写入发生之前同步拒绝
var (
	ErrTooFewPlayers  = errors.New("玩家数量不足 3 人，无法开始游戏")
	ErrTooManyPlayers = errors.New("玩家数量超过 16 人上限")
	ErrBadSpyCount    = errors.New("卧底数量必须在 1 到玩家数一半之间")
	ErrUnknownMode    = errors.New("未知的游戏模式")
)

// chaos 模式的特殊身份出现概率
const (
	chaosDoubleAgentChance = 0.5
	chaosInnocentChance    = 0.3
)

// AssignRoles 是纯函数的身份分配引擎：给定玩家列表、游戏模式
// 和卧底数量，产出满足文档模型不变量的 RoleData（Word 由调用方填入）
//
// 随机抽取统一实现为洗牌后取前缀，传入确定性的随机源即可复现
func AssignRoles(players []string, mode string, spyCount int, rng *rand.Rand) (*dto.RoleData, error) {
	if len(players) < dto.MIN_PLAYERS {
		return nil, ErrTooFewPlayers
	}
	if len(players) > dto.MAX_PLAYERS {
		return nil, ErrTooManyPlayers
	}

	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p == "" {
			return nil, errors.New("玩家名不能为空")
		}
		if seen[p] {
			return nil, fmt.Errorf("玩家名重复: %s", p)
		}
		seen[p] = true
	}

	shuffled := shuffledCopy(players, rng)

	roleData := &dto.RoleData{
		RoleMap: make(map[string]string, len(players)),
	}

	// 先全部置为 agent，再按模式覆盖特殊身份
	for _, p := range players {
		roleData.RoleMap[p] = dto.ROLE_AGENT
	}

	switch mode {
	case dto.MODE_CLASSIC:
		spy := shuffled[0]
		roleData.Spies = []string{spy}
		roleData.RoleMap[spy] = dto.ROLE_SPY

	case dto.MODE_MULTISPY:
		// 宁可大声失败也不要悄悄压缩成 1 个卧底
		if spyCount < 1 || spyCount > len(players)/2 {
			return nil, ErrBadSpyCount
		}

		roleData.Spies = append([]string{}, shuffled[:spyCount]...)
		for _, spy := range roleData.Spies {
			roleData.RoleMap[spy] = dto.ROLE_SPY
		}

	case dto.MODE_DOUBLE_AGENT:
		spy := shuffled[0]
		da := shuffled[1]

		roleData.Spies = []string{spy}
		roleData.DoubleAgent = da
		roleData.RoleMap[spy] = dto.ROLE_SPY
		roleData.RoleMap[da] = dto.ROLE_DOUBLE_AGENT

	case dto.MODE_ASSASSIN:
		// 刺客在胜负判定上等同卧底，能力机制由前端呈现
		assassin := shuffled[0]
		roleData.Spies = []string{assassin}
		roleData.RoleMap[assassin] = dto.ROLE_ASSASSIN

	case dto.MODE_CHAOS:
		spy := shuffled[0]
		roleData.Spies = []string{spy}
		roleData.RoleMap[spy] = dto.ROLE_SPY

		next := 1

		// 双面间谍和白板各自独立掷骰，且都要求分配后
		// 至少还剩 2 名普通玩家
		if rng.Float64() < chaosDoubleAgentChance && len(shuffled)-next >= 2 {
			roleData.DoubleAgent = shuffled[next]
			roleData.RoleMap[shuffled[next]] = dto.ROLE_DOUBLE_AGENT
			next++
		}

		if rng.Float64() < chaosInnocentChance && len(shuffled)-next >= 2 {
			roleData.Innocent = shuffled[next]
			roleData.RoleMap[shuffled[next]] = dto.ROLE_INNOCENT
			next++
		}

	default:
		return nil, ErrUnknownMode
	}

	return roleData, nil
}

// shuffledCopy 返回玩家列表的 Fisher–Yates 洗牌副本，不修改原切片
func shuffledCopy(players []string, rng *rand.Rand) []string {
	shuffled := append([]string{}, players...)

	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled
}

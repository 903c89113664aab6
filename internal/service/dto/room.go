package dto

// 游戏阶段，房间文档的 phase 字段是所有客户端渲染的唯一依据
const (
	PHASE_LOBBY    = "LOBBY"
	PHASE_REVEAL   = "REVEAL"
	PHASE_PLAYING  = "PLAYING"
	PHASE_VOTING   = "VOTING"
	PHASE_EJECTION = "EJECTION"
	PHASE_RESULTS  = "RESULTS"
)

// 游戏模式
const (
	MODE_CLASSIC      = "classic"
	MODE_MULTISPY     = "multispy"
	MODE_DOUBLE_AGENT = "doubleagent"
	MODE_ASSASSIN     = "assassin"
	MODE_CHAOS        = "chaos"
)

// 玩家身份
const (
	ROLE_AGENT        = "agent"
	ROLE_SPY          = "spy"
	ROLE_ASSASSIN     = "assassin"
	ROLE_DOUBLE_AGENT = "doubleagent"
	ROLE_HEALER       = "healer"
	ROLE_INNOCENT     = "innocent"
)

// 弃票哨兵，也用于 lastEjected 表示本轮无人出局
const VOTE_SKIP = "SKIP"

// 胜利方
const (
	WINNER_SPY    = "SPY"
	WINNER_AGENTS = "AGENTS"
)

// 房间人数限制
const (
	MIN_PLAYERS = 3
	MAX_PLAYERS = 16
)

// RoundConfig 是每一局的设置，由房主在大厅中选择
type RoundConfig struct {
	Topic        string `json:"topic"`
	TimerSeconds int    `json:"timerSeconds"`
}

// RoleData 是每一局分配一次的秘密数据
// RoleMap 覆盖每个玩家恰好一次
type RoleData struct {
	Word        string            `json:"word"`
	Spies       []string          `json:"spies"`
	DoubleAgent string            `json:"doubleAgent,omitempty"`
	Healer      string            `json:"healer,omitempty"`
	Innocent    string            `json:"innocent,omitempty"`
	RoleMap     map[string]string `json:"roleMap"`
}

// ChatMessage 是追加写入的聊天记录，核心状态机不读取它
type ChatMessage struct {
	Player    string `json:"player"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Room 是一局游戏会话的共享文档，存储在外部文档存储中
// 以房间码为键，所有客户端通过订阅观察同一份文档
type Room struct {
	Code    string   `json:"code"`
	Host    string   `json:"host"`
	Players []string `json:"players"`

	Phase string `json:"phase"`
	// 阶段推进的乐观并发令牌，所有修改 phase 的写入
	// 必须带上读到的版本做条件提交
	PhaseVersion int64 `json:"phaseVersion"`

	GameMode    string      `json:"gameMode"`
	SpyCount    int         `json:"spyCount"`
	RoundConfig RoundConfig `json:"roundConfig"`

	RoleData     *RoleData         `json:"roleData,omitempty"`
	PlayersReady map[string]bool   `json:"playersReady,omitempty"`
	Votes        map[string]string `json:"votes,omitempty"`
	Ejected      map[string]bool   `json:"ejected,omitempty"`
	LastEjected  string            `json:"lastEjected,omitempty"`
	Winner       string            `json:"winner,omitempty"`

	Messages map[string]ChatMessage `json:"messages,omitempty"`

	// 最近用过的词，跨局保留，上限 20 条
	WordHistory []string `json:"wordHistory,omitempty"`

	CreatedAt int64 `json:"createdAt"`
}

// IsSpyRole 判断某个身份是否计入卧底方
func IsSpyRole(role string) bool {
	return role == ROLE_SPY || role == ROLE_ASSASSIN
}

// HasPlayer 按名字精确匹配（区分大小写）
func (r *Room) HasPlayer(name string) bool {
	for _, p := range r.Players {
		if p == name {
			return true
		}
	}

	return false
}

// IsEjected 判断玩家是否已出局
func (r *Room) IsEjected(name string) bool {
	return r.Ejected[name]
}

// ActivePlayers 返回未出局的玩家，保持 players 的顺序
func (r *Room) ActivePlayers() []string {
	active := make([]string, 0, len(r.Players))

	for _, p := range r.Players {
		if !r.Ejected[p] {
			active = append(active, p)
		}
	}

	return active
}

// Authority 返回权威客户端的名字，约定为玩家列表的第一位
// 只有权威客户端会提交阶段推进的写入
func (r *Room) Authority() string {
	if len(r.Players) == 0 {
		return ""
	}

	return r.Players[0]
}

package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"midnight-be/internal/service/dto"
	"midnight-be/internal/service/game"
	"midnight-be/internal/store"
)

func newTestService(t *testing.T) (*RoomService, *store.MemoryStore) {
	t.Helper()

	ms := store.NewMemoryStore()
	t.Cleanup(func() { ms.Close() })

	rng := rand.New(rand.NewPCG(1, 2))

	return NewRoomService(ms, nil, rng), ms
}

func classicSettings() dto.StartGameSettings {
	return dto.StartGameSettings{
		GameMode:     dto.MODE_CLASSIC,
		SpyCount:     1,
		Topic:        "Places",
		TimerSeconds: 300,
	}
}

func TestCreateRoom(t *testing.T) {
	rs, _ := newTestService(t)

	code, err := rs.CreateRoom("Ana")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	if len(code) != 6 {
		t.Fatalf("room code should be 6 chars, got %q", code)
	}
	for _, c := range code {
		if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", c) {
			t.Fatalf("room code %q contains ambiguous char %q", code, c)
		}
	}

	room, exists, err := rs.ReadRoom(code)
	if err != nil || !exists {
		t.Fatalf("room doc missing after create: %v", err)
	}

	if room.Host != "Ana" {
		t.Fatalf("want host Ana, got %q", room.Host)
	}
	if len(room.Players) != 1 || room.Players[0] != "Ana" {
		t.Fatalf("host should be the first player: %v", room.Players)
	}
	if room.Phase != dto.PHASE_LOBBY {
		t.Fatalf("new room should start in LOBBY, got %q", room.Phase)
	}
	if room.Authority() != "Ana" {
		t.Fatalf("host should be the authority in a fresh room")
	}
}

func TestCreateRoom_EmptyHost(t *testing.T) {
	rs, _ := newTestService(t)

	if _, err := rs.CreateRoom("   "); err == nil {
		t.Fatalf("blank host name should be rejected")
	}
}

func TestJoinRoom(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")

	if err := rs.JoinRoom(code, "Bo"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := rs.JoinRoom(code, "Bo"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate name should be rejected, got %v", err)
	}

	if err := rs.JoinRoom("ZZZZZZ", "Cy"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("unknown code should be not-found, got %v", err)
	}

	room, _, _ := rs.ReadRoom(code)
	if len(room.Players) != 2 || room.Players[1] != "Bo" {
		t.Fatalf("joiner should append to the player list: %v", room.Players)
	}
}

func TestJoinRoom_ClosedAfterStart(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")
	rs.JoinRoom(code, "Cy")

	if err := rs.StartGame(context.Background(), code, "Ana", classicSettings()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := rs.JoinRoom(code, "Dee"); !errors.Is(err, ErrRoomNotJoinable) {
		t.Fatalf("join after start should be rejected, got %v", err)
	}
}

func TestJoinRoom_Full(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("P00")
	for i := 1; i < dto.MAX_PLAYERS; i++ {
		if err := rs.JoinRoom(code, string(rune('A'+i))); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	if err := rs.JoinRoom(code, "Overflow"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("16th extra join should be rejected, got %v", err)
	}
}

func TestLeaveRoom_MemberLeaves(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")
	rs.JoinRoom(code, "Cy")

	if err := rs.LeaveRoom(code, "Bo"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	room, exists, _ := rs.ReadRoom(code)
	if !exists {
		t.Fatalf("room should survive a member leaving")
	}
	if room.HasPlayer("Bo") {
		t.Fatalf("Bo still in the player list: %v", room.Players)
	}
}

func TestLeaveRoom_HostDeletesRoom(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")

	if err := rs.LeaveRoom(code, "Ana"); err != nil {
		t.Fatalf("host leave failed: %v", err)
	}

	if _, exists, _ := rs.ReadRoom(code); exists {
		t.Fatalf("host leaving should delete the room")
	}
}

func TestLeaveRoom_RetractsBallot(t *testing.T) {
	rs, _ := newTestService(t)

	code := startedVotingRoom(t, rs)

	if err := rs.SubmitVote(code, "Bo", dto.VOTE_SKIP); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	if err := rs.LeaveRoom(code, "Bo"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	room, _, _ := rs.ReadRoom(code)
	if _, ok := room.Votes["Bo"]; ok {
		t.Fatalf("leaver's ballot should be retracted: %v", room.Votes)
	}
}

func TestStartGame_Checks(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")

	ctx := context.Background()

	if err := rs.StartGame(ctx, code, "Ana", classicSettings()); !errors.Is(err, game.ErrTooFewPlayers) {
		t.Fatalf("2 players should be too few, got %v", err)
	}

	rs.JoinRoom(code, "Cy")

	if err := rs.StartGame(ctx, code, "Bo", classicSettings()); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start should be rejected, got %v", err)
	}

	if err := rs.StartGame(ctx, code, "Ana", classicSettings()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := rs.StartGame(ctx, code, "Ana", classicSettings()); !errors.Is(err, ErrBadPhase) {
		t.Fatalf("double start should be rejected, got %v", err)
	}
}

func TestStartGame_WritesRound(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")
	rs.JoinRoom(code, "Cy")

	settings := classicSettings()
	settings.CustomWords = []string{"Lighthouse"}

	if err := rs.StartGame(context.Background(), code, "Ana", settings); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	room, _, _ := rs.ReadRoom(code)

	if room.Phase != dto.PHASE_REVEAL {
		t.Fatalf("want REVEAL, got %q", room.Phase)
	}
	if room.PhaseVersion != 1 {
		t.Fatalf("start should bump phase version to 1, got %d", room.PhaseVersion)
	}
	if room.RoleData == nil || room.RoleData.Word != "Lighthouse" {
		t.Fatalf("round word not written: %+v", room.RoleData)
	}
	if len(room.RoleData.Spies) != 1 {
		t.Fatalf("classic round wants 1 spy, got %+v", room.RoleData.Spies)
	}
	if len(room.WordHistory) != 1 || room.WordHistory[0] != "Lighthouse" {
		t.Fatalf("word history not updated: %v", room.WordHistory)
	}
}

func TestStartGame_CustomTopicWithoutGenerator(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")
	rs.JoinRoom(code, "Cy")

	settings := classicSettings()
	settings.Topic = "Deep Sea Creatures"

	if err := rs.StartGame(context.Background(), code, "Ana", settings); err == nil {
		t.Fatalf("custom topic without a generator should fail the start")
	}

	room, _, _ := rs.ReadRoom(code)
	if room.Phase != dto.PHASE_LOBBY {
		t.Fatalf("failed start must not leave the lobby, got %q", room.Phase)
	}
}

func TestSubmitVote_Rules(t *testing.T) {
	rs, _ := newTestService(t)

	code := startedVotingRoom(t, rs)

	if err := rs.SubmitVote(code, "Ana", "Bo"); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	if err := rs.SubmitVote(code, "Ana", "Cy"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("second ballot should be rejected, got %v", err)
	}

	if err := rs.SubmitVote(code, "Ghost", "Bo"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("outsider's ballot should be rejected, got %v", err)
	}

	if err := rs.SubmitVote(code, "Bo", "Ghost"); err == nil {
		t.Fatalf("ballot for a non-player should be rejected")
	}
}

func TestAdvancePhase_Guards(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")
	rs.JoinRoom(code, "Bo")
	rs.JoinRoom(code, "Cy")

	if err := rs.AdvancePhase(code, dto.PHASE_LOBBY, 0, dto.PHASE_VOTING); err == nil {
		t.Fatalf("illegal edge should be rejected before any write")
	}

	if err := rs.AdvancePhase(code, dto.PHASE_LOBBY, 0, dto.PHASE_REVEAL); err != nil {
		t.Fatalf("legal advance failed: %v", err)
	}

	// 带着旧版本的重复提交输掉竞争
	err := rs.AdvancePhase(code, dto.PHASE_LOBBY, 0, dto.PHASE_REVEAL)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale advance should conflict, got %v", err)
	}

	room, _, _ := rs.ReadRoom(code)
	if room.Phase != dto.PHASE_REVEAL || room.PhaseVersion != 1 {
		t.Fatalf("losing write mutated the room: %q v%d", room.Phase, room.PhaseVersion)
	}
}

func TestSendMessage_AppendsInOrder(t *testing.T) {
	rs, _ := newTestService(t)

	code, _ := rs.CreateRoom("Ana")

	if err := rs.SendMessage(code, "Ana", "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := rs.SendMessage(code, "Ana", "  "); err == nil {
		t.Fatalf("blank message should be rejected")
	}

	room, _, _ := rs.ReadRoom(code)
	if len(room.Messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(room.Messages))
	}

	for _, msg := range room.Messages {
		if msg.Player != "Ana" || msg.Text != "hello" {
			t.Fatalf("message corrupted: %+v", msg)
		}
	}
}

// startedVotingRoom 搭一个已进入 VOTING 的三人房
func startedVotingRoom(t *testing.T, rs *RoomService) string {
	t.Helper()

	code, err := rs.CreateRoom("Ana")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, p := range []string{"Bo", "Cy"} {
		if err := rs.JoinRoom(code, p); err != nil {
			t.Fatalf("join %s failed: %v", p, err)
		}
	}

	settings := classicSettings()
	settings.CustomWords = []string{"Lighthouse"}

	if err := rs.StartGame(context.Background(), code, "Ana", settings); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for _, p := range []string{"Ana", "Bo", "Cy"} {
		if err := rs.MarkReady(code, p); err != nil {
			t.Fatalf("ready %s failed: %v", p, err)
		}
	}

	room, _, _ := rs.ReadRoom(code)
	if err := rs.AdvancePhase(code, dto.PHASE_REVEAL, room.PhaseVersion, dto.PHASE_PLAYING); err != nil {
		t.Fatalf("advance to PLAYING failed: %v", err)
	}

	if err := rs.RequestVote(code, "Bo"); err != nil {
		t.Fatalf("request vote failed: %v", err)
	}

	room, _, _ = rs.ReadRoom(code)
	if room.Phase != dto.PHASE_VOTING {
		t.Fatalf("room should be in VOTING, got %q", room.Phase)
	}

	return code
}

// 完整的一局：三人经典局，两名特工合力把卧底投出去
func TestClassicRound_EndToEnd(t *testing.T) {
	rs, _ := newTestService(t)

	code := startedVotingRoom(t, rs)

	room, _, _ := rs.ReadRoom(code)
	spy := room.RoleData.Spies[0]

	agents := make([]string, 0, 2)
	for _, p := range room.Players {
		if p != spy {
			agents = append(agents, p)
		}
	}

	// 特工们票卧底，卧底反咬一名特工
	for _, agent := range agents {
		if err := rs.SubmitVote(code, agent, spy); err != nil {
			t.Fatalf("vote by %s failed: %v", agent, err)
		}
	}
	if err := rs.SubmitVote(code, spy, agents[0]); err != nil {
		t.Fatalf("spy vote failed: %v", err)
	}

	// 权威客户端对完整的票箱做归约
	room, _, _ = rs.ReadRoom(code)
	coord := game.NewCoordinator(room.Authority())

	effects := coord.Step(room)
	if len(effects) != 2 {
		t.Fatalf("full ballot box should eject and advance, got %v", effects)
	}

	for _, effect := range effects {
		applyTestEffect(t, rs, code, effect)
	}

	room, _, _ = rs.ReadRoom(code)
	if room.Phase != dto.PHASE_EJECTION {
		t.Fatalf("want EJECTION, got %q", room.Phase)
	}
	if !room.IsEjected(spy) || room.LastEjected != spy {
		t.Fatalf("spy should be ejected: ejected=%v last=%q", room.Ejected, room.LastEjected)
	}

	// 展示延时结束后的终局判定
	for _, effect := range coord.JudgeEjection(room) {
		applyTestEffect(t, rs, code, effect)
	}

	room, _, _ = rs.ReadRoom(code)
	if room.Phase != dto.PHASE_RESULTS {
		t.Fatalf("want RESULTS, got %q", room.Phase)
	}
	if room.Winner != dto.WINNER_AGENTS {
		t.Fatalf("agents should win, got %q", room.Winner)
	}

	// Play Again：玩家和用词历史保留，其余清空
	if err := rs.ResetRoom(code); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	room, _, _ = rs.ReadRoom(code)
	if room.Phase != dto.PHASE_LOBBY {
		t.Fatalf("reset should return to LOBBY, got %q", room.Phase)
	}
	if len(room.Players) != 3 {
		t.Fatalf("reset should keep the players: %v", room.Players)
	}
	if len(room.WordHistory) != 1 {
		t.Fatalf("reset should keep the word history: %v", room.WordHistory)
	}
	if room.RoleData != nil || room.Winner != "" || len(room.Votes) != 0 || len(room.Ejected) != 0 {
		t.Fatalf("round state should be cleared on reset")
	}
}

func applyTestEffect(t *testing.T, rs *RoomService, code string, effect game.Effect) {
	t.Helper()

	var err error

	switch e := effect.(type) {
	case game.AdvancePhase:
		err = rs.AdvancePhase(code, e.From, e.FromVersion, e.To)
	case game.Eject:
		err = rs.Eject(code, e.Target)
	case game.SetWinner:
		err = rs.SetWinner(code, e.Winner)
	case game.ClearVotes:
		err = rs.ClearVotes(code)
	default:
		t.Fatalf("unexpected effect %T", effect)
	}

	if err != nil {
		t.Fatalf("applying %T failed: %v", effect, err)
	}
}

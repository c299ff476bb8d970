package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mafia-arena-be/internal/service/dto"
	"mafia-arena-be/internal/service/game"
)

// scriptedPool drives agents with a deterministic policy so orchestrated
// games finish quickly: the town always piles onto the mafia.
type scriptedPool struct {
	ids map[string]bool
}

func newScriptedPool(specs []AgentSpec) AgentPool {
	ids := make(map[string]bool, len(specs))
	for _, spec := range specs {
		ids[spec.PlayerID] = true
	}

	return &scriptedPool{ids: ids}
}

func (p *scriptedPool) Has(playerID string) bool {
	return p.ids[playerID]
}

func (p *scriptedPool) RequestAction(
	_ context.Context,
	gs *game.GameState,
	playerID string,
	_ string,
) (game.Action, error) {
	player := gs.Players[playerID]

	switch gs.CurrentPhase {
	case game.PHASE_NIGHT:
		switch player.Role {
		case game.ROLE_MAFIA:
			for _, target := range gs.AlivePlayers() {
				if target.Role == game.ROLE_VILLAGER {
					return game.NightAction{
						PlayerID:  playerID,
						NightType: game.NIGHT_KILL,
						TargetID:  target.ID,
					}, nil
				}
			}
		case game.ROLE_DETECTIVE:
			for _, target := range gs.AlivePlayers() {
				if target.ID != playerID {
					return game.NightAction{
						PlayerID:  playerID,
						NightType: game.NIGHT_INVESTIGATE,
						TargetID:  target.ID,
					}, nil
				}
			}
		case game.ROLE_DOCTOR:
			return game.NightAction{
				PlayerID:  playerID,
				NightType: game.NIGHT_SAVE,
				TargetID:  playerID,
			}, nil
		}

		return nil, nil

	case game.PHASE_DAY_DISCUSSION, game.PHASE_DAY_DEFENSE:
		return game.SpeakAction{PlayerID: playerID, Message: "hmm"}, nil

	case game.PHASE_DAY_NOMINATION:
		var mafiaID, otherID string

		for _, target := range gs.AlivePlayers() {
			if target.Role == game.ROLE_MAFIA {
				mafiaID = target.ID
			} else if target.ID != playerID {
				otherID = target.ID
			}
		}

		if player.Role == game.ROLE_MAFIA {
			return game.NominateAction{PlayerID: playerID, TargetID: otherID}, nil
		}

		return game.NominateAction{PlayerID: playerID, TargetID: mafiaID}, nil

	case game.PHASE_DAY_JUDGMENT:
		verdict := game.VERDICT_GUILTY
		if player.Role == game.ROLE_MAFIA {
			verdict = game.VERDICT_INNOCENT
		}

		return game.JudgmentVoteAction{PlayerID: playerID, Verdict: verdict}, nil
	}

	return nil, nil
}

func (p *scriptedPool) SummarizeDay(_ context.Context, _ *game.GameState, day int) (string, error) {
	return fmt.Sprintf("day %d recap", day), nil
}

func (p *scriptedPool) UpdateMemories(_ context.Context, _ *game.GameState, _ int) {}

func newTestService(t *testing.T) *GameService {
	t.Helper()

	svc := NewGameService(game.DefaultRules(), time.Second, time.Hour, newScriptedPool)
	t.Cleanup(svc.Close)

	return svc
}

func fourModelGame(t *testing.T, svc *GameService, humanName string) dto.CreateGameResponse {
	t.Helper()

	resp, err := svc.CreateGame(dto.CreateGameRequest{
		PlayerCount:     4,
		HumanPlayerName: humanName,
		Models: []dto.ModelConfig{
			{ModelName: "test/model-a"},
			{ModelName: "test/model-b"},
		},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	return resp
}

func TestCreateGame_Validation(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateGame(dto.CreateGameRequest{PlayerCount: 3}); err == nil {
		t.Fatalf("fewer than four players should be rejected")
	}

	if _, err := svc.CreateGame(dto.CreateGameRequest{PlayerCount: 8}); err == nil {
		t.Fatalf("a game with neither models nor a human should be rejected")
	}
}

func TestCreateGame_RevealsRolesToCreator(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	if len(resp.Players) != 4 {
		t.Fatalf("want 4 players, got %d", len(resp.Players))
	}

	mafia := 0
	for _, p := range resp.Players {
		if p.Role == "" || p.Team == "" {
			t.Fatalf("create response should reveal all roles, got %+v", p)
		}

		if p.Role == game.ROLE_MAFIA {
			mafia++
		}
	}

	if mafia != 1 {
		t.Fatalf("four player game should have one mafioso, got %d", mafia)
	}

	if !resp.Players[0].IsHuman || resp.Players[0].Name != "Alice" {
		t.Fatalf("human should take the first seat, got %+v", resp.Players[0])
	}
}

func TestSubmitAction_ValidatesBeforeQueueing(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	// The game starts at night; speaking is out of phase.
	result, err := svc.SubmitAction(resp.GameID, dto.SubmitActionRequest{
		PlayerID:   resp.Players[0].PlayerID,
		ActionType: game.ACTION_SPEAK,
		Message:    "hello?",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Accepted || result.Reason == "" {
		t.Fatalf("out-of-phase action should be rejected with a reason, got %+v", result)
	}

	inst, err := svc.instance(resp.GameID)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if len(inst.pending) != 0 {
		t.Fatalf("rejected action must not be queued, got %v", inst.pending)
	}
}

func TestSubmitAction_LastWriterWins(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	humanID := resp.Players[0].PlayerID

	inst, err := svc.instance(resp.GameID)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}

	// Give the human a night role so both submissions are valid.
	inst.mu.Lock()
	human := inst.gs.Players[humanID]
	human.Role = game.ROLE_MAFIA
	human.Team = game.TeamForRole(game.ROLE_MAFIA)

	var targets []string
	for _, p := range inst.gs.AlivePlayers() {
		if p.ID != humanID {
			p.Role = game.ROLE_VILLAGER
			p.Team = game.TeamForRole(game.ROLE_VILLAGER)
			targets = append(targets, p.ID)
		}
	}
	inst.mu.Unlock()

	for _, targetID := range targets[:2] {
		result, err := svc.SubmitAction(resp.GameID, dto.SubmitActionRequest{
			PlayerID:        humanID,
			ActionType:      game.ACTION_NIGHT,
			NightActionType: game.NIGHT_KILL,
			TargetID:        targetID,
		})
		if err != nil || !result.Accepted {
			t.Fatalf("submit kill on %s: err=%v result=%+v", targetID, err, result)
		}
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if len(inst.pending) != 1 {
		t.Fatalf("mailbox holds one slot per player, got %d", len(inst.pending))
	}

	night, ok := inst.pending[humanID].(game.NightAction)
	if !ok {
		t.Fatalf("queued action has wrong type: %T", inst.pending[humanID])
	}

	if night.TargetID != targets[1] {
		t.Fatalf("later submission should overwrite, want target %s got %s",
			targets[1], night.TargetID)
	}
}

func TestSnapshot_HidesRolesFromHumanViewer(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	humanID := resp.Players[0].PlayerID

	view, err := svc.Snapshot(resp.GameID, humanID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	for _, p := range view.Players {
		if p.PlayerID == humanID {
			if p.Role == "" || p.Team == "" {
				t.Fatalf("viewer should see their own role, got %+v", p)
			}

			continue
		}

		if p.Role != "" || p.Team != "" {
			t.Fatalf("other alive players must stay hidden, got %+v", p)
		}
	}
}

func TestSnapshot_RevealsDeadPlayers(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	inst, err := svc.instance(resp.GameID)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}

	deadID := resp.Players[2].PlayerID

	inst.mu.Lock()
	inst.gs.Players[deadID].IsAlive = false
	inst.mu.Unlock()

	view, err := svc.Snapshot(resp.GameID, "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	for _, p := range view.Players {
		if p.PlayerID == deadID {
			if p.Role == "" || p.Team == "" {
				t.Fatalf("dead players are public, got %+v", p)
			}
		} else if p.Role != "" {
			t.Fatalf("alive player leaked to anonymous viewer: %+v", p)
		}
	}
}

func TestEvents_NightActionsOnlyVisibleToActor(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	inst, err := svc.instance(resp.GameID)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}

	inst.mu.Lock()
	inst.gs.Events.Add(game.EVENT_NIGHT_ACTION, game.PHASE_NIGHT, 1, "actor-1", "victim-1", map[string]any{
		"action_type": game.NIGHT_INVESTIGATE,
		"result":      true,
	})
	inst.gs.Events.Add(game.EVENT_SPEAK, game.PHASE_DAY_DISCUSSION, 1, "actor-2", "", nil)
	inst.mu.Unlock()

	asActor, err := svc.Events(resp.GameID, "actor-1", 0, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	asOther, err := svc.Events(resp.GameID, "actor-2", 0, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	countNight := func(events []game.GameEvent) int {
		n := 0
		for _, ev := range events {
			if ev.Type == game.EVENT_NIGHT_ACTION {
				n++
			}
		}
		return n
	}

	if countNight(asActor) != 1 {
		t.Fatalf("actor should see their own night action")
	}

	if countNight(asOther) != 0 {
		t.Fatalf("night actions must not leak to other viewers")
	}
}

func TestJoinGame_TakesOverSeatBeforeStart(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.CreateGame(dto.CreateGameRequest{
		PlayerCount: 4,
		Models:      []dto.ModelConfig{{ModelName: "test/model-a"}},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	joined, err := svc.JoinGame(resp.GameID, "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if joined.Role == "" {
		t.Fatalf("join response should reveal the joiner's role")
	}

	view, err := svc.Snapshot(resp.GameID, joined.PlayerID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	found := false
	for _, p := range view.Players {
		if p.PlayerID == joined.PlayerID {
			found = true

			if !p.IsHuman || p.Name != "Bob" {
				t.Fatalf("seat not taken over: %+v", p)
			}
		}
	}

	if !found {
		t.Fatalf("joined player missing from snapshot")
	}

	if err := svc.StartGame(resp.GameID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.JoinGame(resp.GameID, "Carol"); err == nil {
		t.Fatalf("joining after start should be rejected")
	}
}

// capturingPool forwards the scripted policy but also exposes the state
// handed to RequestAction, so tests can check agents get a private snapshot.
type capturingPool struct {
	inner    AgentPool
	captured chan *game.GameState
}

func (p *capturingPool) Has(playerID string) bool {
	return p.inner.Has(playerID)
}

func (p *capturingPool) RequestAction(
	ctx context.Context,
	gs *game.GameState,
	playerID string,
	daySummary string,
) (game.Action, error) {
	select {
	case p.captured <- gs:
	default:
	}

	return p.inner.RequestAction(ctx, gs, playerID, daySummary)
}

func (p *capturingPool) SummarizeDay(ctx context.Context, gs *game.GameState, day int) (string, error) {
	return p.inner.SummarizeDay(ctx, gs, day)
}

func (p *capturingPool) UpdateMemories(ctx context.Context, gs *game.GameState, day int) {
	p.inner.UpdateMemories(ctx, gs, day)
}

func TestOrchestrator_AgentsReceiveSnapshotNotLiveState(t *testing.T) {
	captured := make(chan *game.GameState, 1)

	factory := func(specs []AgentSpec) AgentPool {
		return &capturingPool{inner: newScriptedPool(specs), captured: captured}
	}

	svc := NewGameService(game.DefaultRules(), time.Second, time.Hour, factory)
	t.Cleanup(svc.Close)

	resp, err := svc.CreateGame(dto.CreateGameRequest{
		PlayerCount: 4,
		Models:      []dto.ModelConfig{{ModelName: "test/model-a"}},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	inst, err := svc.instance(resp.GameID)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}

	if err := svc.StartGame(resp.GameID); err != nil {
		t.Fatalf("start: %v", err)
	}

	var snapshot *game.GameState

	select {
	case snapshot = <-captured:
	case <-time.After(5 * time.Second):
		t.Fatalf("agent was never asked for an action")
	}

	if snapshot == inst.gs {
		t.Fatalf("agent got the live state instead of a snapshot")
	}

	// Scribbling on the snapshot must not disturb the running game.
	snapshot.CurrentPhase = "SCRIBBLED"
	for _, p := range snapshot.Players {
		p.IsAlive = false
	}

	inst.mu.Lock()
	phase := inst.gs.CurrentPhase
	alive := len(inst.gs.AlivePlayers())
	inst.mu.Unlock()

	if phase == "SCRIBBLED" {
		t.Fatalf("snapshot write reached the live phase")
	}

	if alive == 0 {
		t.Fatalf("snapshot write killed live players")
	}
}

func TestSubscribe_ChannelClosesOnServiceClose(t *testing.T) {
	svc := newTestService(t)
	resp := fourModelGame(t, svc, "Alice")

	eventCh, cancel, err := svc.Subscribe(resp.GameID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	svc.Close()

	deadline := time.After(time.Second)

	for {
		select {
		case _, ok := <-eventCh:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("subscriber channel should close when the service shuts down")
		}
	}
}

func TestOrchestrator_RunsFullGameToCompletion(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.CreateGame(dto.CreateGameRequest{
		PlayerCount: 4,
		Models: []dto.ModelConfig{
			{ModelName: "test/model-a"},
			{ModelName: "test/model-b"},
		},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	eventCh, cancel, err := svc.Subscribe(resp.GameID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := svc.StartGame(resp.GameID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.StartGame(resp.GameID); err == nil {
		t.Fatalf("double start should be rejected")
	}

	deadline := time.After(15 * time.Second)

	var view dto.GameStateView

	for {
		select {
		case <-deadline:
			t.Fatalf("game did not finish in time, last phase %s day %d", view.Phase, view.Day)
		case <-time.After(100 * time.Millisecond):
		}

		view, err = svc.Snapshot(resp.GameID, "")
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}

		if view.IsComplete {
			break
		}
	}

	// The scripted town nominates and convicts the single mafioso, so the
	// town wins on the first day.
	if view.Winner != game.TEAM_TOWN {
		t.Fatalf("scripted game should end in a town win, got %q", view.Winner)
	}

	if view.Phase != game.PHASE_GAME_END {
		t.Fatalf("want GAME_END, got %s", view.Phase)
	}

	events, err := svc.Events(resp.GameID, "", 0, game.EVENT_ELIMINATE)
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("want one elimination, got %d", len(events))
	}

	if role := events[0].Data["role"]; role != game.ROLE_MAFIA {
		t.Fatalf("the executed player should be the mafioso, got %v", role)
	}

	// The live feed saw at least the phase changes of a full day cycle.
	received := 0

	for {
		select {
		case <-eventCh:
			received++
			continue
		default:
		}

		break
	}

	if received == 0 {
		t.Fatalf("subscriber should have received events")
	}
}

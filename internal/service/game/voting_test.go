package game

import (
	"testing"
)

func legacyVoteGame(t *testing.T) *GameState {
	t.Helper()

	gs := newTestGame(t,
		ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER, ROLE_VILLAGER, ROLE_VILLAGER,
	)
	ResolveNight(gs)

	if err := StartLegacyVote(gs, "p1", "p2"); err != nil {
		t.Fatalf("start legacy vote: %v", err)
	}

	return gs
}

func TestStartLegacyVote_Validation(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER)
	ResolveNight(gs)
	gs.Players["p3"].IsAlive = false

	if err := StartLegacyVote(gs, "p1", "p1"); err == nil {
		t.Fatalf("identical nominees should be rejected")
	}

	if err := StartLegacyVote(gs, "p1", "p3"); err == nil {
		t.Fatalf("dead nominee should be rejected")
	}

	if err := StartLegacyVote(gs, "p1", "p2"); err != nil {
		t.Fatalf("valid vote should start: %v", err)
	}

	if err := StartLegacyVote(gs, "p1", "p2"); err == nil {
		t.Fatalf("second concurrent vote should be rejected")
	}

	if gs.CurrentPhase != PHASE_DAY_VOTING {
		t.Fatalf("want voting phase, got %s", gs.CurrentPhase)
	}
}

func TestLegacyVote_MajorityEliminates(t *testing.T) {
	gs := legacyVoteGame(t)

	submit(t, gs, VoteAction{PlayerID: "p1", NomineeID: "p2"})
	submit(t, gs, VoteAction{PlayerID: "p2", NomineeID: "p1"})
	submit(t, gs, VoteAction{PlayerID: "p3", NomineeID: "p1"})
	submit(t, gs, VoteAction{PlayerID: "p4", NomineeID: "p1"})
	submit(t, gs, VoteAction{PlayerID: "p5", NomineeID: "p1"})

	if gs.Players["p1"].IsAlive {
		t.Fatalf("majority nominee should be eliminated")
	}

	// Killing the only mafioso ends the game immediately.
	if !gs.IsComplete || gs.Winner != TEAM_TOWN {
		t.Fatalf("want town win, got complete=%v winner=%q", gs.IsComplete, gs.Winner)
	}
}

func TestLegacyVote_TieEliminatesNobody(t *testing.T) {
	gs := legacyVoteGame(t)

	// Four voters split 2-2.
	gs.Players["p5"].IsAlive = false

	submit(t, gs, VoteAction{PlayerID: "p1", NomineeID: "p2"})
	submit(t, gs, VoteAction{PlayerID: "p2", NomineeID: "p1"})
	submit(t, gs, VoteAction{PlayerID: "p3", NomineeID: "p1"})
	submit(t, gs, VoteAction{PlayerID: "p4", NomineeID: "p2"})

	if !gs.Players["p1"].IsAlive || !gs.Players["p2"].IsAlive {
		t.Fatalf("tie must not eliminate anyone")
	}

	if gs.Voting != nil {
		t.Fatalf("voting state should be cleared after resolution")
	}

	// The day still ends after a tied vote.
	if gs.CurrentPhase != PHASE_NIGHT || gs.Day != 2 {
		t.Fatalf("want NIGHT day 2, got %s day %d", gs.CurrentPhase, gs.Day)
	}
}

func TestLegacyVote_RejectsOutsiderNominee(t *testing.T) {
	gs := legacyVoteGame(t)

	vote := VoteAction{PlayerID: "p3", NomineeID: "p4"}

	if ok, reason := vote.Validate(gs); ok || reason != "Can only vote for one of the two nominees" {
		t.Fatalf("vote for non-nominee should be rejected, got ok=%v reason=%q", ok, reason)
	}

	dup := VoteAction{PlayerID: "p3", NomineeID: "p1"}
	submit(t, gs, dup)

	if ok, reason := dup.Validate(gs); ok || reason != "Already voted" {
		t.Fatalf("double vote should be rejected, got ok=%v reason=%q", ok, reason)
	}
}

package game

import (
	"testing"
)

func TestSpeakAction_EnforcesTurnOrder(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_DISCUSSION

	action := SpeakAction{PlayerID: "p2", Message: "I suspect p1"}

	if ok, reason := action.Validate(gs); ok || reason != "Not your turn to speak" {
		t.Fatalf("out-of-turn speech should be rejected, got ok=%v reason=%q", ok, reason)
	}

	action = SpeakAction{PlayerID: "p1", Message: "good morning"}

	if ok, reason := action.Validate(gs); !ok {
		t.Fatalf("in-turn speech should pass, got %q", reason)
	}
}

func TestSpeakAction_RejectsEmptyMessage(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_DISCUSSION

	action := SpeakAction{PlayerID: "p1", Message: "   "}

	if ok, reason := action.Validate(gs); ok || reason != "Message cannot be empty" {
		t.Fatalf("blank message should be rejected, got ok=%v reason=%q", ok, reason)
	}
}

func TestActions_DeadPlayersCannotAct(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER)
	gs.Players["p2"].IsAlive = false

	gs.CurrentPhase = PHASE_DAY_NOMINATION

	nominate := NominateAction{PlayerID: "p2", TargetID: "p1"}

	if ok, reason := nominate.Validate(gs); ok || reason != "Dead players cannot act" {
		t.Fatalf("dead nominator should be rejected, got ok=%v reason=%q", ok, reason)
	}

	gs.CurrentPhase = PHASE_NIGHT

	night := NightAction{PlayerID: "p2", NightType: NIGHT_KILL, TargetID: "p1"}

	if ok, reason := night.Validate(gs); ok || reason != "Dead players cannot act" {
		t.Fatalf("dead night actor should be rejected, got ok=%v reason=%q", ok, reason)
	}
}

func TestNominateAction_TargetRules(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_NOMINATION
	gs.Players["p3"].IsAlive = false

	cases := []struct {
		name   string
		action NominateAction
		reason string
	}{
		{"self", NominateAction{PlayerID: "p1", TargetID: "p1"}, "Cannot nominate yourself"},
		{"dead target", NominateAction{PlayerID: "p1", TargetID: "p3"}, "Cannot nominate dead players"},
		{"unknown target", NominateAction{PlayerID: "p1", TargetID: "ghost"}, "Target player not found"},
	}

	for _, tc := range cases {
		if ok, reason := tc.action.Validate(gs); ok || reason != tc.reason {
			t.Fatalf("%s: want rejection %q, got ok=%v reason=%q", tc.name, tc.reason, ok, reason)
		}
	}
}

func TestNightAction_RoleGates(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_DOCTOR, ROLE_DETECTIVE, ROLE_VILLAGER)

	cases := []struct {
		name   string
		action NightAction
		ok     bool
		reason string
	}{
		{"mafia kill", NightAction{PlayerID: "p1", NightType: NIGHT_KILL, TargetID: "p4"}, true, ""},
		{"villager kill", NightAction{PlayerID: "p4", NightType: NIGHT_KILL, TargetID: "p1"}, false, "Only Mafia can kill"},
		{"doctor save", NightAction{PlayerID: "p2", NightType: NIGHT_SAVE, TargetID: "p4"}, true, ""},
		{"doctor self save", NightAction{PlayerID: "p2", NightType: NIGHT_SAVE, TargetID: "p2"}, true, ""},
		{"mafia self kill", NightAction{PlayerID: "p1", NightType: NIGHT_KILL, TargetID: "p1"}, false, "Cannot target yourself"},
		{"villager save", NightAction{PlayerID: "p4", NightType: NIGHT_SAVE, TargetID: "p1"}, false, "Only Doctor can save"},
		{"detective investigate", NightAction{PlayerID: "p3", NightType: NIGHT_INVESTIGATE, TargetID: "p1"}, true, ""},
		{"doctor investigate", NightAction{PlayerID: "p2", NightType: NIGHT_INVESTIGATE, TargetID: "p1"}, false, "Only Detective can investigate"},
		{"unknown type", NightAction{PlayerID: "p1", NightType: "HAUNT", TargetID: "p4"}, false, "Unknown night action type"},
	}

	for _, tc := range cases {
		ok, reason := tc.action.Validate(gs)

		if ok != tc.ok || reason != tc.reason {
			t.Fatalf("%s: want ok=%v reason=%q, got ok=%v reason=%q",
				tc.name, tc.ok, tc.reason, ok, reason)
		}
	}
}

func TestNightAction_OnlyAtNight(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_DISCUSSION

	action := NightAction{PlayerID: "p1", NightType: NIGHT_KILL, TargetID: "p2"}

	if ok, _ := action.Validate(gs); ok {
		t.Fatalf("night action outside night phase should be rejected")
	}
}

func TestJudgmentVoteAction_Rules(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_JUDGMENT
	gs.Trial = NewTrialState("p2")
	gs.Trial.Votes["p3"] = true

	cases := []struct {
		name   string
		action JudgmentVoteAction
		ok     bool
		reason string
	}{
		{"valid guilty", JudgmentVoteAction{PlayerID: "p1", Verdict: "GUILTY"}, true, ""},
		{"lowercase verdict", JudgmentVoteAction{PlayerID: "p1", Verdict: "innocent"}, true, ""},
		{"defendant votes", JudgmentVoteAction{PlayerID: "p2", Verdict: "INNOCENT"}, false, "Defendant cannot vote"},
		{"double vote", JudgmentVoteAction{PlayerID: "p3", Verdict: "GUILTY"}, false, "Already voted"},
		{"bad verdict", JudgmentVoteAction{PlayerID: "p1", Verdict: "MAYBE"}, false, "Vote must be GUILTY or INNOCENT"},
	}

	for _, tc := range cases {
		ok, reason := tc.action.Validate(gs)

		if ok != tc.ok || reason != tc.reason {
			t.Fatalf("%s: want ok=%v reason=%q, got ok=%v reason=%q",
				tc.name, tc.ok, tc.reason, ok, reason)
		}
	}
}

func TestJudgmentVoteAction_RequiresTrial(t *testing.T) {
	gs := newTestGame(t, ROLE_MAFIA, ROLE_VILLAGER)
	gs.CurrentPhase = PHASE_DAY_JUDGMENT

	action := JudgmentVoteAction{PlayerID: "p1", Verdict: "GUILTY"}

	if ok, reason := action.Validate(gs); ok || reason != "No trial in progress" {
		t.Fatalf("vote without trial should be rejected, got ok=%v reason=%q", ok, reason)
	}
}

func TestActionFromJSON_DecodesAllVariants(t *testing.T) {
	cases := []struct {
		raw  string
		kind string
	}{
		{`{"player_id":"p1","action_type":"SPEAK","message":"hi"}`, ACTION_SPEAK},
		{`{"player_id":"p1","action_type":"NOMINATE","target_id":"p2"}`, ACTION_NOMINATE},
		{`{"player_id":"p1","action_type":"VOTE","nominee_id":"p2"}`, ACTION_VOTE},
		{`{"player_id":"p1","action_type":"JUDGMENT_VOTE","vote":"GUILTY","reason":"sus"}`, ACTION_JUDGMENT_VOTE},
		{`{"player_id":"p1","action_type":"PASS"}`, ACTION_PASS},
		{`{"player_id":"p1","action_type":"NIGHT_ACTION","night_action_type":"KILL","target_id":"p2"}`, ACTION_NIGHT},
	}

	for _, tc := range cases {
		action, err := ActionFromJSON([]byte(tc.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.kind, err)
		}

		if action.Kind() != tc.kind {
			t.Fatalf("want kind %s got %s", tc.kind, action.Kind())
		}

		if action.Actor() != "p1" {
			t.Fatalf("want actor p1 got %s", action.Actor())
		}
	}
}

func TestActionFromJSON_RejectsUnknownType(t *testing.T) {
	raw := mustMarshal(map[string]any{"player_id": "p1", "action_type": "DANCE"})

	if _, err := ActionFromJSON(raw); err == nil {
		t.Fatalf("unknown action type should fail to decode")
	}
}

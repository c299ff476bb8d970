package llm

import (
	"fmt"
	"strings"

	"mafia-arena-be/internal/service/game"
)

// 提示词全部使用英文，模型对英文指令的服从度更好

const rulesPreamble = `You are playing a social deduction game of Mafia.
Players are secretly split into the MAFIA team and the TOWN team.
Each night the mafia kill one player, the doctor may protect one player,
and the detective may investigate one player. Each day the survivors
discuss, nominate a suspect, hear their defense and vote on their fate.
The town wins when every mafioso is dead. The mafia win when they
reach parity with the town.`

func roleInstructions(p *game.Player) string {
	switch p.Role {
	case game.ROLE_MAFIA:
		return "You are a MAFIA member. Blend in during the day, deflect " +
			"suspicion onto townsfolk and never reveal your teammates. At night, " +
			"choose a victim to kill."
	case game.ROLE_DETECTIVE:
		return "You are the DETECTIVE. Each night you may investigate one " +
			"player and learn whether they are mafia. Use your findings " +
			"carefully: revealing yourself too early makes you a target."
	case game.ROLE_DOCTOR:
		return "You are the DOCTOR. Each night you may protect one player " +
			"(including yourself) from being killed. Keep your role hidden."
	default:
		return "You are a VILLAGER with no special ability. Watch the " +
			"discussion closely and vote out the mafia."
	}
}

// roleKnowledge 返回该玩家的私有情报：
// 黑手党知道全部存活同伙，侦探知道自己历次查验的结果。
// 这些信息只进入本人的提示词，绝不进入共享转录。
func roleKnowledge(gs *game.GameState, p *game.Player) string {
	switch p.Role {
	case game.ROLE_MAFIA:
		teammates := make([]string, 0)

		for _, other := range gs.PlayersInOrder() {
			if other.ID != p.ID && other.Role == game.ROLE_MAFIA && other.IsAlive {
				teammates = append(teammates, fmt.Sprintf("%s (%s)", other.Name, other.ID))
			}
		}

		if len(teammates) == 0 {
			return "You are the last mafia member standing.\n"
		}

		return fmt.Sprintf(
			"Your fellow mafia members: %s. Never target them and never expose them.\n",
			strings.Join(teammates, ", "),
		)

	case game.ROLE_DETECTIVE:
		var b strings.Builder

		for _, ev := range gs.Events.ByType(game.EVENT_NIGHT_ACTION) {
			if ev.PlayerID != p.ID {
				continue
			}

			if ev.Data["action_type"] != game.NIGHT_INVESTIGATE {
				continue
			}

			verdict := "NOT mafia"
			if result, _ := ev.Data["result"].(bool); result {
				verdict = "MAFIA"
			}

			target := ev.TargetID
			if tp, ok := gs.Player(ev.TargetID); ok {
				target = fmt.Sprintf("%s (%s)", tp.Name, tp.ID)
			}

			fmt.Fprintf(&b, "Night %d: %s is %s\n", ev.Day, target, verdict)
		}

		if b.Len() == 0 {
			return ""
		}

		return "Your investigation results so far:\n" + b.String()
	}

	return ""
}

func playerRoster(gs *game.GameState, selfID string) string {
	var b strings.Builder

	for _, p := range gs.PlayersInOrder() {
		status := "alive"
		if !p.IsAlive {
			status = "dead"
		}

		if p.ID == selfID {
			fmt.Fprintf(&b, "- %s (%s) [you, %s]\n", p.Name, p.ID, status)
		} else {
			fmt.Fprintf(&b, "- %s (%s) [%s]\n", p.Name, p.ID, status)
		}
	}

	return b.String()
}

// recentTranscript 返回当天公开事件的文字记录。
// 夜间行动属于私密信息，不进入任何玩家的转录。
func recentTranscript(gs *game.GameState, day int) string {
	var b strings.Builder

	for _, ev := range gs.Events.ByDay(day) {
		if ev.Type == game.EVENT_NIGHT_ACTION {
			continue
		}

		b.WriteString(eventLine(gs, ev))
	}

	if b.Len() == 0 {
		return "(nothing has happened yet today)\n"
	}

	return b.String()
}

func eventLine(gs *game.GameState, ev game.GameEvent) string {
	name := func(id string) string {
		if p, ok := gs.Player(id); ok {
			return p.Name
		}
		return id
	}

	switch ev.Type {
	case game.EVENT_SPEAK:
		msg, _ := ev.Data["message"].(string)
		return fmt.Sprintf("%s said: %q\n", name(ev.PlayerID), msg)
	case game.EVENT_NOMINATE:
		return fmt.Sprintf("%s nominated %s\n", name(ev.PlayerID), name(ev.TargetID))
	case game.EVENT_VOTE:
		if verdict, ok := ev.Data["verdict"].(string); ok {
			return fmt.Sprintf("%s voted %s\n", name(ev.PlayerID), verdict)
		}
		return fmt.Sprintf("%s voted for %s\n", name(ev.PlayerID), name(ev.TargetID))
	case game.EVENT_KILL:
		return fmt.Sprintf("%s was found dead\n", name(ev.TargetID))
	case game.EVENT_ELIMINATE:
		role, _ := ev.Data["role"].(string)
		return fmt.Sprintf("%s was executed, their role was %s\n", name(ev.TargetID), role)
	case game.EVENT_PHASE_CHANGE:
		return fmt.Sprintf("[phase changed to %s]\n", ev.Phase)
	default:
		return ""
	}
}

func nightInstruction(p *game.Player) string {
	switch p.Role {
	case game.ROLE_MAFIA:
		return `It is night. Choose a player to kill.
Respond with JSON: {"action_type": "NIGHT_ACTION", "night_action_type": "KILL", "target_id": "<player id>"}`
	case game.ROLE_DOCTOR:
		return `It is night. Choose a player to protect (you may protect yourself).
Respond with JSON: {"action_type": "NIGHT_ACTION", "night_action_type": "SAVE", "target_id": "<player id>"}`
	case game.ROLE_DETECTIVE:
		return `It is night. Choose a player to investigate.
Respond with JSON: {"action_type": "NIGHT_ACTION", "night_action_type": "INVESTIGATE", "target_id": "<player id>"}`
	default:
		return `It is night and you have no night ability.
Respond with JSON: {"action_type": "PASS"}`
	}
}

func phaseInstruction(gs *game.GameState, p *game.Player) string {
	switch gs.CurrentPhase {
	case game.PHASE_NIGHT:
		return nightInstruction(p)

	case game.PHASE_DAY_DISCUSSION:
		return `It is your turn to speak in the day discussion.
Share your suspicions, defend yourself or stay vague, in character.
You may also nominate a player for trial instead of speaking.
Respond with JSON, either:
  {"action_type": "SPEAK", "message": "<what you say, a few sentences>"}
or:
  {"action_type": "NOMINATE", "target_id": "<player id>"}`

	case game.PHASE_DAY_NOMINATION:
		return `Nomination round: name the player you want to put on trial,
or pass if you suspect no one.
Respond with JSON, either:
  {"action_type": "NOMINATE", "target_id": "<player id>"}
or:
  {"action_type": "PASS"}`

	case game.PHASE_DAY_DEFENSE:
		if gs.Trial != nil && gs.Trial.DefendantID == p.ID {
			return `You are on trial. Make your case to the other players.
Respond with JSON: {"action_type": "SPEAK", "message": "<your defense>"}`
		}
		return `A player is on trial. React to their defense: press them or
support them, in character.
Respond with JSON: {"action_type": "SPEAK", "message": "<your response>"}`

	case game.PHASE_DAY_JUDGMENT:
		if gs.Voting != nil {
			n1 := gs.Voting.Nominee1ID
			n2 := gs.Voting.Nominee2ID
			return fmt.Sprintf(`A runoff vote is in progress between %s and %s.
Respond with JSON: {"action_type": "VOTE", "nominee_id": "<one of the two ids>"}`, n1, n2)
		}
		return `The trial has ended. Vote on the defendant's fate.
Respond with JSON: {"action_type": "JUDGMENT_VOTE", "vote": "GUILTY" or "INNOCENT", "reason": "<one sentence>"}`

	default:
		return `Respond with JSON: {"action_type": "PASS"}`
	}
}

// BuildActionPrompt 组装一次行动请求的完整提示词
func BuildActionPrompt(gs *game.GameState, p *game.Player, persona, memory, daySummary string) string {
	var b strings.Builder

	b.WriteString(rulesPreamble)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "You are %s (player id %s).\n", p.Name, p.ID)
	b.WriteString(roleInstructions(p))
	b.WriteString("\n\n")

	if persona != "" {
		fmt.Fprintf(&b, "Your persona: %s\n\n", persona)
	}

	if knowledge := roleKnowledge(gs, p); knowledge != "" {
		b.WriteString(knowledge)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "It is day %d, phase %s.\n\nPlayers:\n", gs.Day, gs.CurrentPhase)
	b.WriteString(playerRoster(gs, p.ID))

	if gs.Trial != nil {
		if def, ok := gs.Player(gs.Trial.DefendantID); ok {
			fmt.Fprintf(&b, "\nOn trial: %s (%s)\n", def.Name, def.ID)
		}
	}

	if memory != "" {
		fmt.Fprintf(&b, "\nYour private notes from previous days:\n%s\n", memory)
	}

	if daySummary != "" {
		fmt.Fprintf(&b, "\nSummary of the previous day:\n%s\n", daySummary)
	}

	b.WriteString("\nToday so far:\n")
	b.WriteString(recentTranscript(gs, gs.Day))

	b.WriteString("\n")
	b.WriteString(phaseInstruction(gs, p))

	return b.String()
}

// BuildSummaryPrompt 组装白天结束后的总结提示词
func BuildSummaryPrompt(gs *game.GameState, day int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize day %d of a Mafia game in a short paragraph.\n", day)
	b.WriteString("Cover who died, who was accused, how the votes went and any ")
	b.WriteString("notable claims. Write it as a neutral game chronicle.\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(recentTranscript(gs, day))

	return b.String()
}

// BuildMemoryPrompt 要求代理在一天结束后重写自己的工作记忆
func BuildMemoryPrompt(gs *game.GameState, p *game.Player, oldMemory string, day int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s playing Mafia. ", p.Name)
	b.WriteString(roleInstructions(p))
	b.WriteString("\n")

	if knowledge := roleKnowledge(gs, p); knowledge != "" {
		b.WriteString(knowledge)
	}

	b.WriteString("\nDay ")
	fmt.Fprintf(&b, "%d has ended. Rewrite your private notes for tomorrow.\n", day)
	b.WriteString("Keep whatever you still believe matters: suspicions, cleared ")
	b.WriteString("players, claimed roles, voting patterns. Free-form text.\n\n")

	if oldMemory != "" {
		fmt.Fprintf(&b, "Your current notes:\n%s\n\n", oldMemory)
	}

	b.WriteString("Today's transcript:\n")
	b.WriteString(recentTranscript(gs, day))
	b.WriteString("\nRespond with JSON: {\"memory\": \"<your updated notes>\"}")

	return b.String()
}

package dto

// 创建游戏时为 LLM 玩家指定的模型配置
type ModelConfig struct {
	ModelName string `json:"model_name"`
	Persona   string `json:"persona,omitempty"`
	// 仅用于 CLI/前端展示，对游戏本身不可见
	Label    string `json:"label,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type CreateGameRequest struct {
	PlayerCount     int           `json:"player_count"`
	HumanPlayerName string        `json:"human_player_name,omitempty"`
	Models          []ModelConfig `json:"llm_models"`
}

type CreateGameResponse struct {
	GameID  string       `json:"game_id"`
	Players []PlayerView `json:"players"`
}

// PlayerView 是玩家的对外投影。Role 和 Team 只在允许查看时填充。
type PlayerView struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Team     string `json:"team,omitempty"`
	IsAlive  bool   `json:"is_alive"`
	IsHuman  bool   `json:"is_human"`
}

type TrialView struct {
	DefendantID   string `json:"defendant_id"`
	DefensePhase  string `json:"defense_phase"`
	GuiltyVotes   int    `json:"guilty_votes"`
	InnocentVotes int    `json:"innocent_votes"`
}

type VotingView struct {
	Nominee1ID string            `json:"nominee1_id"`
	Nominee2ID string            `json:"nominee2_id"`
	Votes      map[string]string `json:"votes"`
}

// GameStateView 是游戏状态的只读投影，外部 UI/API 消费的唯一形态。
// 除请求者本人（人类）和已死亡玩家外，所有人的角色都被隐藏。
type GameStateView struct {
	GameID           string              `json:"game_id"`
	Phase            string              `json:"phase"`
	Day              int                 `json:"day"`
	Players          []PlayerView        `json:"players"`
	CurrentSpeakerID string              `json:"current_speaker_id,omitempty"`
	Nominations      map[string][]string `json:"nominations"`
	Trial            *TrialView          `json:"trial_state,omitempty"`
	Voting           *VotingView         `json:"voting_state,omitempty"`
	Winner           string              `json:"winner,omitempty"`
	IsComplete       bool                `json:"is_complete"`
	DaySummary       string              `json:"day_summary,omitempty"`
}

type SubmitActionRequest struct {
	PlayerID        string `json:"player_id"`
	ActionType      string `json:"action_type"`
	Message         string `json:"message,omitempty"`
	TargetID        string `json:"target_id,omitempty"`
	NomineeID       string `json:"nominee_id,omitempty"`
	Vote            string `json:"vote,omitempty"`
	Reason          string `json:"reason,omitempty"`
	NightActionType string `json:"night_action_type,omitempty"`
}

type SubmitActionResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type JoinGameRequest struct {
	PlayerName string `json:"player_name"`
}

type JoinGameResponse struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

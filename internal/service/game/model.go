package game

// 玩家角色
const (
	ROLE_MAFIA     = "MAFIA"
	ROLE_VILLAGER  = "VILLAGER"
	ROLE_DETECTIVE = "DETECTIVE"
	ROLE_DOCTOR    = "DOCTOR"
)

// 阵营
const (
	TEAM_MAFIA = "MAFIA_TEAM"
	TEAM_TOWN  = "TOWN_TEAM"
)

// TeamForRole 根据角色推导阵营：MAFIA 属于 MAFIA_TEAM，其余角色均属于 TOWN_TEAM
func TeamForRole(role string) string {
	if role == ROLE_MAFIA {
		return TEAM_MAFIA
	}

	return TEAM_TOWN
}

type Player struct {
	ID      string `json:"player_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Team    string `json:"team"`
	IsAlive bool   `json:"is_alive"`
	IsHuman bool   `json:"is_human"`

	// Model identity, for display only. Never exposed to game logic or prompts.
	ModelName     string `json:"-"`
	ModelLabel    string `json:"-"`
	ModelProvider string `json:"-"`
}

// NewPlayer 创建一个存活玩家，阵营由角色推导，此后不可变更
func NewPlayer(id, name, role string, isHuman bool) *Player {
	return &Player{
		ID:      id,
		Name:    name,
		Role:    role,
		Team:    TeamForRole(role),
		IsAlive: true,
		IsHuman: isHuman,
	}
}

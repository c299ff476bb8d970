package game

import (
	"encoding/json"
	"time"
)

// 事件类型
const (
	EVENT_KILL         = "KILL"
	EVENT_VOTE         = "VOTE"
	EVENT_NOMINATE     = "NOMINATE"
	EVENT_ELIMINATE    = "ELIMINATE"
	EVENT_SPEAK        = "SPEAK"
	EVENT_NIGHT_ACTION = "NIGHT_ACTION"
	EVENT_PHASE_CHANGE = "PHASE_CHANGE"
)

type GameEvent struct {
	Type      string         `json:"type"`
	Phase     string         `json:"phase"`
	Day       int            `json:"day"`
	PlayerID  string         `json:"player_id,omitempty"`
	TargetID  string         `json:"target_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventLog 是只追加的游戏事件记录，事件一旦写入就不会被修改或重排
type EventLog struct {
	events []GameEvent
}

func NewEventLog() *EventLog {
	return &EventLog{
		events: make([]GameEvent, 0),
	}
}

func (el *EventLog) Add(
	eventType string,
	phase string,
	day int,
	playerID string,
	targetID string,
	data map[string]any,
) GameEvent {
	ev := GameEvent{
		Type:      eventType,
		Phase:     phase,
		Day:       day,
		PlayerID:  playerID,
		TargetID:  targetID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	el.events = append(el.events, ev)

	return ev
}

func (el *EventLog) Len() int {
	return len(el.events)
}

// Events 返回全部事件的副本，调用方不能通过返回值篡改日志
func (el *EventLog) Events() []GameEvent {
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)

	return out
}

// Clone 返回日志的独立副本。事件一旦写入不再修改，Data 引用可以共享。
func (el *EventLog) Clone() *EventLog {
	return &EventLog{events: el.Events()}
}

func (el *EventLog) ByType(eventType string) []GameEvent {
	out := make([]GameEvent, 0)

	for _, ev := range el.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}

	return out
}

func (el *EventLog) ByDay(day int) []GameEvent {
	out := make([]GameEvent, 0)

	for _, ev := range el.events {
		if ev.Day == day {
			out = append(out, ev)
		}
	}

	return out
}

func (el *EventLog) ToJSON() ([]byte, error) {
	return json.Marshal(el.events)
}

// EventLogFromJSON 从序列化数据重建事件日志，事件顺序与所有字段保持不变
func EventLogFromJSON(data []byte) (*EventLog, error) {
	var events []GameEvent

	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}

	return &EventLog{events: events}, nil
}

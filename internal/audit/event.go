package audit

import (
	"encoding/json"
	"time"
)

// Event — одно звено tamper-evident журнала. Hash считается от канонического
// содержимого события вместе с PreviousHash, образуя односвязную цепочку
// с пустым previous у первого события. После записи событие не мутирует.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Type         string         `json:"type"`
	Data         map[string]any `json:"data"`
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previous_hash"`
	AgentTrace   []string       `json:"agent_trace,omitempty"`
	SafetyLevel  string         `json:"safety_level,omitempty"`
}

// canonical — байты события без Hash, в фиксированном порядке полей.
// json.Marshal сортирует ключи мап, поэтому форма стабильна.
func (e Event) canonical() []byte {
	view := struct {
		ID           string         `json:"id"`
		Timestamp    time.Time      `json:"timestamp"`
		Type         string         `json:"type"`
		Data         map[string]any `json:"data"`
		PreviousHash string         `json:"previous_hash"`
		AgentTrace   []string       `json:"agent_trace,omitempty"`
		SafetyLevel  string         `json:"safety_level,omitempty"`
	}{e.ID, e.Timestamp, e.Type, e.Data, e.PreviousHash, e.AgentTrace, e.SafetyLevel}

	raw, _ := json.Marshal(view)
	return raw
}

// Checkpoint — периодический якорь восстановления.
type Checkpoint struct {
	AtEvent   int       `json:"at_event"` // количество событий на момент снимка
	EventID   string    `json:"event_id"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

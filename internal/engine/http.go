package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// runRequest — запуск прогона: стартовые поля и цель в упрощенной форме
// (bool / число / строка-enum, как в YAML каталога).
type runRequest struct {
	Start map[string]any `json:"start"`
	Goal  map[string]any `json:"goal"`
}

// HandleRunRequest — data-plane эндпоинт: исполнить прогон и вернуть трассу.
// Критичная ошибка отдается вместе с частичной трассой: клиент видит,
// что именно успело произойти.
func (o *Orchestrator) HandleRunRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.Goal) == 0 {
		http.Error(w, "goal is required", http.StatusBadRequest)
		return
	}

	start, err := decodeState(req.Start)
	if err != nil {
		http.Error(w, fmt.Sprintf("start: %v", err), http.StatusBadRequest)
		return
	}
	goal, err := decodeState(req.Goal)
	if err != nil {
		http.Error(w, fmt.Sprintf("goal: %v", err), http.StatusBadRequest)
		return
	}

	trace, runErr := o.Execute(r.Context(), start, goal)

	resp := struct {
		Trace *domain.RunTrace `json:"trace"`
		Error string           `json:"error,omitempty"`
	}{Trace: trace}

	w.Header().Set("Content-Type", "application/json")
	if runErr != nil {
		o.logger.Error("run request failed", zap.Error(runErr))
		resp.Error = runErr.Error()
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeState(raw map[string]any) (domain.State, error) {
	if len(raw) == 0 {
		return domain.State{}, nil
	}
	s := make(domain.State, len(raw))
	for field, val := range raw {
		switch x := val.(type) {
		case bool:
			s[field] = domain.BoolValue(x)
		case float64:
			s[field] = domain.NumberValue(x)
		case string:
			s[field] = domain.EnumValue(x)
		default:
			return nil, fmt.Errorf("field %q has unsupported type %T", field, val)
		}
	}
	return s, nil
}

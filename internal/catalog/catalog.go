package catalog

import (
	"fmt"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// Catalog — статический список доступных действий плюс таблица Recovery
// Strategy по AgentID. Определяется один раз на деплой, в рантайме только
// читается: и планировщик, и оркестратор видят одну неизменяемую копию.
type Catalog struct {
	Actions    []domain.Action
	Strategies map[string]domain.RecoveryStrategy
}

// defaultStrategy — поведение для агентов без явной записи в таблице:
// не критичен, без ретраев. Fail-open по умолчанию: отказ без записи в
// таблице не останавливает прогон.
var defaultStrategy = domain.RecoveryStrategy{}

// StrategyFor возвращает политику восстановления для агента.
func (c *Catalog) StrategyFor(agentID string) domain.RecoveryStrategy {
	if s, ok := c.Strategies[agentID]; ok {
		return s
	}
	return defaultStrategy
}

// AgentIDs возвращает уникальные AgentID в порядке первого появления в каталоге.
func (c *Catalog) AgentIDs() []string {
	seen := make(map[string]struct{}, len(c.Actions))
	var ids []string
	for _, a := range c.Actions {
		if _, ok := seen[a.AgentID]; ok {
			continue
		}
		seen[a.AgentID] = struct{}{}
		ids = append(ids, a.AgentID)
	}
	return ids
}

// Validate проверяет согласованность каталога при загрузке.
// Ловим ошибки конфигурации на старте, а не посреди прогона.
func (c *Catalog) Validate() error {
	names := make(map[string]struct{}, len(c.Actions))
	agents := make(map[string]struct{}, len(c.Actions))

	for i, a := range c.Actions {
		if a.Name == "" {
			return fmt.Errorf("catalog: action #%d has empty name", i)
		}
		if a.AgentID == "" {
			return fmt.Errorf("catalog: action %q has empty agent_id", a.Name)
		}
		if a.Cost < 0 {
			return fmt.Errorf("catalog: action %q has negative cost %v", a.Name, a.Cost)
		}
		if _, dup := names[a.Name]; dup {
			return fmt.Errorf("catalog: duplicate action name %q", a.Name)
		}
		names[a.Name] = struct{}{}
		agents[a.AgentID] = struct{}{}
	}

	for agentID, s := range c.Strategies {
		if s.MaxRetries < 0 {
			return fmt.Errorf("catalog: strategy for %q has negative max_retries", agentID)
		}
		if s.FallbackAgentID == "" {
			continue
		}
		if _, ok := agents[s.FallbackAgentID]; !ok {
			return fmt.Errorf("catalog: strategy for %q points to unknown fallback agent %q",
				agentID, s.FallbackAgentID)
		}
	}
	return nil
}

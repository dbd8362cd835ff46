package handoff

import (
	"fmt"

	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// RoutingRule — бизнес-ограничение маршрутизации поверх «сырых» предусловий:
// агент допускается к работе только при конкретном значении поля состояния.
// Взаимоисключающие ветки объявляются парой правил на одно поле,
// никакой логики по именам агентов в коде нет.
type RoutingRule struct {
	AgentID string
	Field   string
	Want    domain.Value
}

// DerivedFlag — булев флаг, истинность которого обязана следовать из
// числового поля-драйвера. Расхождение при валидации — предупреждение,
// EnsureStateConsistency чинит флаг по драйверу.
type DerivedFlag struct {
	Flag          string
	Driver        string
	Threshold     float64
	FlagWhenBelow bool // true: flag = driver < threshold; false: flag = driver >= threshold
}

// Verdict — итог проверки хендоффа.
type Verdict struct {
	Valid    bool     `json:"valid"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Coordinator валидирует передачу управления между последовательными шагами.
type Coordinator struct {
	routing []RoutingRule
	derived []DerivedFlag
	logger  *zap.Logger
}

func New(routing []RoutingRule, derived []DerivedFlag, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		routing: routing,
		derived: derived,
		logger:  logger.Named("handoff"),
	}
}

// DefaultRules — таблицы встроенного пайплайна: взаимоисключающая ветка
// ревью по low_confidence и вывод этого флага из confidence_score.
func DefaultRules() ([]RoutingRule, []DerivedFlag) {
	routing := []RoutingRule{
		{AgentID: "reviewer", Field: catalog.FieldLowConfidence, Want: domain.BoolValue(true)},
		{AgentID: "auto_accepter", Field: catalog.FieldLowConfidence, Want: domain.BoolValue(false)},
	}
	derived := []DerivedFlag{
		{
			Flag:          catalog.FieldLowConfidence,
			Driver:        catalog.FieldConfidenceScore,
			Threshold:     catalog.LowConfidenceThreshold,
			FlagWhenBelow: true,
		},
	}
	return routing, derived
}

// ValidateHandoff проверяет, что действие action может исполниться агентом
// toAgentID в состоянии state. Нарушение предусловий или правила
// маршрутизации делает хендофф невалидным; расхождения производных флагов
// с драйверами не блокируют, но попадают в Warnings.
func (c *Coordinator) ValidateHandoff(fromAgentID, toAgentID string, state domain.State, action domain.Action) Verdict {
	for field, want := range action.Preconditions {
		if got, ok := state[field]; !ok || got != want {
			c.logger.Debug("precondition not met",
				zap.String("from", fromAgentID),
				zap.String("to", toAgentID),
				zap.String("field", field))
			return Verdict{Valid: false, Reason: fmt.Sprintf("precondition not met: %s", field)}
		}
	}

	for _, rule := range c.routing {
		if rule.AgentID != toAgentID {
			continue
		}
		if got, ok := state[rule.Field]; !ok || got != rule.Want {
			return Verdict{
				Valid: false,
				Reason: fmt.Sprintf("routing rule violated: agent %s requires %s=%s",
					toAgentID, rule.Field, rule.Want),
			}
		}
	}

	return Verdict{Valid: true, Warnings: c.inconsistencies(state)}
}

// inconsistencies собирает нефатальные расхождения флагов с их драйверами.
func (c *Coordinator) inconsistencies(state domain.State) []string {
	var warnings []string
	for _, d := range c.derived {
		flag, okFlag := state[d.Flag]
		driver, okDriver := state[d.Driver]
		if !okFlag || !okDriver {
			continue
		}
		if flag.Bool != d.expected(driver.Num) {
			warnings = append(warnings, fmt.Sprintf(
				"flag %s=%v disagrees with driver %s=%v (threshold %v)",
				d.Flag, flag.Bool, d.Driver, driver.Num, d.Threshold))
		}
	}
	return warnings
}

// EnsureStateConsistency выводит каждый объявленный флаг из его драйвера.
// Чистая идемпотентная функция текущих значений полей.
func (c *Coordinator) EnsureStateConsistency(state domain.State) domain.State {
	out := state.Clone()
	for _, d := range c.derived {
		driver, ok := out[d.Driver]
		if !ok {
			continue
		}
		out[d.Flag] = domain.BoolValue(d.expected(driver.Num))
	}
	return out
}

func (d DerivedFlag) expected(driver float64) bool {
	below := driver < d.Threshold
	if d.FlagWhenBelow {
		return below
	}
	return !below
}

package catalog

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// fileAction — представление действия в YAML. Значения полей состояния
// приходят как произвольные скаляры и конвертируются в domain.Value.
type fileAction struct {
	Name          string         `mapstructure:"name"`
	AgentID       string         `mapstructure:"agent_id"`
	Cost          float64        `mapstructure:"cost"`
	Preconditions map[string]any `mapstructure:"preconditions"`
	Effects       map[string]any `mapstructure:"effects"`
}

type fileCatalog struct {
	Actions    []fileAction                       `mapstructure:"actions"`
	Strategies map[string]domain.RecoveryStrategy `mapstructure:"strategies"`
}

// Load читает каталог и таблицу Recovery Strategy из YAML-файла.
// Формат значений: bool -> булево поле, число -> числовое, строка -> enum.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var raw fileCatalog
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}

	c := &Catalog{Strategies: raw.Strategies}
	if c.Strategies == nil {
		c.Strategies = make(map[string]domain.RecoveryStrategy)
	}

	for _, fa := range raw.Actions {
		pre, err := toState(fa.Preconditions)
		if err != nil {
			return nil, fmt.Errorf("catalog: action %q preconditions: %w", fa.Name, err)
		}
		eff, err := toState(fa.Effects)
		if err != nil {
			return nil, fmt.Errorf("catalog: action %q effects: %w", fa.Name, err)
		}
		c.Actions = append(c.Actions, domain.Action{
			Name:          fa.Name,
			AgentID:       fa.AgentID,
			Cost:          fa.Cost,
			Preconditions: pre,
			Effects:       eff,
		})
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func toState(raw map[string]any) (domain.State, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	s := make(domain.State, len(raw))
	for field, val := range raw {
		switch x := val.(type) {
		case bool:
			s[field] = domain.BoolValue(x)
		case int:
			s[field] = domain.NumberValue(float64(x))
		case int64:
			s[field] = domain.NumberValue(float64(x))
		case float64:
			s[field] = domain.NumberValue(x)
		case string:
			s[field] = domain.EnumValue(x)
		default:
			return nil, fmt.Errorf("field %q has unsupported value type %T", field, val)
		}
	}
	return s, nil
}

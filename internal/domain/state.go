package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind определяет тип поля World State.
// Схема фиксирована каталогом: поля не появляются и не исчезают в рантайме.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindNumber
	KindEnum
)

// Value — тегированное значение поля состояния (bool / число / закрытый enum).
// Структура сравнимая (comparable), поэтому State можно сравнивать через ==
// и использовать как часть канонического ключа в планировщике.
type Value struct {
	Kind ValueKind `json:"kind"`
	Bool bool      `json:"bool,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Enum string    `json:"enum,omitempty"`
}

func BoolValue(v bool) Value      { return Value{Kind: KindBool, Bool: v} }
func NumberValue(v float64) Value { return Value{Kind: KindNumber, Num: v} }
func EnumValue(v string) Value    { return Value{Kind: KindEnum, Enum: v} }

// String — человекочитаемое представление для логов и канонических ключей.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return v.Enum
	}
}

// State — общий рабочий слепок пайплайна. Единственный владелец изменяемой
// копии — оркестратор; шаги получают клон и возвращают патч.
type State map[string]Value

// Clone возвращает независимую копию (плоская мапа, глубина не нужна).
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Satisfies проверяет, что каждое поле частичного состояния goal
// присутствует в s с тем же значением.
func (s State) Satisfies(goal State) bool {
	for k, want := range goal {
		if got, ok := s[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// UnmetFields возвращает поля goal, которые еще не выполнены в s.
// Порядок детерминированный (сортировка по имени) — важно для логов и эвристики.
func (s State) UnmetFields(goal State) []string {
	var unmet []string
	for k, want := range goal {
		if got, ok := s[k]; !ok || got != want {
			unmet = append(unmet, k)
		}
	}
	sort.Strings(unmet)
	return unmet
}

// Apply возвращает новую копию s с примененным патчем.
// Исходное состояние не трогаем: слепки в планировщике разделяют историю.
func (s State) Apply(patch State) State {
	out := s.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Key — канонический отпечаток состояния для дедупликации узлов поиска.
// Поля сортируются, поэтому два равных состояния всегда дают одну строку.
func (s State) Key() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, s[k].String())
	}
	return b.String()
}

package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReplanLimit — шаги запрашивали перепланирование чаще разрешенного.
	// Fail closed: превышение лимита фатально для прогона.
	ErrReplanLimit = errors.New("replan limit exceeded")

	// ErrAgentSuspended — агент заблокирован оператором (kill-switch).
	ErrAgentSuspended = errors.New("agent suspended")

	// ErrNoRunner — для AgentID не привязана реализация шага.
	ErrNoRunner = errors.New("no step implementation bound")
)

// criticalPrefix — контрактный маркер фатальности в тексте ошибки шага.
const criticalPrefix = "Critical: "

// PreconditionError — хендофф отклонил действие. На некритичном действии
// восстанавливается локально (запись skipped), как и обычный отказ шага.
type PreconditionError struct {
	AgentID string
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("handoff rejected for %s: %s", e.AgentID, e.Reason)
}

// StepError — собственный отказ реализации шага (включая таймаут).
type StepError struct {
	AgentID string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.AgentID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// hasCriticalPrefix проверяет контрактный префикс "Critical: " в цепочке.
func hasCriticalPrefix(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.HasPrefix(e.Error(), criticalPrefix) {
			return true
		}
	}
	return false
}

// criticalf оборачивает фатальную ошибку прогона контрактным префиксом.
func criticalf(format string, args ...any) error {
	return fmt.Errorf(criticalPrefix+format, args...)
}

package step

import (
	"fmt"
	"time"
)

// ThrottleError возвращается шагом, когда внешняя система попросила
// подождать (прочитан Retry-After). Ретрай-цикл оркестратора уважает
// указанную задержку вместо сконфигурированной.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

package orchestrator

import "time"

const (
	DefaultMaxToolCalls      = 4
	DefaultRetryLimit        = 5
	DefaultMaxTurnPairs      = 3
	DefaultCompletionTimeout = 30 * time.Second
)

// Limits bounds one turn of the tool loop.
type Limits struct {
	// RetryLimit is the number of completion requests per turn.
	RetryLimit int
	// MaxToolCalls caps provider executions per turn.
	MaxToolCalls int
	// MaxTurnPairs is the number of user/assistant pairs kept in history.
	MaxTurnPairs      int
	CompletionTimeout time.Duration
}

// ===== Small helpers to keep the loop simple/readable =====

func normalizeLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (l Limits) normalized() Limits {
	l.RetryLimit = normalizeLimit(l.RetryLimit, DefaultRetryLimit)
	l.MaxToolCalls = normalizeLimit(l.MaxToolCalls, DefaultMaxToolCalls)
	l.MaxTurnPairs = normalizeLimit(l.MaxTurnPairs, DefaultMaxTurnPairs)
	if l.CompletionTimeout <= 0 {
		l.CompletionTimeout = DefaultCompletionTimeout
	}
	return l
}

// callBudget counts provider executions within one turn.
type callBudget struct {
	used int
	max  int
}

// take reserves one execution. It returns false once the cap is reached.
func (b *callBudget) take() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

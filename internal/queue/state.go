package queue

// State — состояние задания.
//
// Жизненный цикл: queued → running → succeeded | failed.
// Обратный переход running → queued — повтор после временной ошибки
// или возврат просроченной аренды.
type State string

const (
	// StateQueued — ожидает воркера
	StateQueued State = "queued"
	// StateRunning — арендовано воркером
	StateRunning State = "running"
	// StateSucceeded — производные построены (или не требуются)
	StateSucceeded State = "succeeded"
	// StateFailed — постоянная ошибка или исчерпаны попытки
	StateFailed State = "failed"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[State]map[State]bool{
	StateQueued:    {StateRunning: true},
	StateRunning:   {StateSucceeded: true, StateFailed: true, StateQueued: true},
	StateSucceeded: {},
	StateFailed:    {},
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to State) bool {
	return validTransitions[from][to]
}

// IsTerminal сообщает, что из состояния нет переходов.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

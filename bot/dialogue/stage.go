// Package dialogue implements the scripted calculator conversation: input
// classification, the stage machine and the arithmetic behind it. It does no
// I/O; presentation layers feed it raw lines and deliver the replies it returns.
package dialogue

// Stage identifies the current step of the scripted dialogue.
type Stage int

const (
	// StageAwaitingStart is the initial stage before the first /start.
	StageAwaitingStart Stage = iota
	// StageAskedName means the bot greeted the user and waits for /name:.
	StageAskedName
	// StageAwaitingNumbers means the bot waits for a /number: list.
	StageAwaitingNumbers
	// StageAwaitingOperator means numbers are staged and an operator is expected.
	StageAwaitingOperator
	// StageStopped is terminal until the next /start.
	StageStopped
)

// String returns the snake_case name used in logs and the journal.
func (s Stage) String() string {
	switch s {
	case StageAwaitingStart:
		return "awaiting_start"
	case StageAskedName:
		return "asked_name"
	case StageAwaitingNumbers:
		return "awaiting_numbers"
	case StageAwaitingOperator:
		return "awaiting_operator"
	case StageStopped:
		return "stopped"
	}
	return "unknown"
}

func (s Stage) acceptsName() bool {
	return s == StageAwaitingStart || s == StageAskedName
}

func (s Stage) acceptsNumbers() bool {
	return s == StageAwaitingNumbers || s == StageAwaitingOperator
}

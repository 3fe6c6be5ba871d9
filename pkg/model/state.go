package model

import "fmt"

// Operation is the kind of hardware access a command performs.
type Operation string

const (
	OperationRead  Operation = "READ"
	OperationWrite Operation = "WRITE"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// ParseOperation accepts "read"/"write" in any case.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "read", "READ", "Read":
		return OperationRead, nil
	case "write", "WRITE", "Write":
		return OperationWrite, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// QueueKind selects the admission queue for a new command.
type QueueKind string

const (
	QueueLater    QueueKind = "LATER"
	QueuePeriodic QueueKind = "PERIODIC"
)

// SchedulerState is the state of the synchronization state machine.
type SchedulerState string

const (
	SchedulerIdle    SchedulerState = "IDLE"
	SchedulerSyncing SchedulerState = "SYNCING"
)

// String returns the string representation of the scheduler state.
func (s SchedulerState) String() string {
	return string(s)
}

// RoundResult tags how a synchronization round was closed.
type RoundResult string

const (
	// RoundCompleted means every board reported completion.
	RoundCompleted RoundResult = "COMPLETED"
	// RoundForcedIncomplete means the next tick closed the round while at
	// least one board was still in progress.
	RoundForcedIncomplete RoundResult = "FORCED_INCOMPLETE"
)

// String returns the string representation of the round result.
func (r RoundResult) String() string {
	return string(r)
}

// StepState is the progress of one sync step within a board pipeline.
type StepState string

const (
	StepPending  StepState = "PENDING"
	StepRunning  StepState = "RUNNING"
	StepComplete StepState = "COMPLETE"
)

// CommandState is the journal state of a command.
type CommandState string

const (
	CommandStateQueued    CommandState = "QUEUED"
	CommandStateCompleted CommandState = "COMPLETED"
	CommandStateCancelled CommandState = "CANCELLED"
)

// IsTerminal returns true if the command will not be completed again.
func (s CommandState) IsTerminal() bool {
	switch s {
	case CommandStateCompleted, CommandStateCancelled:
		return true
	}
	return false
}

package model

import "time"

// CommandRequest is the body of POST /api/v1/commands.
type CommandRequest struct {
	Owner     string    `json:"owner"`
	Board     string    `json:"board"`
	Register  int       `json:"register"`
	Operation Operation `json:"operation"`
	Values    []uint32  `json:"values,omitempty"`
	Count     int       `json:"count,omitempty"`
	// At is the requested effective time in Unix seconds. Zero means "as
	// soon as possible".
	At     int64 `json:"at,omitempty"`
	Period int64 `json:"period,omitempty"`
}

// Validate checks the request and returns field errors, if any.
func (r *CommandRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Owner == "" {
		errs = append(errs, FieldError{Field: "owner", Message: "required"})
	}
	if r.Board == "" {
		errs = append(errs, FieldError{Field: "board", Message: "required"})
	}
	if r.Register < 0 {
		errs = append(errs, FieldError{Field: "register", Message: "must be >= 0"})
	}
	if r.Period < 0 {
		errs = append(errs, FieldError{Field: "period", Message: "must be >= 0"})
	}
	switch r.Operation {
	case OperationWrite:
		if len(r.Values) == 0 {
			errs = append(errs, FieldError{Field: "values", Message: "write needs at least one value"})
		}
		if r.Period > 0 {
			errs = append(errs, FieldError{Field: "period", Message: "periodic writes are not supported"})
		}
	case OperationRead:
		if r.Count < 0 {
			errs = append(errs, FieldError{Field: "count", Message: "must be >= 0"})
		}
	default:
		errs = append(errs, FieldError{Field: "operation", Message: "must be READ or WRITE"})
	}
	return errs
}

// CommandRecord is the journal entry for an admitted command.
type CommandRecord struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Board       string       `json:"board"`
	Register    int          `json:"register"`
	Count       int          `json:"count"`
	Operation   Operation    `json:"operation"`
	Period      int64        `json:"period"`
	RequestedAt Timestamp    `json:"requested_at"`
	EffectiveAt Timestamp    `json:"effective_at"`
	State       CommandState `json:"state"`
	Result      RoundResult  `json:"result,omitempty"`
	Values      []uint32     `json:"values"`
	Samples     int          `json:"samples"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// CommandResult is delivered when a command is finalized at the end of a
// round.
type CommandResult struct {
	ID        string      `json:"id"`
	Owner     string      `json:"owner"`
	Board     string      `json:"board"`
	Register  int         `json:"register"`
	Operation Operation   `json:"operation"`
	Timestamp Timestamp   `json:"timestamp"`
	Result    RoundResult `json:"result"`
	Values    []uint32    `json:"values"`
	Periodic  bool        `json:"periodic"`
}

// Round is the journal entry for one synchronization round.
type Round struct {
	ID                string      `json:"id"`
	Tick              Timestamp   `json:"tick"`
	Result            RoundResult `json:"result"`
	IncompletePorts   []string    `json:"incomplete_ports"`
	CommandsCompleted int         `json:"commands_completed"`
	StartedAt         time.Time   `json:"started_at"`
	CompletedAt       time.Time   `json:"completed_at"`
}

// SchedulerStatus is a point-in-time view of the scheduler queues.
type SchedulerStatus struct {
	State       SchedulerState    `json:"state"`
	CurrentTime Timestamp         `json:"current_time"`
	Later       int               `json:"later"`
	Periodic    int               `json:"periodic"`
	Now         int               `json:"now"`
	Done        int               `json:"done"`
	Rounds      int64             `json:"rounds"`
	Forced      int64             `json:"forced"`
	Ports       map[string]string `json:"ports"`
}

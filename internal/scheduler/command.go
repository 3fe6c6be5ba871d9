package scheduler

import "github.com/me/rspd/pkg/model"

// BaseCommand carries the scheduling fields shared by all commands.
// Concrete commands embed it and add Apply/Complete.
type BaseCommand struct {
	timestamp model.Timestamp
	operation model.Operation
	period    int64
	owner     Port
	handle    string
}

// NewBaseCommand initializes the scheduling fields. A zero ts means "as
// soon as possible".
func NewBaseCommand(owner Port, handle string, op model.Operation, ts model.Timestamp, period int64) BaseCommand {
	return BaseCommand{
		timestamp: ts,
		operation: op,
		period:    period,
		owner:     owner,
		handle:    handle,
	}
}

func (c *BaseCommand) Timestamp() model.Timestamp { return c.timestamp }

func (c *BaseCommand) SetTimestamp(ts model.Timestamp) { c.timestamp = ts }

func (c *BaseCommand) Operation() model.Operation { return c.operation }

func (c *BaseCommand) Period() int64 { return c.period }

func (c *BaseCommand) Owner() Port { return c.owner }

func (c *BaseCommand) Handle() string { return c.handle }

package store

import (
	"context"
	"errors"
	"time"

	"github.com/me/rspd/pkg/model"
)

// ErrCommandNotFound is returned when a command has no journal row.
var ErrCommandNotFound = errors.New("command not found")

// Store is the journal of admitted commands and synchronization rounds.
// The scheduler itself keeps no history; the journal is what clients
// query after the fact.
type Store interface {
	// Commands
	CreateCommand(ctx context.Context, rec *model.CommandRecord) error
	GetCommand(ctx context.Context, id string) (*model.CommandRecord, error)
	ListCommands(ctx context.Context, opts model.ListOptions) ([]*model.CommandRecord, int, error)
	// SetEffectiveAt records the time the scheduler moved a command to.
	SetEffectiveAt(ctx context.Context, id string, ts model.Timestamp) error
	// DeleteCommand removes the row of a command that was never admitted.
	DeleteCommand(ctx context.Context, id string) error
	// CompleteCommand stores the outcome of one completion. One-shot
	// commands move to COMPLETED; subscriptions stay QUEUED and count
	// samples. It returns ErrCommandNotFound if id has no row; a
	// cancelled row is left as is.
	CompleteCommand(ctx context.Context, res model.CommandResult, at time.Time) error
	// CancelCommands marks the queued commands of owner as CANCELLED. A
	// non-empty handle restricts it to that command.
	CancelCommands(ctx context.Context, owner, handle string, at time.Time) (int, error)

	// Rounds
	RecordRound(ctx context.Context, r *model.Round) error
	ListRounds(ctx context.Context, opts model.ListOptions) ([]*model.Round, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/rspd/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is RFC 3339 with a fixed-width fraction, so stored times
// sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: the journal is written by the recorder and read by
	// the API, and an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Commands ---

func (s *SQLiteStore) CreateCommand(ctx context.Context, rec *model.CommandRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "commands", "id", rec.ID)

	valsJSON, err := json.Marshal(nonNilValues(rec.Values))
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	state := rec.State
	if state == "" {
		state = model.CommandStateQueued
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO commands (id, owner, board, register, count, operation, period,
			requested_sec, requested_usec, effective_sec, effective_usec,
			state, result, vals, samples, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, rec.Board, rec.Register, rec.Count, string(rec.Operation), rec.Period,
		rec.RequestedAt.Sec, rec.RequestedAt.Usec, rec.EffectiveAt.Sec, rec.EffectiveAt.Usec,
		string(state), string(rec.Result), string(valsJSON), rec.Samples,
		rec.CreatedAt.UTC().Format(timeFormat), formatTimePtr(rec.CompletedAt),
	)
	return err
}

const commandColumns = `id, owner, board, register, count, operation, period,
	requested_sec, requested_usec, effective_sec, effective_usec,
	state, result, vals, samples, created_at, completed_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCommand(row scanner) (*model.CommandRecord, error) {
	var rec model.CommandRecord
	var op, state, result, valsJSON, createdAt string
	var completedAt *string

	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Board, &rec.Register, &rec.Count, &op, &rec.Period,
		&rec.RequestedAt.Sec, &rec.RequestedAt.Usec, &rec.EffectiveAt.Sec, &rec.EffectiveAt.Usec,
		&state, &result, &valsJSON, &rec.Samples, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	rec.Operation = model.Operation(op)
	rec.State = model.CommandState(state)
	rec.Result = model.RoundResult(result)
	if err := json.Unmarshal([]byte(valsJSON), &rec.Values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.CompletedAt = parseTimePtr(completedAt)
	return &rec, nil
}

func (s *SQLiteStore) GetCommand(ctx context.Context, id string) (*model.CommandRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "commands", "id", id)

	rec, err := scanCommand(s.db.QueryRowContext(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) ListCommands(ctx context.Context, opts model.ListOptions) ([]*model.CommandRecord, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "commands", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var whereClauses []string
	var countArgs []any
	if opts.Owner != "" {
		whereClauses = append(whereClauses, "owner = ?")
		countArgs = append(countArgs, opts.Owner)
	}
	if opts.State != "" {
		whereClauses = append(whereClauses, "state = ?")
		countArgs = append(countArgs, opts.State)
	}
	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + commandColumns + ` FROM commands` + whereSQL +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*model.CommandRecord
	for rows.Next() {
		rec, err := scanCommand(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	return recs, total, rows.Err()
}

func (s *SQLiteStore) CompleteCommand(ctx context.Context, res model.CommandResult, at time.Time) error {
	s.logger.Debug("sql", "op", "complete", "table", "commands", "id", res.ID, "result", res.Result)

	valsJSON, err := json.Marshal(nonNilValues(res.Values))
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	state := model.CommandStateCompleted
	if res.Periodic {
		state = model.CommandStateQueued
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE commands
		 SET state = ?, result = ?, vals = ?, samples = samples + 1, completed_at = ?
		 WHERE id = ? AND state = ?`,
		string(state), string(res.Result), string(valsJSON), at.UTC().Format(timeFormat),
		res.ID, string(model.CommandStateQueued),
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil || n > 0 {
		return err
	}

	var rows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands WHERE id = ?`, res.ID).Scan(&rows); err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("complete %s: %w", res.ID, ErrCommandNotFound)
	}
	return nil
}

func (s *SQLiteStore) SetEffectiveAt(ctx context.Context, id string, ts model.Timestamp) error {
	s.logger.Debug("sql", "op", "update", "table", "commands", "id", id, "effective", ts)

	result, err := s.db.ExecContext(ctx,
		`UPDATE commands SET effective_sec = ?, effective_usec = ? WHERE id = ?`,
		ts.Sec, ts.Usec, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("set effective time of %s: %w", id, ErrCommandNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteCommand(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "commands", "id", id)

	_, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) CancelCommands(ctx context.Context, owner, handle string, at time.Time) (int, error) {
	s.logger.Debug("sql", "op", "cancel", "table", "commands", "owner", owner, "handle", handle)

	query := `UPDATE commands SET state = ?, completed_at = ? WHERE owner = ? AND state = ?`
	args := []any{string(model.CommandStateCancelled), at.UTC().Format(timeFormat), owner, string(model.CommandStateQueued)}
	if handle != "" {
		query += ` AND id = ?`
		args = append(args, handle)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// --- Rounds ---

func (s *SQLiteStore) RecordRound(ctx context.Context, r *model.Round) error {
	s.logger.Debug("sql", "op", "insert", "table", "rounds", "id", r.ID, "tick", r.Tick)

	portsJSON, err := json.Marshal(nonNilStrings(r.IncompletePorts))
	if err != nil {
		return fmt.Errorf("marshal incomplete ports: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rounds (id, tick_sec, tick_usec, result, incomplete_ports, commands_completed, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Tick.Sec, r.Tick.Usec, string(r.Result), string(portsJSON), r.CommandsCompleted,
		r.StartedAt.UTC().Format(timeFormat), r.CompletedAt.UTC().Format(timeFormat),
	)
	return err
}

func (s *SQLiteStore) ListRounds(ctx context.Context, opts model.ListOptions) ([]*model.Round, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "rounds", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.State != "" {
		whereSQL = " WHERE result = ?"
		countArgs = append(countArgs, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tick_sec, tick_usec, result, incomplete_ports, commands_completed, started_at, completed_at
		 FROM rounds`+whereSQL+` ORDER BY tick_sec DESC, tick_usec DESC LIMIT ? OFFSET ?`,
		append(countArgs, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rounds []*model.Round
	for rows.Next() {
		var r model.Round
		var result, portsJSON, startedAt, completedAt string
		if err := rows.Scan(&r.ID, &r.Tick.Sec, &r.Tick.Usec, &result, &portsJSON,
			&r.CommandsCompleted, &startedAt, &completedAt); err != nil {
			return nil, 0, err
		}
		r.Result = model.RoundResult(result)
		if err := json.Unmarshal([]byte(portsJSON), &r.IncompletePorts); err != nil {
			return nil, 0, fmt.Errorf("unmarshal incomplete ports: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
		rounds = append(rounds, &r)
	}
	return rounds, total, rows.Err()
}

// --- helpers ---

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func nonNilValues(v []uint32) []uint32 {
	if v == nil {
		return []uint32{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

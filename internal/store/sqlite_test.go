package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/rspd/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleCommand(id, owner string, created time.Time) *model.CommandRecord {
	return &model.CommandRecord{
		ID:          id,
		Owner:       owner,
		Board:       "rsp0",
		Register:    3,
		Count:       2,
		Operation:   model.OperationRead,
		RequestedAt: model.NewTimestamp(1772366400, 0),
		EffectiveAt: model.NewTimestamp(1772366402, 0),
		State:       model.CommandStateQueued,
		CreatedAt:   created,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestCreateGetCommand(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := sampleCommand("cmd_1", "alice", now)
	if err := st.CreateCommand(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetCommand(ctx, "cmd_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("command not found")
	}
	if got.Owner != "alice" || got.Board != "rsp0" || got.Register != 3 || got.Count != 2 {
		t.Errorf("got %+v", got)
	}
	if got.Operation != model.OperationRead || got.State != model.CommandStateQueued {
		t.Errorf("op=%s state=%s", got.Operation, got.State)
	}
	if !got.EffectiveAt.Equal(rec.EffectiveAt) || !got.RequestedAt.Equal(rec.RequestedAt) {
		t.Errorf("timestamps = %v/%v", got.RequestedAt, got.EffectiveAt)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created = %v, want %v", got.CreatedAt, now)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil", got.CompletedAt)
	}
	if len(got.Values) != 0 {
		t.Errorf("values = %v, want empty", got.Values)
	}
}

func TestGetCommand_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetCommand(context.Background(), "cmd_missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCreateCommand_Duplicate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	rec := sampleCommand("cmd_1", "alice", time.Now())
	if err := st.CreateCommand(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateCommand(ctx, rec); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestListCommands(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		rec := sampleCommand(fmt.Sprintf("cmd_%d", i), owner, base.Add(time.Duration(i)*time.Second))
		if err := st.CreateCommand(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, total, err := st.ListCommands(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(all) != 2 {
		t.Fatalf("total=%d len=%d, want 5/2", total, len(all))
	}
	if all[0].ID != "cmd_4" || all[1].ID != "cmd_3" {
		t.Errorf("order = %s, %s; want newest first", all[0].ID, all[1].ID)
	}

	page, _, err := st.ListCommands(ctx, model.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "cmd_0" {
		t.Errorf("last page = %v", page)
	}

	bobs, total, err := st.ListCommands(ctx, model.ListOptions{Owner: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(bobs) != 2 {
		t.Errorf("bob total=%d len=%d, want 2", total, len(bobs))
	}

	if _, err := st.CancelCommands(ctx, "alice", "cmd_0", time.Now()); err != nil {
		t.Fatal(err)
	}
	cancelled, total, err := st.ListCommands(ctx, model.ListOptions{State: string(model.CommandStateCancelled)})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || cancelled[0].ID != "cmd_0" {
		t.Errorf("cancelled = %v (total %d)", cancelled, total)
	}
}

func TestCompleteCommand_OneShot(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.CreateCommand(ctx, sampleCommand("cmd_1", "alice", time.Now())); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 3, 0, time.UTC)
	res := model.CommandResult{ID: "cmd_1", Result: model.RoundCompleted, Values: []uint32{7, 8}}
	if err := st.CompleteCommand(ctx, res, at); err != nil {
		t.Fatal(err)
	}

	got, _ := st.GetCommand(ctx, "cmd_1")
	if got.State != model.CommandStateCompleted || got.Result != model.RoundCompleted {
		t.Errorf("state=%s result=%s", got.State, got.Result)
	}
	if len(got.Values) != 2 || got.Values[1] != 8 {
		t.Errorf("values = %v", got.Values)
	}
	if got.Samples != 1 {
		t.Errorf("samples = %d, want 1", got.Samples)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("completed_at = %v", got.CompletedAt)
	}

	// A completed command is not updated again.
	res.Values = []uint32{0}
	if err := st.CompleteCommand(ctx, res, at); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetCommand(ctx, "cmd_1")
	if got.Samples != 1 || got.Values[0] != 7 {
		t.Errorf("terminal command changed: %+v", got)
	}
}

func TestCompleteCommand_Subscription(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	rec := sampleCommand("cmd_sub", "alice", time.Now())
	rec.Period = 5
	if err := st.CreateCommand(ctx, rec); err != nil {
		t.Fatal(err)
	}

	for i := uint32(1); i <= 3; i++ {
		res := model.CommandResult{ID: "cmd_sub", Result: model.RoundCompleted, Values: []uint32{i}, Periodic: true}
		if err := st.CompleteCommand(ctx, res, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := st.GetCommand(ctx, "cmd_sub")
	if got.State != model.CommandStateQueued {
		t.Errorf("state = %s, want QUEUED", got.State)
	}
	if got.Samples != 3 || got.Values[0] != 3 {
		t.Errorf("samples=%d values=%v", got.Samples, got.Values)
	}

	n, err := st.CancelCommands(ctx, "alice", "cmd_sub", time.Now())
	if err != nil || n != 1 {
		t.Fatalf("cancel = %d, %v", n, err)
	}
	got, _ = st.GetCommand(ctx, "cmd_sub")
	if got.State != model.CommandStateCancelled {
		t.Errorf("state = %s, want CANCELLED", got.State)
	}
}

func TestCompleteCommand_MissingRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	res := model.CommandResult{ID: "cmd_late", Result: model.RoundCompleted, Values: []uint32{1}}
	if err := st.CompleteCommand(ctx, res, time.Now()); !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("CompleteCommand without a row = %v, want ErrCommandNotFound", err)
	}

	// A cancelled row is known; completing it is a no-op.
	if err := st.CreateCommand(ctx, sampleCommand("cmd_late", "alice", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CancelCommands(ctx, "alice", "", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := st.CompleteCommand(ctx, res, time.Now()); err != nil {
		t.Errorf("CompleteCommand on a cancelled row = %v, want nil", err)
	}
	got, _ := st.GetCommand(ctx, "cmd_late")
	if got.State != model.CommandStateCancelled || got.Samples != 0 {
		t.Errorf("cancelled row changed: state=%s samples=%d", got.State, got.Samples)
	}
}

func TestSetEffectiveAtAndDelete(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.CreateCommand(ctx, sampleCommand("cmd_1", "alice", time.Now())); err != nil {
		t.Fatal(err)
	}

	eff := model.NewTimestamp(102, 500)
	if err := st.SetEffectiveAt(ctx, "cmd_1", eff); err != nil {
		t.Fatal(err)
	}
	got, _ := st.GetCommand(ctx, "cmd_1")
	if got.EffectiveAt != eff {
		t.Errorf("effective_at = %v, want %v", got.EffectiveAt, eff)
	}

	if err := st.DeleteCommand(ctx, "cmd_1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := st.GetCommand(ctx, "cmd_1"); got != nil {
		t.Errorf("deleted command still present: %+v", got)
	}
	if err := st.SetEffectiveAt(ctx, "cmd_1", eff); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("SetEffectiveAt on a missing row = %v, want ErrCommandNotFound", err)
	}
}

func TestCancelCommands(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "b1"} {
		owner := "alice"
		if id[0] == 'b' {
			owner = "bob"
		}
		if err := st.CreateCommand(ctx, sampleCommand(id, owner, time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.CompleteCommand(ctx, model.CommandResult{ID: "a2", Result: model.RoundCompleted}, time.Now()); err != nil {
		t.Fatal(err)
	}

	n, err := st.CancelCommands(ctx, "alice", "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cancelled %d, want 1 (a2 already completed)", n)
	}
	b1, _ := st.GetCommand(ctx, "b1")
	if b1.State != model.CommandStateQueued {
		t.Errorf("b1 state = %s", b1.State)
	}
}

func TestRecordListRounds(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := int64(0); i < 3; i++ {
		r := &model.Round{
			ID:                fmt.Sprintf("round_%d", i),
			Tick:              model.NewTimestamp(1772366400+i, 0),
			Result:            model.RoundCompleted,
			CommandsCompleted: int(i),
			StartedAt:         start.Add(time.Duration(i) * time.Second),
			CompletedAt:       start.Add(time.Duration(i)*time.Second + 40*time.Millisecond),
		}
		if i == 1 {
			r.Result = model.RoundForcedIncomplete
			r.IncompletePorts = []string{"rsp1"}
		}
		if err := st.RecordRound(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	rounds, total, err := st.ListRounds(ctx, model.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(rounds) != 3 {
		t.Fatalf("total=%d len=%d", total, len(rounds))
	}
	if rounds[0].ID != "round_2" {
		t.Errorf("first = %s, want newest tick first", rounds[0].ID)
	}
	if rounds[2].IncompletePorts == nil || len(rounds[2].IncompletePorts) != 0 {
		t.Errorf("incomplete ports = %#v, want empty slice", rounds[2].IncompletePorts)
	}

	forced, total, err := st.ListRounds(ctx, model.ListOptions{State: string(model.RoundForcedIncomplete)})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || forced[0].ID != "round_1" {
		t.Fatalf("forced = %v", forced)
	}
	if len(forced[0].IncompletePorts) != 1 || forced[0].IncompletePorts[0] != "rsp1" {
		t.Errorf("incomplete ports = %v", forced[0].IncompletePorts)
	}
	if got := forced[0].CompletedAt.Sub(forced[0].StartedAt); got != 40*time.Millisecond {
		t.Errorf("duration = %v", got)
	}
}

package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/logging"
	"github.com/me/rspd/internal/server"
	"github.com/me/rspd/internal/station"
	"github.com/me/rspd/internal/store"
)

// startTestServer starts a server backed by a running simulated station
// and an in-memory SQLite store, and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	logger := logging.Discard()

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultStation()
	cfg.Boards[0].Latency = 0
	stn, err := station.New(cfg, logger)
	if err != nil {
		t.Fatalf("build station: %v", err)
	}
	t.Cleanup(func() { stn.Close() })

	srv := server.New(config.DefaultServerConfig(), st, stn.Loop, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.StartScheduler(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// queuedID extracts the command ID from enter output.
func queuedID(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if id, ok := strings.CutPrefix(line, "Command queued: "); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no command ID in output: %s", output)
	return ""
}

func TestReadCommand(t *testing.T) {
	url := startTestServer(t)

	output, err := runCLI(t, "--server", url, "--owner", "alice", "read", "rsp0", "4", "-n", "2")
	if err != nil {
		t.Fatalf("read error: %v\noutput: %s", err, output)
	}
	if !strings.HasPrefix(queuedID(t, output), "cmd_") {
		t.Errorf("expected cmd_ prefix, got: %s", output)
	}
	if !strings.Contains(output, "LATER") {
		t.Errorf("expected LATER queue in output, got: %s", output)
	}
}

func TestWriteCommand_HexValues(t *testing.T) {
	url := startTestServer(t)

	output, err := runCLI(t, "--server", url, "--owner", "alice", "write", "rsp0", "1", "0x10", "17")
	if err != nil {
		t.Fatalf("write error: %v\noutput: %s", err, output)
	}
	id := queuedID(t, output)

	output, err = runCLI(t, "--server", url, "get", id)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !strings.Contains(output, "0x00000010 0x00000011") {
		t.Errorf("expected both values in output, got: %s", output)
	}
	if !strings.Contains(output, "WRITE rsp0[1] x2") {
		t.Errorf("expected operation line, got: %s", output)
	}
}

func TestWriteCommand_BadValue(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "write", "rsp0", "1", "banana"); err == nil {
		t.Fatal("expected error for invalid value")
	}
}

func TestReadCommand_OutOfRange(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t, "--server", url, "read", "rsp0", "63", "-n", "4")
	if err == nil || !strings.Contains(err.Error(), "VALIDATION_ERROR") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	url := startTestServer(t)

	output, err := runCLI(t, "--server", url, "--owner", "bob", "subscribe", "rsp0", "0", "--period", "5")
	if err != nil {
		t.Fatalf("subscribe error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "PERIODIC") {
		t.Errorf("expected PERIODIC queue, got: %s", output)
	}
	id := queuedID(t, output)

	output, err = runCLI(t, "--server", url, "--owner", "bob", "unsubscribe", id)
	if err != nil {
		t.Fatalf("unsubscribe error: %v", err)
	}
	if !strings.Contains(output, id) {
		t.Errorf("expected handle in output, got: %s", output)
	}

	if _, err := runCLI(t, "--server", url, "--owner", "bob", "unsubscribe", id); err == nil {
		t.Error("expected error removing a subscription twice")
	}
}

func TestSubscribe_RequiresPeriod(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "subscribe", "rsp0", "0", "--period", "0"); err == nil {
		t.Fatal("expected error for zero period")
	}
}

func TestListAndCancel(t *testing.T) {
	url := startTestServer(t)
	for _, reg := range []string{"1", "2"} {
		if _, err := runCLI(t, "--server", url, "--owner", "carol", "read", "rsp0", reg, "--at", "4102444800"); err != nil {
			t.Fatalf("read error: %v", err)
		}
	}

	output, err := runCLI(t, "--server", url, "list", "--owner-filter", "carol")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(output, "ID") || strings.Count(output, "QUEUED") != 2 {
		t.Errorf("expected two queued commands, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "cancel", "carol")
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if !strings.Contains(output, "2 commands removed") {
		t.Errorf("expected 2 removed, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "list", "--state", "cancelled")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if strings.Count(output, "CANCELLED") != 2 {
		t.Errorf("expected two cancelled commands, got: %s", output)
	}
}

func TestListCommand_Empty(t *testing.T) {
	url := startTestServer(t)
	output, err := runCLI(t, "--server", url, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(output, "No commands found.") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

func TestStatusCommand(t *testing.T) {
	url := startTestServer(t)
	output, err := runCLI(t, "--server", url, "status")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(output, "Scheduler:") || !strings.Contains(output, "rsp0") {
		t.Errorf("expected scheduler and board lines, got: %s", output)
	}
}

func TestCacheCommand(t *testing.T) {
	url := startTestServer(t)

	output, err := runCLI(t, "--server", url, "cache")
	if err != nil {
		t.Fatalf("cache error: %v", err)
	}
	if !strings.Contains(output, "rsp0") || !strings.Contains(output, "Next update") {
		t.Errorf("expected board line, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "cache", "--text", "--back")
	if err != nil {
		t.Fatalf("cache --text error: %v", err)
	}
	if !strings.Contains(output, "rsp0") {
		t.Errorf("expected text dump, got: %s", output)
	}
}

func TestGetCommand_NotFound(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t, "--server", url, "get", "cmd_missing")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRoundsCommand(t *testing.T) {
	url := startTestServer(t)
	// Without a recorder nothing is journaled.
	output, err := runCLI(t, "--server", url, "rounds")
	if err != nil {
		t.Fatalf("rounds error: %v", err)
	}
	if !strings.Contains(output, "No rounds recorded.") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

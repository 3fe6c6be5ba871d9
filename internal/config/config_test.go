package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultStation_Valid(t *testing.T) {
	st := DefaultStation()
	if err := st.Validate(); err != nil {
		t.Fatalf("default station invalid: %v", err)
	}
	if got := st.BoardSizes()["rsp0"]; got != 64 {
		t.Errorf("rsp0 registers = %d, want 64", got)
	}
}

func TestParseStation(t *testing.T) {
	doc := `
sync_interval: 2
jitter_tolerance: 25ms
boards:
  - name: rsp0
    registers: 16
    latency: 100ms
    status_registers: [0, 1]
    expr: "value + 1"
  - name: rsp1
    registers: 8
    stall: true
`
	st, err := ParseStation([]byte(doc))
	if err != nil {
		t.Fatalf("ParseStation: %v", err)
	}
	if st.SyncInterval != 2 {
		t.Errorf("SyncInterval = %d, want 2", st.SyncInterval)
	}
	if st.SchedulingDelay != 2 {
		t.Errorf("SchedulingDelay = %d, want default 2", st.SchedulingDelay)
	}
	if st.JitterTolerance != 25*time.Millisecond {
		t.Errorf("JitterTolerance = %s", st.JitterTolerance)
	}
	if len(st.Boards) != 2 {
		t.Fatalf("boards = %d, want 2", len(st.Boards))
	}
	b := st.Boards[0]
	if b.Latency != 100*time.Millisecond || len(b.StatusRegisters) != 2 || b.Expr != "value + 1" {
		t.Errorf("board 0 = %+v", b)
	}
	if !st.Boards[1].Stall {
		t.Error("rsp1 should stall")
	}
}

func TestParseStation_UnknownField(t *testing.T) {
	_, err := ParseStation([]byte("sync_interval: 1\nbogus: true\nboards: [{name: a, registers: 1}]\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestStationValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no boards", "sync_interval: 1\n", "at least one board"},
		{"zero interval", "sync_interval: 0\nboards: [{name: a, registers: 1}]\n", "sync_interval"},
		{"negative delay", "scheduling_delay: -1\nboards: [{name: a, registers: 1}]\n", "scheduling_delay"},
		{"duplicate", "boards: [{name: a, registers: 1}, {name: a, registers: 2}]\n", "duplicate board"},
		{"missing name", "boards: [{registers: 1}]\n", "name is required"},
		{"no registers", "boards: [{name: a}]\n", "registers must be positive"},
		{"status out of range", "boards: [{name: a, registers: 2, status_registers: [2]}]\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStation([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadStation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte("boards:\n  - name: rsp0\n    registers: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := LoadStation(path)
	if err != nil {
		t.Fatalf("LoadStation: %v", err)
	}
	if st.SyncInterval != 1 || st.Boards[0].Registers != 4 {
		t.Errorf("station = %+v", st)
	}

	if _, err := LoadStation(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
}

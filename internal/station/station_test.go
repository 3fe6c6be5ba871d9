package station

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/me/rspd/internal/command"
	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/logging"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Station {
	cfg := config.DefaultStation()
	cfg.Boards = []config.Board{
		{Name: "rsp0", Registers: 8, StatusRegisters: []int{0}, Expr: "value + 1"},
		{Name: "rsp1", Registers: 4},
	}
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SyncInterval = 0
	_, err := New(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestNew_BadExpression(t *testing.T) {
	cfg := testConfig()
	cfg.Boards[0].Expr = "(("
	_, err := New(cfg, logging.Discard())
	assert.ErrorContains(t, err, "rsp0")
}

func TestNew_WiresBoards(t *testing.T) {
	st, err := New(testConfig(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	assert.NotNil(t, st.Sim("rsp0"))
	assert.NotNil(t, st.Sim("rsp1"))
	assert.Nil(t, st.Sim("rsp9"))
	assert.Equal(t, []string{"rsp0", "rsp1"}, st.Cache.Front().Boards())

	ports := st.Sched.Status().Ports
	assert.Len(t, ports, 2)
}

// TestStation_WriteReachesBoard runs the real loop: a write entered for the
// next admissible round ends up in the simulator's register file and in the
// front buffer, and the status register advances every round.
func TestStation_WriteReachesBoard(t *testing.T) {
	var mu sync.Mutex
	var rounds []model.Round
	st, err := New(testConfig(), logging.Discard(), scheduler.WithRoundHook(func(r model.Round) {
		mu.Lock()
		rounds = append(rounds, r)
		mu.Unlock()
	}))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go st.Loop.Start(ctx)
	t.Cleanup(func() { st.Loop.Stop() })

	results := make(chan model.CommandResult, 4)
	sink := command.SinkFunc(func(r model.CommandResult) { results <- r })
	err = st.Loop.Do(ctx, func(s *scheduler.Scheduler) {
		w := command.NewRegisterWrite("w1", command.ClientPort("alice"), "rsp1", 2, []uint32{0xabc}, model.Timestamp{}, sink)
		s.Enter(w, model.QueueLater)
	})
	require.NoError(t, err)

	select {
	case res := <-results:
		assert.Equal(t, "w1", res.ID)
		assert.Equal(t, []uint32{0xabc}, res.Values)
	case <-time.After(6 * time.Second):
		t.Fatal("write never completed")
	}

	require.Eventually(t, func() bool {
		return st.Sim("rsp1").Registers()[2] == 0xabc
	}, 3*time.Second, 20*time.Millisecond)

	var front uint32
	require.NoError(t, st.Loop.Do(ctx, func(s *scheduler.Scheduler) {
		bank, err := s.Cache().Front().Bank("rsp1")
		if err == nil {
			front = bank.Value(2)
		}
	}))
	assert.Equal(t, uint32(0xabc), front)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, rounds)
	assert.Greater(t, st.Sim("rsp0").Registers()[0], uint32(0))
}

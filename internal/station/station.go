// Package station assembles the scheduler, its loop and one simulated
// board connection per configured board.
package station

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/rspd/internal/board"
	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/scheduler"
)

// Station is a running register scheduler wired to its boards.
type Station struct {
	Cache *cache.Cache
	Sched *scheduler.Scheduler
	Loop  *scheduler.Loop

	ports []*board.Port
	sims  map[string]*board.Sim
}

// SchedulerConfig maps the station timing onto the scheduler config.
func SchedulerConfig(cfg config.Station) scheduler.Config {
	return scheduler.Config{
		SyncInterval:    cfg.SyncInterval,
		SchedulingDelay: cfg.SchedulingDelay,
		JitterTolerance: cfg.JitterTolerance,
	}
}

// New builds the station. Each board gets a port whose replies are posted
// to the loop, a write step and a read step, in that order.
func New(cfg config.Station, logger *slog.Logger, opts ...scheduler.Option) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	schedCfg := SchedulerConfig(cfg)
	st := &Station{
		Cache: cache.New(cfg.BoardSizes()),
		sims:  make(map[string]*board.Sim, len(cfg.Boards)),
	}
	st.Sched = scheduler.New(schedCfg, st.Cache, logger, opts...)
	st.Loop = scheduler.NewLoop(st.Sched, schedCfg, logger)

	for _, b := range cfg.Boards {
		port := board.NewPort(b.Name, logger)
		sim, err := board.NewSim(b, port.Receiver(st.Loop.Post), logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("board %s: %w", b.Name, err)
		}
		port.Attach(sim)
		st.ports = append(st.ports, port)
		st.sims[b.Name] = sim

		st.Sched.AddSyncAction(board.NewWriteAction(port, st.Cache, logger))
		st.Sched.AddSyncAction(board.NewReadAction(port, st.Cache, b.StatusRegisters, logger))
	}

	logger.Info("station ready", "boards", len(cfg.Boards), "interval", cfg.SyncInterval, "delay", cfg.SchedulingDelay)
	return st, nil
}

// Sim returns the simulator behind a board, or nil.
func (s *Station) Sim(name string) *board.Sim {
	return s.sims[name]
}

// Close closes every board connection.
func (s *Station) Close() error {
	var errs []error
	for _, p := range s.ports {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

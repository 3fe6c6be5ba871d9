package scheduler

import (
	"fmt"

	"github.com/me/rspd/pkg/model"
)

// pipeline is the per-board sequence of sync steps and its progress in
// the current round. Steps run strictly in order: step i+1 never sees an
// event before step i is complete.
type pipeline struct {
	port   Port
	steps  []SyncAction
	states []model.StepState
	cursor int
	done   bool
}

func newPipeline(port Port) *pipeline {
	return &pipeline{port: port, done: true}
}

func (p *pipeline) add(a SyncAction) {
	p.steps = append(p.steps, a)
	p.states = append(p.states, model.StepPending)
}

// begin marks every step pending for a new round.
func (p *pipeline) begin() {
	for i := range p.states {
		p.states[i] = model.StepPending
	}
	p.cursor = 0
	p.done = len(p.steps) == 0
}

// advance feeds ev to the current step. Completed steps hand a tick
// event to their successor while it asks to continue; otherwise the chain
// suspends until the next port event.
func (p *pipeline) advance(ev Event) {
	for !p.done {
		i := p.cursor
		step := p.steps[i]
		p.states[i] = model.StepRunning
		if step.Dispatch(ev) != Done {
			return
		}
		p.states[i] = model.StepComplete
		p.cursor++
		if p.cursor == len(p.steps) {
			p.done = true
			return
		}
		if !step.Continue() {
			return
		}
		ev = TickEvent()
	}
}

// abort resets every step of an unfinished round.
func (p *pipeline) abort() {
	for _, s := range p.steps {
		s.Reset()
	}
	for i := range p.states {
		p.states[i] = model.StepPending
	}
	p.cursor = 0
}

func (p *pipeline) describe() string {
	if p.done {
		return string(model.StepComplete)
	}
	return fmt.Sprintf("%s(%d/%d)", p.states[p.cursor], p.cursor+1, len(p.steps))
}
